package oracle

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/opencustody/ledger_layer/internal/app/domain/bank"
	"github.com/opencustody/ledger_layer/internal/app/metrics"
	"github.com/opencustody/ledger_layer/internal/app/system"
	"github.com/opencustody/ledger_layer/pkg/logger"
)

// PricePoller periodically fetches the oracle price and publishes it as a
// gauge. It is observability only: valuations always re-fetch through the
// adapter and never read the polled value.
type PricePoller struct {
	adapter  *Adapter
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*PricePoller)(nil)

// NewPricePoller constructs a poller over the adapter.
func NewPricePoller(adapter *Adapter, interval time.Duration, log *logger.Logger) *PricePoller {
	if log == nil {
		log = logger.NewDefault("oracle-poller")
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PricePoller{
		adapter:  adapter,
		interval: interval,
		log:      log,
	}
}

func (p *PricePoller) Name() string { return "oracle-price-poller" }

func (p *PricePoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.tick(runCtx)
			}
		}
	}()

	p.log.Info("oracle price poller started")
	return nil
}

func (p *PricePoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (p *PricePoller) tick(ctx context.Context) {
	normalized, err := p.adapter.NormalizedPrice(ctx)
	if err != nil {
		metrics.RecordOracleFailure(failureReason(err))
		p.log.WithError(err).Warn("price poll failed")
		return
	}
	metrics.SetNativePrice(usdFloat(normalized))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, ErrIncompleteRound):
		return "incomplete_round"
	case errors.Is(err, ErrStale):
		return "stale"
	default:
		return "fetch_error"
	}
}

// usdFloat converts an internal-scale value to a float64 for gauge export.
// Precision loss is acceptable here; the gauge is informational.
func usdFloat(v *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), new(big.Float).SetInt(bank.USDUnit)).Float64()
	return f
}
