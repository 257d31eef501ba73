// Package oracle validates and normalizes readings from an external price
// feed. The adapter re-fetches on every call; valuations must never reuse a
// reading across operations.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/opencustody/ledger_layer/internal/app/domain/bank"
	"github.com/opencustody/ledger_layer/internal/app/domain/price"
	"github.com/opencustody/ledger_layer/pkg/logger"
)

// DefaultStaleness is the maximum tolerated age of a price reading.
const DefaultStaleness = 2 * time.Hour

var (
	// ErrInvalidPrice is returned when the feed reports a price <= 0.
	ErrInvalidPrice = errors.New("oracle price is not positive")
	// ErrIncompleteRound is returned when the reading carries over an answer
	// from an earlier round.
	ErrIncompleteRound = errors.New("oracle round is incomplete")
	// ErrStale is returned when the reading is older than the staleness
	// threshold.
	ErrStale = errors.New("oracle price is stale")
)

// FeedProvider is the consumption contract of the external price feed.
type FeedProvider interface {
	LatestReading(ctx context.Context) (price.Reading, error)
	Decimals(ctx context.Context) (uint8, error)
}

// Adapter fetches, validates and rescales feed readings to bank.USDScale
// decimals.
type Adapter struct {
	feed      FeedProvider
	staleness time.Duration
	now       func() time.Time
	log       *logger.Logger
}

// Option customizes adapter construction.
type Option func(*Adapter)

// WithStaleness overrides the staleness threshold.
func WithStaleness(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.staleness = d
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAdapter constructs an adapter over the given feed.
func NewAdapter(feed FeedProvider, log *logger.Logger, opts ...Option) *Adapter {
	if log == nil {
		log = logger.NewDefault("oracle")
	}
	a := &Adapter{
		feed:      feed,
		staleness: DefaultStaleness,
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NormalizedPrice returns the latest valid price rescaled to bank.USDScale
// decimals, regardless of the feed's native decimal count.
func (a *Adapter) NormalizedPrice(ctx context.Context) (*big.Int, error) {
	reading, err := a.feed.LatestReading(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch price reading: %w", err)
	}

	if reading.Price == nil || reading.Price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if !reading.Complete() {
		return nil, ErrIncompleteRound
	}
	if age := a.now().Sub(reading.UpdatedAt); age > a.staleness {
		a.log.WithField("age", age.String()).Warn("rejecting stale price reading")
		return nil, ErrStale
	}

	decimals, err := a.feed.Decimals(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed decimals: %w", err)
	}
	return rescale(reading.Price, decimals), nil
}

// rescale converts a price with the feed's decimal count to USDScale decimals.
func rescale(raw *big.Int, decimals uint8) *big.Int {
	value := new(big.Int).Set(raw)
	switch {
	case decimals < bank.USDScale:
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(bank.USDScale-int(decimals))), nil)
		value.Mul(value, factor)
	case int(decimals) > bank.USDScale:
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(int(decimals)-bank.USDScale)), nil)
		value.Quo(value, factor)
	}
	return value
}
