package oracle

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/opencustody/ledger_layer/internal/app/domain/price"
)

// StaticFeedProvider serves a fixed reading. It backs tests and local
// deployments without a live feed.
type StaticFeedProvider struct {
	mu       sync.RWMutex
	reading  price.Reading
	decimals uint8
}

var _ FeedProvider = (*StaticFeedProvider)(nil)

// NewStaticFeedProvider returns a provider reporting the given price at the
// given decimal count, answered now in round 1.
func NewStaticFeedProvider(p *big.Int, decimals uint8) *StaticFeedProvider {
	return &StaticFeedProvider{
		reading: price.Reading{
			RoundID:         1,
			Price:           new(big.Int).Set(p),
			UpdatedAt:       time.Now().UTC(),
			AnsweredInRound: 1,
		},
		decimals: decimals,
	}
}

// SetReading replaces the served reading.
func (p *StaticFeedProvider) SetReading(r price.Reading) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.Price != nil {
		r.Price = new(big.Int).Set(r.Price)
	}
	p.reading = r
}

func (p *StaticFeedProvider) LatestReading(context.Context) (price.Reading, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r := p.reading
	if r.Price != nil {
		r.Price = new(big.Int).Set(r.Price)
	}
	return r, nil
}

func (p *StaticFeedProvider) Decimals(context.Context) (uint8, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.decimals, nil
}
