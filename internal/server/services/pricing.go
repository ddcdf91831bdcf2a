package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/arweave"
	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/weavekeeper/internal/server/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PriceSource quotes the storage price of a byte count in winston.
type PriceSource interface {
	Price(ctx context.Context, size int64) (string, error)
}

// PriceEstimator turns network quotes into costs and caches them per size.
type PriceEstimator struct {
	source  PriceSource
	cache   *expirable.LRU[int64, string]
	metrics *metrics.Metrics
}

// NewPriceEstimator caches up to size quotes for ttl. A zero ttl or size
// disables caching.
func NewPriceEstimator(source PriceSource, size int, ttl time.Duration, m *metrics.Metrics) *PriceEstimator {
	p := &PriceEstimator{source: source, metrics: m}
	if size > 0 && ttl > 0 {
		p.cache = expirable.NewLRU[int64, string](size, nil, ttl)
	}
	return p
}

// Estimate returns the cost of storing size bytes. Failures of the network
// wrap common.ErrPricingUnavailable.
func (p *PriceEstimator) Estimate(ctx context.Context, size int64) (models.Cost, error) {
	if size < 0 {
		return models.Cost{}, fmt.Errorf("%w: negative size %d", common.ErrValidation, size)
	}

	winston, err := p.quote(ctx, size)
	if err != nil {
		return models.Cost{}, fmt.Errorf("%w: %w", common.ErrPricingUnavailable, err)
	}
	ar, err := arweave.WinstonToAR(winston)
	if err != nil {
		return models.Cost{}, fmt.Errorf("%w: %w", common.ErrPricingUnavailable, err)
	}

	return models.Cost{AR: ar, Winston: winston, USD: 0, Bytes: size}, nil
}

func (p *PriceEstimator) quote(ctx context.Context, size int64) (string, error) {
	if p.cache != nil {
		if w, ok := p.cache.Get(size); ok {
			p.metrics.RecordPriceLookup(true)
			return w, nil
		}
	}
	p.metrics.RecordPriceLookup(false)

	w, err := p.source.Price(ctx, size)
	if err != nil {
		return "", err
	}
	if p.cache != nil {
		p.cache.Add(size, w)
	}
	return w, nil
}
