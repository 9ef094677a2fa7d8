package pricing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cardpricer/internal/cache"
	"cardpricer/internal/floor"
	"cardpricer/internal/fmp"
	"cardpricer/internal/model"
)

// FloorOnlyProvider is the minimal implementation: floors only, no
// formula. Deployments without a base-price feed or multiplier tables
// run this; FMP requests degrade honestly instead of guessing.
type FloorOnlyProvider struct {
	floors      *floor.HybridService
	store       *cache.ResultCache
	bucketWidth time.Duration
	days        int
	treatments  []string
}

func (p *FloorOnlyProvider) bucket() (time.Time, time.Time) {
	start := cache.BucketStart(time.Now(), p.bucketWidth)
	return start, start.Add(p.bucketWidth)
}

func (p *FloorOnlyProvider) lookback(days int) int {
	if days <= 0 {
		return p.days
	}
	return days
}

// EstimateFloor returns the cached order-book estimate for this bucket.
func (p *FloorOnlyProvider) EstimateFloor(ctx context.Context, cardID, variant string, days int) (*model.FloorEstimate, error) {
	days = p.lookback(days)
	start, expires := p.bucket()
	key := cache.Key("orderbook", start, cardID, variant, fmt.Sprintf("%d", days))

	v, err := p.store.Do(key, expires, func() (any, error) {
		return p.floors.EstimateFloor(ctx, cardID, variant, days)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.FloorEstimate), nil
}

// GetFloorPrice returns the cached hybrid floor for this bucket.
func (p *FloorOnlyProvider) GetFloorPrice(ctx context.Context, cardID, variant string, days int, platforms []model.Platform) (model.FloorEstimate, error) {
	days = p.lookback(days)
	start, expires := p.bucket()
	key := cache.Key("floor", start, cardID, variant, fmt.Sprintf("%d", days), platformsKey(platforms))

	v, err := p.store.Do(key, expires, func() (any, error) {
		return p.floors.GetFloorPrice(ctx, cardID, variant, days, platforms)
	})
	if err != nil {
		return model.FloorEstimate{}, err
	}
	return v.(model.FloorEstimate), nil
}

// CalculateFMP reports the floor when one exists and otherwise admits
// unavailability. The formula requires the full provider.
func (p *FloorOnlyProvider) CalculateFMP(ctx context.Context, req fmp.Request) (model.FairMarketPriceResult, error) {
	est, err := p.GetFloorPrice(ctx, req.CardID, req.Treatment, req.Days, nil)
	if err != nil {
		return model.FairMarketPriceResult{}, err
	}

	result := model.FairMarketPriceResult{
		CardID:            req.CardID,
		Treatment:         req.Treatment,
		FloorPrice:        est.Price,
		Confidence:        est.Confidence,
		CalculationMethod: model.MethodUnavailable,
	}
	if est.Price != nil {
		result.CalculationMethod = model.MethodOrderBook
	}
	return result, nil
}

// FMPByTreatment reports floors per known treatment; FMP stays nil.
func (p *FloorOnlyProvider) FMPByTreatment(ctx context.Context, cardID, _, _ string, days int) ([]model.TreatmentFMP, error) {
	treatments := append([]string(nil), p.treatments...)
	sort.Strings(treatments)

	out := make([]model.TreatmentFMP, 0, len(treatments))
	for _, treatment := range treatments {
		est, err := p.GetFloorPrice(ctx, cardID, treatment, days, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, model.TreatmentFMP{
			Treatment:  treatment,
			FloorPrice: est.Price,
			Confidence: est.Confidence,
		})
	}
	return out, nil
}
