package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cardpricer/internal/cache"
	"cardpricer/internal/floor"
	"cardpricer/internal/fmp"
	"cardpricer/internal/model"
)

// Service is the formula-capable provider: hybrid floors plus the fair
// market price formula, memoized per time bucket.
type Service struct {
	floors      *floor.HybridService
	fmp         *fmp.Service
	store       *cache.ResultCache
	bucketWidth time.Duration
	days        int
	logger      *slog.Logger
}

func (s *Service) bucket() (time.Time, time.Time) {
	start := cache.BucketStart(time.Now(), s.bucketWidth)
	return start, start.Add(s.bucketWidth)
}

func (s *Service) lookback(days int) int {
	if days <= 0 {
		return s.days
	}
	return days
}

// EstimateFloor returns the cached order-book estimate for this bucket.
func (s *Service) EstimateFloor(ctx context.Context, cardID, variant string, days int) (*model.FloorEstimate, error) {
	days = s.lookback(days)
	start, expires := s.bucket()
	key := cache.Key("orderbook", start, cardID, variant, fmt.Sprintf("%d", days))

	v, err := s.store.Do(key, expires, func() (any, error) {
		return s.floors.EstimateFloor(ctx, cardID, variant, days)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.FloorEstimate), nil
}

// GetFloorPrice returns the cached hybrid floor for this bucket. Two
// callers in the same bucket always observe bit-identical estimates.
func (s *Service) GetFloorPrice(ctx context.Context, cardID, variant string, days int, platforms []model.Platform) (model.FloorEstimate, error) {
	days = s.lookback(days)
	start, expires := s.bucket()
	key := cache.Key("floor", start, cardID, variant, fmt.Sprintf("%d", days), platformsKey(platforms))

	v, err := s.store.Do(key, expires, func() (any, error) {
		return s.floors.GetFloorPrice(ctx, cardID, variant, days, platforms)
	})
	if err != nil {
		return model.FloorEstimate{}, err
	}
	return v.(model.FloorEstimate), nil
}

// CalculateFMP returns the cached fair market price for this bucket.
func (s *Service) CalculateFMP(ctx context.Context, req fmp.Request) (model.FairMarketPriceResult, error) {
	req.Days = s.lookback(req.Days)
	start, expires := s.bucket()
	key := cache.Key("fmp", start, req.CardID, req.SetName, req.RarityName,
		req.Treatment, fmt.Sprintf("%d", req.Days), req.ProductType)

	v, err := s.store.Do(key, expires, func() (any, error) {
		return s.fmp.CalculateFMP(ctx, req)
	})
	if err != nil {
		return model.FairMarketPriceResult{}, err
	}
	return v.(model.FairMarketPriceResult), nil
}

// FMPByTreatment returns the cached per-treatment sweep for this bucket.
func (s *Service) FMPByTreatment(ctx context.Context, cardID, setName, rarityName string, days int) ([]model.TreatmentFMP, error) {
	days = s.lookback(days)
	start, expires := s.bucket()
	key := cache.Key("fmp_by_treatment", start, cardID, setName, rarityName, fmt.Sprintf("%d", days))

	v, err := s.store.Do(key, expires, func() (any, error) {
		return s.fmp.FMPByTreatment(ctx, cardID, setName, rarityName, days)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.TreatmentFMP), nil
}

// CacheStats exposes cache effectiveness for operational visibility.
func (s *Service) CacheStats() cache.Stats {
	return s.store.Stats()
}

func platformsKey(platforms []model.Platform) string {
	if len(platforms) == 0 {
		return "all"
	}
	out := ""
	for i, p := range platforms {
		if i > 0 {
			out += ","
		}
		out += string(p)
	}
	return out
}
