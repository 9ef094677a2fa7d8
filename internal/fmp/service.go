package fmp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"cardpricer/internal/floor"
	"cardpricer/internal/listing"
	"cardpricer/internal/model"
)

// ProductTypeSingle is the only product type the formula applies to.
// Everything else (boxes, packs, other sealed product) prices by median.
const ProductTypeSingle = "Single"

// BasePriceSource supplies the externally maintained base price per set.
// The engine never computes base prices itself.
type BasePriceSource interface {
	BaseSetPrice(ctx context.Context, setName string) (float64, bool, error)
}

// StaticBasePrices is a config-fed BasePriceSource.
type StaticBasePrices map[string]float64

// BaseSetPrice returns the configured base price for a set.
func (s StaticBasePrices) BaseSetPrice(_ context.Context, setName string) (float64, bool, error) {
	v, ok := s[setName]
	return v, ok, nil
}

// Request names the inputs for one FMP calculation.
type Request struct {
	CardID      string
	SetName     string
	RarityName  string
	Treatment   string // optional; empty means the card's default variant
	Days        int    // 0 means 30
	ProductType string // "" means Single
}

// Service computes fair market prices: a rarity/treatment/liquidity
// adjustment over an external base price for singles, a sales median for
// sealed product, and a floor-only degradation when inputs are missing.
type Service struct {
	repo        listing.Repository
	floors      *floor.HybridService
	basePrices  BasePriceSource
	multipliers Multipliers
	logger      *slog.Logger
	now         func() time.Time
}

// NewService wires the FMP calculator. basePrices may be nil when no
// base-price feed is configured; the service then degrades to floors.
func NewService(logger *slog.Logger, repo listing.Repository, floors *floor.HybridService, basePrices BasePriceSource, multipliers Multipliers) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		floors:      floors,
		basePrices:  basePrices,
		multipliers: multipliers,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the time source for bucket-aligned callers.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CalculateFMP computes the fair market price for one card variant.
// It never fabricates a number: missing inputs degrade to a floor-only
// or unavailable result, and absence is always nil rather than zero.
func (s *Service) CalculateFMP(ctx context.Context, req Request) (model.FairMarketPriceResult, error) {
	days := req.Days
	if days <= 0 {
		days = 30
	}
	productType := req.ProductType
	if productType == "" {
		productType = ProductTypeSingle
	}

	if productType != ProductTypeSingle {
		return s.sealedMedian(ctx, req, days)
	}
	return s.singleFormula(ctx, req, days)
}

// FMPByTreatment recomputes the formula once per known treatment for the
// same card, in stable table order.
func (s *Service) FMPByTreatment(ctx context.Context, cardID, setName, rarityName string, days int) ([]model.TreatmentFMP, error) {
	treatments := make([]string, 0, len(s.multipliers.Treatment))
	for name := range s.multipliers.Treatment {
		treatments = append(treatments, name)
	}
	sort.Strings(treatments)

	out := make([]model.TreatmentFMP, 0, len(treatments))
	for _, treatment := range treatments {
		res, err := s.CalculateFMP(ctx, Request{
			CardID:     cardID,
			SetName:    setName,
			RarityName: rarityName,
			Treatment:  treatment,
			Days:       days,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, model.TreatmentFMP{
			Treatment:       treatment,
			FairMarketPrice: res.FairMarketPrice,
			FloorPrice:      res.FloorPrice,
			Confidence:      res.Confidence,
		})
	}
	return out, nil
}

func (s *Service) singleFormula(ctx context.Context, req Request, days int) (model.FairMarketPriceResult, error) {
	result := model.FairMarketPriceResult{
		CardID:    req.CardID,
		Treatment: req.Treatment,
	}

	trailing, err := s.trailingSales(ctx, req.CardID, req.Treatment, days)
	if err != nil {
		return model.FairMarketPriceResult{}, err
	}
	result.DataQuality.SaleCount = trailing

	floorEst, err := s.floors.GetFloorPrice(ctx, req.CardID, req.Treatment, days, nil)
	if err != nil {
		return model.FairMarketPriceResult{}, err
	}
	result.FloorPrice = floorEst.Price
	result.Confidence = floorEst.Confidence
	result.DataQuality.ActiveListings = activeCount(floorEst)
	result.DataQuality.WindowWidened = floorEst.Source == model.SourceSalesFallback

	base, haveBase, err := s.baseSetPrice(ctx, req.SetName)
	if err != nil {
		return model.FairMarketPriceResult{}, err
	}

	if !haveBase || s.multipliers.Empty() {
		// No base price or no multiplier tables: report the floor if one
		// exists, otherwise admit unavailability. Never guess.
		if result.FloorPrice != nil {
			result.CalculationMethod = model.MethodOrderBook
		} else {
			result.CalculationMethod = model.MethodUnavailable
		}
		s.logger.Debug("fmp degraded",
			"card_id", req.CardID, "set", req.SetName,
			"have_base", haveBase, "method", result.CalculationMethod)
		return result, nil
	}

	rarity := s.multipliers.RarityMultiplier(req.RarityName)
	treatment := s.multipliers.TreatmentMultiplier(req.Treatment)
	liquidity := s.multipliers.Liquidity.Adjust(trailing)

	fmp := base * rarity * treatment * liquidity
	result.FairMarketPrice = model.Float(fmp)
	result.CalculationMethod = model.MethodFormula
	result.Breakdown = &model.FMPBreakdown{
		BaseSetPrice:        base,
		RarityMultiplier:    rarity,
		TreatmentMultiplier: treatment,
		LiquidityAdjustment: liquidity,
		TrailingSales:       trailing,
	}
	return result, nil
}

// sealedMedian prices non-single product by the median of recent sales.
// Breakdown never applies outside the formula path.
func (s *Service) sealedMedian(ctx context.Context, req Request, days int) (model.FairMarketPriceResult, error) {
	result := model.FairMarketPriceResult{
		CardID:            req.CardID,
		Treatment:         req.Treatment,
		CalculationMethod: model.MethodMedian,
	}

	rows, err := s.repo.QueryListings(ctx, listing.Query{
		CardID:  req.CardID,
		Variant: req.Treatment,
		Kind:    model.KindSold,
		Since:   s.now().AddDate(0, 0, -days),
	})
	if err != nil {
		return model.FairMarketPriceResult{}, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	result.DataQuality.SaleCount = len(rows)

	if len(rows) > 0 {
		prices := make([]float64, len(rows))
		for i, l := range rows {
			prices[i] = l.Price
		}
		result.FairMarketPrice = model.Float(median(prices))
		result.Confidence = saleVolumeConfidence(len(rows))
		return result, nil
	}

	// No sales: fall back to the floor before admitting defeat.
	floorEst, err := s.floors.GetFloorPrice(ctx, req.CardID, req.Treatment, days, nil)
	if err != nil {
		return model.FairMarketPriceResult{}, err
	}
	if floorEst.Price != nil {
		result.FloorPrice = floorEst.Price
		result.Confidence = floorEst.Confidence
		result.CalculationMethod = model.MethodOrderBook
	} else {
		result.CalculationMethod = model.MethodUnavailable
	}
	return result, nil
}

func (s *Service) baseSetPrice(ctx context.Context, setName string) (float64, bool, error) {
	if s.basePrices == nil {
		return 0, false, nil
	}
	base, ok, err := s.basePrices.BaseSetPrice(ctx, setName)
	if err != nil {
		return 0, false, fmt.Errorf("%w: base price source: %v", model.ErrConfiguration, err)
	}
	if ok && base <= 0 {
		return 0, false, nil
	}
	return base, ok, nil
}

func (s *Service) trailingSales(ctx context.Context, cardID, treatment string, days int) (int, error) {
	rows, err := s.repo.QueryListings(ctx, listing.Query{
		CardID:  cardID,
		Variant: treatment,
		Kind:    model.KindSold,
		Since:   s.now().AddDate(0, 0, -days),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	return len(rows), nil
}

func activeCount(est model.FloorEstimate) int {
	if est.Source == model.SourceOrderBook {
		return est.TotalListings
	}
	return 0
}

// median of an unsorted price slice.
func median(prices []float64) float64 {
	sort.Float64s(prices)
	n := len(prices)
	if n%2 == 1 {
		return prices[n/2]
	}
	return (prices[n/2-1] + prices[n/2]) / 2
}

// saleVolumeConfidence scales with volume and saturates at ten sales.
func saleVolumeConfidence(n int) float64 {
	c := float64(n) / 10
	if c > 1 {
		return 1
	}
	return c
}
