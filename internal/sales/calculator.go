package sales

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cardpricer/internal/listing"
	"cardpricer/internal/model"
)

const (
	// floorSampleSize caps how many of the lowest sales feed the floor.
	// The mean of the four cheapest resists a single fire-sale outlier
	// while still tracking genuine floor movement; a median would not.
	floorSampleSize = 4

	// DefaultLookbackDays is the initial sales window.
	DefaultLookbackDays = 30

	// widenedLookbackDays is the fallback window when the initial one
	// holds no sales at all.
	widenedLookbackDays = 90

	// backwardLookingPenalty scales sales confidence below order-book
	// confidence: completed sales describe the past, asks the present.
	backwardLookingPenalty = 0.5

	staleAfter = 14 * 24 * time.Hour
)

// Calculator estimates a floor from completed sales for one variant.
type Calculator struct {
	repo listing.Repository
	now  func() time.Time
}

// NewCalculator creates a sales floor calculator.
func NewCalculator(repo listing.Repository) *Calculator {
	return &Calculator{repo: repo, now: time.Now}
}

// WithClock overrides the time source for bucket-aligned callers.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// CalculateFloor computes the sales floor inside the given window,
// widening once from 30 to 90 days if the initial window is empty.
// Returns nil when even the widened window has no sales.
func (c *Calculator) CalculateFloor(ctx context.Context, cardID, variant string, days int, platforms []model.Platform) (*model.FloorEstimate, error) {
	if days <= 0 {
		days = DefaultLookbackDays
	}

	rows, err := c.querySales(ctx, cardID, variant, days, platforms)
	if err != nil {
		return nil, err
	}

	widened := false
	if len(rows) == 0 && days < widenedLookbackDays {
		widened = true
		rows, err = c.querySales(ctx, cardID, variant, widenedLookbackDays, platforms)
		if err != nil {
			return nil, err
		}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	est := c.estimateFromSales(rows, days, widened)
	return &est, nil
}

// EstimateFromSales builds a floor estimate from an already-fetched,
// pooled sale sequence. The hybrid service uses this after fanning out
// across platforms.
func (c *Calculator) EstimateFromSales(rows []model.Listing, days int, widened bool) model.FloorEstimate {
	return c.estimateFromSales(rows, days, widened)
}

func (c *Calculator) querySales(ctx context.Context, cardID, variant string, days int, platforms []model.Platform) ([]model.Listing, error) {
	rows, err := c.repo.QueryListings(ctx, listing.Query{
		CardID:    cardID,
		Variant:   variant,
		Kind:      model.KindSold,
		Platforms: platforms,
		Since:     c.now().AddDate(0, 0, -days),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	return rows, nil
}

func (c *Calculator) estimateFromSales(rows []model.Listing, days int, widened bool) model.FloorEstimate {
	prices := make([]float64, len(rows))
	for i, l := range rows {
		prices[i] = l.Price
	}
	sort.Float64s(prices)

	sample := floorSampleSize
	if len(prices) < sample {
		sample = len(prices)
	}
	var sum float64
	for _, p := range prices[:sample] {
		sum += p
	}
	floor := sum / float64(sample)

	total := len(rows)
	stale := 0
	cutoff := c.now().Add(-staleAfter)
	for _, l := range rows {
		if l.EffectiveDate().Before(cutoff) {
			stale++
		}
	}

	depth := float64(total) / float64(floorSampleSize)
	if depth > 1 {
		depth = 1
	}
	freshness := 1 - float64(stale)/float64(total)
	confidence := clamp01(backwardLookingPenalty * (0.5*depth + 0.5*freshness))

	source := model.SourceSales
	if widened {
		source = model.SourceSalesFallback
	}

	return model.FloorEstimate{
		Price:         model.Float(floor),
		Confidence:    confidence,
		Tier:          tierFor(confidence),
		Source:        source,
		TotalListings: total,
		StaleCount:    stale,
		Metadata: map[string]string{
			"window_days": fmt.Sprintf("%d", effectiveDays(days, widened)),
			"sample_size": fmt.Sprintf("%d", sample),
		},
	}
}

func effectiveDays(days int, widened bool) int {
	if widened {
		return widenedLookbackDays
	}
	return days
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func tierFor(confidence float64) model.ConfidenceTier {
	switch {
	case confidence > 0.6:
		return model.TierHigh
	case confidence > 0.3:
		return model.TierMedium
	default:
		return model.TierLow
	}
}
