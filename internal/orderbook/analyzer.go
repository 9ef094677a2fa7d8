package orderbook

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"cardpricer/internal/listing"
	"cardpricer/internal/model"
)

const (
	// minListings is the fewest active listings worth bucketing.
	// Below this the caller falls back to sales data.
	minListings = 3

	// staleAfter marks listings last observed beyond this age as stale
	// for the freshness half of the confidence score.
	staleAfter = 14 * 24 * time.Hour

	// DefaultLookbackDays bounds the active-listing window.
	DefaultLookbackDays = 30
)

// Analyzer estimates a floor price from the active order book of one
// card variant: cluster asks into price buckets and read the floor off
// the deepest cluster rather than the single cheapest ask.
type Analyzer struct {
	repo listing.Repository
	now  func() time.Time
}

// NewAnalyzer creates an analyzer over the given repository.
func NewAnalyzer(repo listing.Repository) *Analyzer {
	return &Analyzer{repo: repo, now: time.Now}
}

// WithClock overrides the time source. Cache-aligned callers pass the
// bucket start so concurrent requests agree on the cutoff.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// bucket is one equal-width slice of the filtered price range.
type bucket struct {
	lower   float64
	upper   float64
	members []float64
}

// EstimateFloor analyzes active listings for the variant. It returns nil
// when fewer than three qualifying listings exist; the price is never
// reported as zero for lack of data.
func (a *Analyzer) EstimateFloor(ctx context.Context, cardID, variant string, days int) (*model.FloorEstimate, error) {
	if days <= 0 {
		days = DefaultLookbackDays
	}
	now := a.now()

	rows, err := a.repo.QueryListings(ctx, listing.Query{
		CardID:  cardID,
		Variant: variant,
		Kind:    model.KindActive,
		Since:   now.AddDate(0, 0, -days),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}

	var candidates []model.Listing
	for _, l := range rows {
		if l.IsBulkLot {
			continue
		}
		candidates = append(candidates, l)
	}
	if len(candidates) < minListings {
		return nil, nil
	}

	// Sort by price so the tail trim drops whole listings, keeping the
	// staleness count aligned with the surviving population.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Price < candidates[j].Price
	})
	prices := make([]float64, len(candidates))
	for i, l := range candidates {
		prices[i] = l.Price
	}

	kept := trimHighTail(prices)
	if len(kept) == 0 {
		kept = prices
	}
	remaining := candidates[:len(kept)]

	buckets := makeBuckets(kept)
	deepest := deepestBucket(buckets)

	floor := memberMidpoint(deepest)
	total := len(kept)
	depthRatio := float64(len(deepest.members)) / float64(total)

	stale := 0
	cutoff := now.Add(-staleAfter)
	for _, l := range remaining {
		if l.ObservedAt.Before(cutoff) {
			stale++
		}
	}
	freshness := 1 - float64(stale)/float64(total)

	confidence := clamp01(0.5*depthRatio + 0.5*freshness)

	return &model.FloorEstimate{
		Price:         model.Float(floor),
		Confidence:    confidence,
		Tier:          tierFor(confidence),
		Source:        model.SourceOrderBook,
		TotalListings: total,
		StaleCount:    stale,
		Metadata: map[string]string{
			"window_days":  fmt.Sprintf("%d", days),
			"bucket_depth": fmt.Sprintf("%d", len(deepest.members)),
			"bucket_range": fmt.Sprintf("%.2f-%.2f", deepest.lower, deepest.upper),
		},
	}, nil
}

// trimHighTail drops prices past the first consecutive gap exceeding
// mean+2σ of all gaps. Listings cluster near the real floor; a long
// high-price tail is speculative asks, not market depth.
func trimHighTail(sorted []float64) []float64 {
	if len(sorted) < 3 {
		return sorted
	}

	gaps := make([]float64, len(sorted)-1)
	var sum float64
	for i := 1; i < len(sorted); i++ {
		gaps[i-1] = sorted[i] - sorted[i-1]
		sum += gaps[i-1]
	}
	mean := sum / float64(len(gaps))

	var variance float64
	for _, g := range gaps {
		d := g - mean
		variance += d * d
	}
	variance /= float64(len(gaps))
	threshold := mean + 2*math.Sqrt(variance)

	for i, g := range gaps {
		if g > threshold {
			return sorted[:i+1]
		}
	}
	return sorted
}

// makeBuckets partitions sorted prices into ⌈√n⌉ equal-width buckets.
// A zero price range collapses to a single bucket.
func makeBuckets(sorted []float64) []bucket {
	n := len(sorted)
	lo, hi := sorted[0], sorted[n-1]

	count := int(math.Ceil(math.Sqrt(float64(n))))
	if count < 1 || hi == lo {
		count = 1
	}
	width := (hi - lo) / float64(count)

	buckets := make([]bucket, count)
	for i := range buckets {
		buckets[i].lower = lo + float64(i)*width
		buckets[i].upper = lo + float64(i+1)*width
	}
	buckets[count-1].upper = hi

	for _, p := range sorted {
		idx := count - 1
		if width > 0 {
			idx = int((p - lo) / width)
			if idx >= count {
				idx = count - 1
			}
		}
		buckets[idx].members = append(buckets[idx].members, p)
	}
	return buckets
}

// deepestBucket picks the bucket with the most members, breaking ties
// toward the cheaper side.
func deepestBucket(buckets []bucket) bucket {
	best := 0
	for i := 1; i < len(buckets); i++ {
		if len(buckets[i].members) > len(buckets[best].members) {
			best = i
		}
	}
	return buckets[best]
}

// memberMidpoint is the midpoint of the bucket's actual member prices,
// not its nominal bounds; a bucket of identical asks yields that ask.
func memberMidpoint(b bucket) float64 {
	lo := b.members[0]
	hi := b.members[len(b.members)-1]
	return (lo + hi) / 2
}

func clamp01(v float64) float64 {
	return math.Min(1.0, math.Max(0.0, v))
}

// tierFor maps a continuous confidence score to the coarse label used by
// API consumers.
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
