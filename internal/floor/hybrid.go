package floor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cardpricer/internal/listing"
	"cardpricer/internal/model"
	"cardpricer/internal/orderbook"
	"cardpricer/internal/sales"
)

const (
	// salesPreferredMin is how many in-window sales make sales data the
	// preferred floor source outright.
	salesPreferredMin = 4

	// salesUsableMin is the weakest sale count still worth reporting
	// when the order book is too thin.
	salesUsableMin = 2

	// orderBookMinConfidence gates order-book floors: below this the
	// book is too shallow or stale to trust over sparse sales.
	orderBookMinConfidence = 0.30

	widenedLookbackDays = 90
)

// HybridService is the single entry point for floor prices. It ranks
// sales-derived and order-book-derived floors by data sufficiency and
// pools sales across platforms before deciding.
type HybridService struct {
	repo   listing.Repository
	book   *orderbook.Analyzer
	sales  *sales.Calculator
	logger *slog.Logger
	now    func() time.Time
}

// NewHybridService wires the two strategies over one repository.
func NewHybridService(logger *slog.Logger, repo listing.Repository) *HybridService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridService{
		repo:   repo,
		book:   orderbook.NewAnalyzer(repo),
		sales:  sales.NewCalculator(repo),
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source on the service and both strategies.
func (s *HybridService) WithClock(now func() time.Time) *HybridService {
	s.now = now
	s.book.WithClock(now)
	s.sales.WithClock(now)
	return s
}

// EstimateFloor exposes the raw order-book estimate (nil for thin books).
func (s *HybridService) EstimateFloor(ctx context.Context, cardID, variant string, days int) (*model.FloorEstimate, error) {
	return s.book.EstimateFloor(ctx, cardID, variant, days)
}

// GetFloorPrice returns the best available floor for a variant. It never
// returns an error for missing data: absence is a SourceNone estimate.
// Only repository failures surface as errors.
func (s *HybridService) GetFloorPrice(ctx context.Context, cardID, variant string, days int, platforms []model.Platform) (model.FloorEstimate, error) {
	if days <= 0 {
		days = orderbook.DefaultLookbackDays
	}

	pooled, widened, err := s.pooledSales(ctx, cardID, variant, days, platforms)
	if err != nil {
		return model.FloorEstimate{}, err
	}

	// Rule 1: enough sales make the backward-looking floor authoritative.
	if len(pooled) >= salesPreferredMin {
		est := s.sales.EstimateFromSales(pooled, days, widened)
		est.Tier = model.TierHigh
		annotate(&est, platforms, "sales_sufficient")
		return est, nil
	}

	// Rule 2: a credible order book beats sparse sales.
	bookEst, err := s.book.EstimateFloor(ctx, cardID, variant, days)
	if err != nil {
		return model.FloorEstimate{}, err
	}
	if bookEst != nil && bookEst.Confidence > orderBookMinConfidence {
		est := *bookEst
		if est.Confidence > 0.6 {
			est.Tier = model.TierHigh
		} else {
			est.Tier = model.TierMedium
		}
		annotate(&est, platforms, "order_book_confident")
		return est, nil
	}

	// Rule 3: a couple of sales still beat nothing.
	if len(pooled) >= salesUsableMin {
		est := s.sales.EstimateFromSales(pooled, days, widened)
		if len(pooled) == salesUsableMin {
			est.Tier = model.TierLow
		} else {
			est.Tier = model.TierMedium
		}
		annotate(&est, platforms, "sales_sparse")
		return est, nil
	}

	s.logger.Debug("no qualifying floor data",
		"card_id", cardID, "variant", variant, "days", days,
		"sales", len(pooled))
	est := model.NoEstimate()
	annotate(&est, platforms, "insufficient_data")
	return est, nil
}

// pooledSales gathers sold listings from every enabled platform into one
// effective-date-ordered sequence, widening the window once if empty.
// Platform identity survives only in the listings themselves; it never
// biases the ranking.
func (s *HybridService) pooledSales(ctx context.Context, cardID, variant string, days int, platforms []model.Platform) ([]model.Listing, bool, error) {
	rows, err := s.fanOut(ctx, cardID, variant, days, platforms)
	if err != nil {
		return nil, false, err
	}
	if len(rows) > 0 || days >= widenedLookbackDays {
		return rows, false, nil
	}

	rows, err = s.fanOut(ctx, cardID, variant, widenedLookbackDays, platforms)
	if err != nil {
		return nil, false, err
	}
	return rows, len(rows) > 0, nil
}

func (s *HybridService) fanOut(ctx context.Context, cardID, variant string, days int, platforms []model.Platform) ([]model.Listing, error) {
	since := s.now().AddDate(0, 0, -days)

	if len(platforms) <= 1 {
		rows, err := s.repo.QueryListings(ctx, listing.Query{
			CardID:    cardID,
			Variant:   variant,
			Kind:      model.KindSold,
			Platforms: platforms,
			Since:     since,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrUpstream, err)
		}
		return rows, nil
	}

	var (
		mu     sync.Mutex
		merged []model.Listing
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range platforms {
		p := p
		g.Go(func() error {
			rows, err := s.repo.QueryListings(gctx, listing.Query{
				CardID:    cardID,
				Variant:   variant,
				Kind:      model.KindSold,
				Platforms: []model.Platform{p},
				Since:     since,
			})
			if err != nil {
				return fmt.Errorf("%w: %s: %v", model.ErrUpstream, p, err)
			}
			mu.Lock()
			merged = append(merged, rows...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].EffectiveDate().After(merged[j].EffectiveDate())
	})
	return merged, nil
}

func annotate(est *model.FloorEstimate, platforms []model.Platform, rule string) {
	if est.Metadata == nil {
		est.Metadata = map[string]string{}
	}
	est.Metadata["decision"] = rule
	est.Metadata["platforms"] = platformList(platforms)
}

func platformList(platforms []model.Platform) string {
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
