package pricing

import (
	"context"
	"log/slog"
	"time"

	"cardpricer/internal/cache"
	"cardpricer/internal/floor"
	"cardpricer/internal/fmp"
	"cardpricer/internal/listing"
	"cardpricer/internal/model"
)

// Provider is the pricing capability surface consumed by the web API
// layer and batch jobs. Both implementations are chosen explicitly at
// composition time; nothing probes capabilities at load time.
type Provider interface {
	// EstimateFloor exposes the raw order-book floor; nil when the book
	// is too thin.
	EstimateFloor(ctx context.Context, cardID, variant string, days int) (*model.FloorEstimate, error)

	// GetFloorPrice returns the best hybrid floor. Never nil: absence is
	// a SourceNone estimate.
	GetFloorPrice(ctx context.Context, cardID, variant string, days int, platforms []model.Platform) (model.FloorEstimate, error)

	// CalculateFMP computes the fair market price for one variant.
	CalculateFMP(ctx context.Context, req fmp.Request) (model.FairMarketPriceResult, error)

	// FMPByTreatment sweeps the formula across known treatments.
	FMPByTreatment(ctx context.Context, cardID, setName, rarityName string, days int) ([]model.TreatmentFMP, error)
}

// Options configures provider construction.
type Options struct {
	Repo   listing.Repository
	Logger *slog.Logger

	CacheMaxEntries int
	BucketWidth     time.Duration
	LookbackDays    int

	// FullPricing selects the formula-capable provider. Without it (or
	// without any multiplier tables) the floor-only provider is built.
	FullPricing bool
	Multipliers fmp.Multipliers
	BasePrices  fmp.BasePriceSource
}

// New builds the configured provider plus the cache janitor that owns
// its background sweep. The caller starts and stops the janitor.
func New(opts Options) (Provider, *cache.Janitor) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BucketWidth <= 0 {
		opts.BucketWidth = cache.DefaultBucketWidth
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 30
	}

	store := cache.New(opts.CacheMaxEntries)
	janitor := cache.NewJanitor(store, logger)

	// Anchor every computation to the start of the current bucket so
	// concurrent list and detail views agree on cutoffs.
	width := opts.BucketWidth
	bucketNow := func() time.Time {
		return cache.BucketStart(time.Now(), width)
	}

	floors := floor.NewHybridService(logger, opts.Repo).WithClock(bucketNow)

	if !opts.FullPricing || opts.Multipliers.Empty() {
		logger.Info("pricing provider selected", "provider", "floor_only")
		return &FloorOnlyProvider{
			floors:      floors,
			store:       store,
			bucketWidth: width,
			days:        opts.LookbackDays,
			treatments:  treatmentNames(opts.Multipliers),
		}, janitor
	}

	fmpSvc := fmp.NewService(logger, opts.Repo, floors, opts.BasePrices, opts.Multipliers).WithClock(bucketNow)

	logger.Info("pricing provider selected", "provider", "full")
	return &Service{
		floors:      floors,
		fmp:         fmpSvc,
		store:       store,
		bucketWidth: width,
		days:        opts.LookbackDays,
		logger:      logger,
	}, janitor
}

func treatmentNames(m fmp.Multipliers) []string {
	out := make([]string, 0, len(m.Treatment))
	for name := range m.Treatment {
		out = append(out, name)
	}
	return out
}
