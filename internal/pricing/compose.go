package pricing

import (
	"context"
	"fmt"
	"log/slog"

	"cardpricer/internal/cache"
	"cardpricer/internal/config"
	"cardpricer/internal/database"
	"cardpricer/internal/fmp"
	"cardpricer/internal/listing"
)

// FromConfig assembles the provider stack described by cfg: a Postgres
// repository when DATABASE_URL is set (falling back to the supplied
// repository otherwise), a rate-limit decorator, the configured provider
// implementation and its cache janitor, already started.
func FromConfig(ctx context.Context, cfg config.Config, logger *slog.Logger, fallback listing.Repository) (Provider, *cache.Janitor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var repo listing.Repository
	switch {
	case cfg.DatabaseURL != "":
		pool, err := database.Connect(ctx, database.PoolConfig{
			URL:      cfg.DatabaseURL,
			MinConns: cfg.MinConns,
			MaxConns: cfg.MaxConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("listing store: %w", err)
		}
		repo = database.NewPostgresRepository(pool)
	case fallback != nil:
		repo = fallback
	default:
		return nil, nil, fmt.Errorf("no listing repository configured")
	}

	repo = listing.NewRateLimitedRepository(repo, cfg.RepoRateLimit, cfg.RepoBurst)

	var basePrices fmp.BasePriceSource
	if cfg.BasePrices != nil {
		basePrices = cfg.BasePrices
	}

	provider, janitor := New(Options{
		Repo:            repo,
		Logger:          logger,
		CacheMaxEntries: cfg.CacheMaxEntries,
		BucketWidth:     cfg.BucketWidth,
		LookbackDays:    cfg.LookbackDays,
		FullPricing:     cfg.FullPricing,
		Multipliers:     cfg.Multipliers,
		BasePrices:      basePrices,
	})

	if err := janitor.Start(cfg.JanitorSpec); err != nil {
		return nil, nil, err
	}
	return provider, janitor, nil
}
