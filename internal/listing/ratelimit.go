package listing

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"cardpricer/internal/model"
)

// RateLimitedRepository throttles queries against a shared upstream.
// Repository reads ride on the same database as the ingestion pipeline, so
// burst traffic from batch jobs gets smoothed here rather than at the pool.
type RateLimitedRepository struct {
	inner   Repository
	limiter *rate.Limiter
}

// NewRateLimitedRepository wraps repo with a token-bucket limiter allowing
// rps queries per second with the given burst.
func NewRateLimitedRepository(repo Repository, rps float64, burst int) *RateLimitedRepository {
	return &RateLimitedRepository{
		inner:   repo,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// QueryListings waits for limiter capacity, honoring context cancellation,
// then delegates to the wrapped repository.
func (r *RateLimitedRepository) QueryListings(ctx context.Context, q Query) ([]model.Listing, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return r.inner.QueryListings(ctx, q)
}
