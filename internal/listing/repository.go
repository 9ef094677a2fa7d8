package listing

import (
	"context"
	"time"

	"cardpricer/internal/model"
)

// Query selects listings for one card. Variant and Platforms narrow the
// result when set; Until is optional and defaults to "no upper bound".
type Query struct {
	CardID    string
	Variant   string // VariantKey label; empty means all variants
	Kind      model.ListingKind
	Platforms []model.Platform // empty means all platforms
	Since     time.Time
	Until     *time.Time
}

// Repository is the read-only listing store populated by the external
// ingestion pipeline. Implementations must return listings ordered by
// effective date descending (sold_at when present, else observed_at).
type Repository interface {
	QueryListings(ctx context.Context, q Query) ([]model.Listing, error)
}

// matches reports whether a listing satisfies the query filters.
// Shared by the in-memory implementation and tests.
func matches(l model.Listing, q Query) bool {
	if l.CardID != q.CardID {
		return false
	}
	if l.Kind != q.Kind {
		return false
	}
	if q.Variant != "" && l.VariantLabel() != q.Variant {
		return false
	}
	if len(q.Platforms) > 0 {
		found := false
		for _, p := range q.Platforms {
			if l.Platform == p {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	eff := l.EffectiveDate()
	if eff.Before(q.Since) {
		return false
	}
	if q.Until != nil && eff.After(*q.Until) {
		return false
	}
	return true
}
