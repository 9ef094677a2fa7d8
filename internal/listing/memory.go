package listing

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"cardpricer/internal/model"
)

// MemoryRepository is an in-memory Repository. It backs tests and serves
// as the fallback store when no database is configured.
type MemoryRepository struct {
	mu       sync.RWMutex
	listings []model.Listing
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Add stores listings, assigning IDs to any that lack one.
func (r *MemoryRepository) Add(listings ...model.Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range listings {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		r.listings = append(r.listings, l)
	}
}

// QueryListings returns matching listings ordered by effective date descending.
func (r *MemoryRepository) QueryListings(ctx context.Context, q Query) ([]model.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Listing
	for _, l := range r.listings {
		if matches(l, q) {
			out = append(out, l)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveDate().After(out[j].EffectiveDate())
	})

	return out, nil
}

// Len returns the number of stored listings.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listings)
}
