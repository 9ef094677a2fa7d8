package testutil

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"cardpricer/internal/model"
)

// ListingFactory generates deterministic listing fixtures for tests.
type ListingFactory struct {
	rand *rand.Rand
}

// NewListingFactory creates a factory with a seeded random generator.
// A zero seed falls back to the clock.
func NewListingFactory(seed int64) *ListingFactory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &ListingFactory{rand: rand.New(rand.NewSource(seed))}
}

// Active builds an active ask observed daysOld days ago.
func (f *ListingFactory) Active(cardID string, price float64, daysOld int) model.Listing {
	return model.Listing{
		ID:         uuid.NewString(),
		CardID:     cardID,
		Treatment:  "Classic Paper",
		Price:      price,
		Quantity:   1,
		Kind:       model.KindActive,
		Platform:   model.PlatformEbay,
		ObservedAt: time.Now().AddDate(0, 0, -daysOld),
	}
}

// Sold builds a completed sale dated daysOld days ago.
func (f *ListingFactory) Sold(cardID string, price float64, daysOld int) model.Listing {
	soldAt := time.Now().AddDate(0, 0, -daysOld)
	return model.Listing{
		ID:         uuid.NewString(),
		CardID:     cardID,
		Treatment:  "Classic Paper",
		Price:      price,
		Quantity:   1,
		Kind:       model.KindSold,
		Platform:   model.PlatformEbay,
		SoldAt:     &soldAt,
		ObservedAt: soldAt.Add(6 * time.Hour),
	}
}

// WithTreatment sets the treatment on a listing.
func WithTreatment(l model.Listing, treatment string) model.Listing {
	l.Treatment = treatment
	return l
}

// WithPlatform sets the platform on a listing.
func WithPlatform(l model.Listing, p model.Platform) model.Listing {
	l.Platform = p
	return l
}

// WithSubtype marks a listing as sealed product.
func WithSubtype(l model.Listing, subtype string) model.Listing {
	l.ProductSubtype = subtype
	return l
}

// BulkLot marks a listing as a bulk lot.
func BulkLot(l model.Listing) model.Listing {
	l.IsBulkLot = true
	return l
}

// Price generates a random price between $5 and $500.
func (f *ListingFactory) Price() float64 {
	return 5 + f.rand.Float64()*495
}
