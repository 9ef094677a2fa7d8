package floor

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"

	"cardpricer/internal/listing"
	"cardpricer/internal/model"
	"cardpricer/internal/testutil"
)

func newService(repo listing.Repository) *HybridService {
	return NewHybridService(slog.Default(), repo)
}

func TestGetFloorPrice_SalesWinOverStrongOrderBook(t *testing.T) {
	repo := listing.NewMemoryRepository()
	f := testutil.NewListingFactory(1)

	// Five qualifying sales.
	for _, p := range []float64{10, 11, 12, 13, 14} {
		repo.Add(f.Sold("c1", p, 2))
	}
	// A deep, fresh order book that would score high confidence.
	for i := 0; i < 10; i++ {
		repo.Add(f.Active("c1", 20, 1))
	}

	est, err := newService(repo).GetFloorPrice(context.Background(), "c1", "Classic Paper", 30, nil)
	if err != nil {
		t.Fatalf("floor: %v", err)
	}
	if est.Source != model.SourceSales {
		t.Fatalf("rule 1 must precede rule 2: got source %s", est.Source)
	}
	if est.Tier != model.TierHigh {
		t.Errorf("expected HIGH tier for >=4 sales, got %s", est.Tier)
	}
	want := (10.0 + 11 + 12 + 13) / 4
	if est.Price == nil || math.Abs(*est.Price-want) > 1e-9 {
		t.Errorf("expected sales floor %.2f, got %v", want, est.Price)
	}
}

func TestGetFloorPrice_OrderBookWhenSalesSparse(t *testing.T) {
	repo := listing.NewMemoryRepository()
	f := testutil.NewListingFactory(2)

	repo.Add(f.Sold("c1", 9, 2)) // one sale: not enough for any sales rule
	for i := 0; i < 8; i++ {
		repo.Add(f.Active("c1", 15, 1))
	}

	est, err := newService(repo).GetFloorPrice(context.Background(), "c1", "Classic Paper", 30, nil)
	if err != nil {
		t.Fatalf("floor: %v", err)
	}
	if est.Source != model.SourceOrderBook {
		t.Fatalf("expected order_book source, got %s", est.Source)
	}
	if est.Tier != model.TierHigh {
		t.Errorf("confidence 1.0 should map to HIGH, got %s", est.Tier)
	}
}

func TestGetFloorPrice_SparseSalesBeatWeakBook(t *testing.T) {
	repo := listing.NewMemoryRepository()
	f := testutil.NewListingFactory(3)

	repo.Add(f.Sold("c1", 10, 2), f.Sold("c1", 12, 3))
	// No active listings at all: order book abstains.

	est, err := newService(repo).GetFloorPrice(context.Background(), "c1", "Classic Paper", 30, nil)
	if err != nil {
		t.Fatalf("floor: %v", err)
	}
	if est.Source != model.SourceSales {
		t.Fatalf("expected sales source, got %s", est.Source)
	}
	if est.Tier != model.TierLow {
		t.Errorf("expected LOW tier for 2 sales, got %s", est.Tier)
	}

	repo.Add(f.Sold("c1", 11, 4))
	est, err = newService(repo).GetFloorPrice(context.Background(), "c1", "Classic Paper", 30, nil)
	if err != nil {
		t.Fatalf("floor: %v", err)
	}
	if est.Tier != model.TierMedium {
		t.Errorf("expected MEDIUM tier for 3 sales, got %s", est.Tier)
	}
}

func TestGetFloorPrice_WidensWindowForSales(t *testing.T) {
	repo := listing.NewMemoryRepository()
	f := testutil.NewListingFactory(4)

	// Four sales between 31 and 90 days old, nothing newer.
	for i, p := range []float64{10, 11, 12, 13} {
		repo.Add(f.Sold("c1", p, 35+i*10))
	}

	est, err := newService(repo).GetFloorPrice(context.Background(), "c1", "Classic Paper", 30, nil)
	if err != nil {
		t.Fatalf("floor: %v", err)
	}
	if est.Price == nil {
		t.Fatal("expected non-nil floor after 90-day fallback")
	}
	if est.Source != model.SourceSalesFallback {
		t.Errorf("expected sales_fallback source, got %s", est.Source)
	}
}

func TestGetFloorPrice_NoDataIsNoneNeverZero(t *testing.T) {
	repo := listing.NewMemoryRepository()

	est, err := newService(repo).GetFloorPrice(context.Background(), "c1", "Classic Paper", 30, nil)
	if err != nil {
		t.Fatalf("floor: %v", err)
	}
	if est.Source != model.SourceNone {
		t.Errorf("expected source none, got %s", est.Source)
	}
	if est.Price != nil {
		t.Errorf("absence must be nil, never %v", *est.Price)
	}
	if est.Confidence != 0 {
		t.Errorf("expected zero confidence, got %f", est.Confidence)
	}
}

func TestGetFloorPrice_PoolsAcrossPlatforms(t *testing.T) {
	repo := listing.NewMemoryRepository()
	f := testutil.NewListingFactory(5)

	repo.Add(
		testutil.WithPlatform(f.Sold("c1", 10, 1), model.PlatformEbay),
		testutil.WithPlatform(f.Sold("c1", 11, 2), model.PlatformOpenSea),
		testutil.WithPlatform(f.Sold("c1", 12, 3), model.PlatformBlokpax),
		testutil.WithPlatform(f.Sold("c1", 13, 4), model.PlatformEbay),
	)

	est, err := newService(repo).GetFloorPrice(context.Background(), "c1", "Classic Paper", 30, model.AllPlatforms())
	if err != nil {
		t.Fatalf("floor: %v", err)
	}
	// Pooled count reaches four, so rule 1 applies even though no single
	// platform has enough sales on its own.
	if est.Source != model.SourceSales || est.Tier != model.TierHigh {
		t.Errorf("expected pooled sales HIGH, got %s/%s", est.Source, est.Tier)
	}
	if est.TotalListings != 4 {
		t.Errorf("expected 4 pooled sales, got %d", est.TotalListings)
	}
}

type failingRepo struct{}

func (failingRepo) QueryListings(ctx context.Context, q listing.Query) ([]model.Listing, error) {
	return nil, errors.New("connection refused")
}

func TestGetFloorPrice_RepositoryErrorPropagates(t *testing.T) {
	_, err := newService(failingRepo{}).GetFloorPrice(context.Background(), "c1", "", 30, nil)
	if err == nil {
		t.Fatal("expected upstream error")
	}
	if !errors.Is(err, model.ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}
