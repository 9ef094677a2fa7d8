package orderbook

import (
	"context"
	"math"
	"testing"

	"cardpricer/internal/listing"
	"cardpricer/internal/model"
	"cardpricer/internal/testutil"
)

func seedActive(repo *listing.MemoryRepository, cardID string, prices []float64, daysOld int) {
	f := testutil.NewListingFactory(42)
	for _, p := range prices {
		repo.Add(f.Active(cardID, p, daysOld))
	}
}

func TestEstimateFloor_DeepestBucketWins(t *testing.T) {
	repo := listing.NewMemoryRepository()
	seedActive(repo, "c1", []float64{10, 10, 10, 10, 50, 50}, 1)

	est, err := NewAnalyzer(repo).EstimateFloor(context.Background(), "c1", "Classic Paper", 30)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est == nil {
		t.Fatal("expected an estimate")
	}
	if est.Price == nil || *est.Price != 10 {
		t.Fatalf("expected floor 10, got %v", est.Price)
	}
	// depth_ratio 4/6, all fresh: 0.5*(4/6) + 0.5*1.
	want := 0.5*(4.0/6.0) + 0.5
	if math.Abs(est.Confidence-want) > 1e-9 {
		t.Errorf("expected confidence %.4f, got %.4f", want, est.Confidence)
	}
	if est.Source != model.SourceOrderBook {
		t.Errorf("expected order_book source, got %s", est.Source)
	}
}

func TestEstimateFloor_OutlierExcludedFromFloor(t *testing.T) {
	repo := listing.NewMemoryRepository()
	seedActive(repo, "c1", []float64{10, 11, 12, 500}, 1)

	est, err := NewAnalyzer(repo).EstimateFloor(context.Background(), "c1", "Classic Paper", 30)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est == nil || est.Price == nil {
		t.Fatal("expected an estimate")
	}
	if math.Abs(*est.Price-11) > 0.5 {
		t.Errorf("expected floor near 11, got %.2f", *est.Price)
	}
}

func TestEstimateFloor_TooFewListings(t *testing.T) {
	repo := listing.NewMemoryRepository()
	seedActive(repo, "c1", []float64{10, 12}, 1)

	est, err := NewAnalyzer(repo).EstimateFloor(context.Background(), "c1", "Classic Paper", 30)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est != nil {
		t.Errorf("expected nil estimate for 2 listings, got %+v", est)
	}
}

func TestEstimateFloor_ZeroVarianceSingleBucket(t *testing.T) {
	repo := listing.NewMemoryRepository()
	seedActive(repo, "c1", []float64{25, 25, 25, 25}, 1)

	est, err := NewAnalyzer(repo).EstimateFloor(context.Background(), "c1", "Classic Paper", 30)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est == nil || est.Price == nil {
		t.Fatal("expected an estimate")
	}
	if *est.Price != 25 {
		t.Errorf("expected floor 25, got %.2f", *est.Price)
	}
	// Single bucket holds everything: depth 1.0, all fresh.
	if est.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %.4f", est.Confidence)
	}
}

func TestEstimateFloor_StaleListingsLowerConfidence(t *testing.T) {
	repo := listing.NewMemoryRepository()
	seedActive(repo, "c1", []float64{20, 20}, 1)
	seedActive(repo, "c1", []float64{20, 20}, 20) // stale, still in window

	est, err := NewAnalyzer(repo).EstimateFloor(context.Background(), "c1", "Classic Paper", 30)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est == nil {
		t.Fatal("expected an estimate")
	}
	// depth 1.0 (single bucket), freshness 0.5.
	want := 0.5 + 0.5*0.5
	if math.Abs(est.Confidence-want) > 1e-9 {
		t.Errorf("expected confidence %.2f, got %.4f", want, est.Confidence)
	}
	if est.StaleCount != 2 {
		t.Errorf("expected 2 stale listings, got %d", est.StaleCount)
	}
}

func TestEstimateFloor_BulkLotsIgnored(t *testing.T) {
	repo := listing.NewMemoryRepository()
	f := testutil.NewListingFactory(7)
	repo.Add(
		testutil.BulkLot(f.Active("c1", 2, 1)),
		f.Active("c1", 10, 1),
		f.Active("c1", 10, 1),
		f.Active("c1", 11, 1),
	)

	est, err := NewAnalyzer(repo).EstimateFloor(context.Background(), "c1", "Classic Paper", 30)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est == nil || est.Price == nil {
		t.Fatal("expected an estimate")
	}
	if *est.Price < 10 {
		t.Errorf("bulk lot leaked into floor: %.2f", *est.Price)
	}
}

func TestEstimateFloor_OutsideWindowReturnsNil(t *testing.T) {
	repo := listing.NewMemoryRepository()
	seedActive(repo, "c1", []float64{10, 11, 12}, 45)

	est, err := NewAnalyzer(repo).EstimateFloor(context.Background(), "c1", "Classic Paper", 30)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est != nil {
		t.Errorf("expected nil for out-of-window listings, got %+v", est)
	}
}

func TestEstimateFloor_ConfidenceBounds(t *testing.T) {
	repo := listing.NewMemoryRepository()
	f := testutil.NewListingFactory(99)
	for i := 0; i < 40; i++ {
		repo.Add(f.Active("c1", f.Price(), i%25))
	}

	est, err := NewAnalyzer(repo).EstimateFloor(context.Background(), "c1", "Classic Paper", 30)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est == nil {
		t.Fatal("expected an estimate")
	}
	if est.Confidence < 0 || est.Confidence > 1 {
		t.Errorf("confidence out of bounds: %f", est.Confidence)
	}
}

func TestTrimHighTail_KeepsAllWhenUniform(t *testing.T) {
	prices := []float64{10, 20, 30, 40}
	kept := trimHighTail(prices)
	if len(kept) != 4 {
		t.Errorf("uniform gaps should not be trimmed, kept %d", len(kept))
	}
}

func TestMakeBuckets_PartitionCount(t *testing.T) {
	buckets := makeBuckets([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9})
	if len(buckets) != 3 { // ceil(sqrt(9))
		t.Fatalf("expected 3 buckets, got %d", len(buckets))
	}
	total := 0
	for _, b := range buckets {
		total += len(b.members)
	}
	if total != 9 {
		t.Errorf("buckets must partition all prices, got %d members", total)
	}
}
