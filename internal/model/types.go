package model

import "time"

// Platform identifies the marketplace a listing was observed on.
type Platform string

const (
	PlatformEbay    Platform = "ebay"
	PlatformOpenSea Platform = "opensea"
	PlatformBlokpax Platform = "blokpax"
)

// AllPlatforms returns every platform the ingestion pipeline scrapes.
func AllPlatforms() []Platform {
	return []Platform{PlatformEbay, PlatformOpenSea, PlatformBlokpax}
}

// ListingKind distinguishes active asks from completed sales.
type ListingKind string

const (
	KindActive ListingKind = "active"
	KindSold   ListingKind = "sold"
)

// Listing is one marketplace observation, produced by the ingestion
// pipeline and immutable from the engine's point of view.
type Listing struct {
	ID             string
	CardID         string
	Treatment      string // e.g. "Classic Paper", "Classic Foil"
	ProductSubtype string // set for sealed product ("Booster Box", ...), empty for singles
	Price          float64
	Quantity       int
	Kind           ListingKind
	Platform       Platform
	ListedAt       *time.Time // may be nil
	SoldAt         *time.Time // may be nil for active listings
	ObservedAt     time.Time
	IsBulkLot      bool
}

// EffectiveDate is the timestamp used for all window filtering:
// the sale date when known, otherwise when the listing was observed.
func (l Listing) EffectiveDate() time.Time {
	if l.SoldAt != nil {
		return *l.SoldAt
	}
	return l.ObservedAt
}

// VariantLabel collapses a listing's variant dimensions into the single
// label used for grouping: product subtype wins over treatment.
func (l Listing) VariantLabel() string {
	if l.ProductSubtype != "" {
		return l.ProductSubtype
	}
	return l.Treatment
}

// VariantKey groups listings into comparable pricing buckets.
// Every listing maps to exactly one key.
type VariantKey struct {
	CardID  string
	Variant string
}

// Key returns the VariantKey for this listing.
func (l Listing) Key() VariantKey {
	return VariantKey{CardID: l.CardID, Variant: l.VariantLabel()}
}

// FloorSource records which strategy produced a floor estimate.
type FloorSource string

const (
	SourceOrderBook     FloorSource = "order_book"
	SourceSales         FloorSource = "sales"
	SourceSalesFallback FloorSource = "sales_fallback"
	SourceNone          FloorSource = "none"
)

// ConfidenceTier is the coarse label derived from a continuous score.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "HIGH"
	TierMedium ConfidenceTier = "MEDIUM"
	TierLow    ConfidenceTier = "LOW"
	TierNone   ConfidenceTier = "NONE"
)

// FloorEstimate is an immutable floor-price valuation. Price is nil when
// no qualifying data exists; it is never reported as zero.
type FloorEstimate struct {
	Price         *float64          `json:"price"`
	Confidence    float64           `json:"confidence"`
	Tier          ConfidenceTier    `json:"tier"`
	Source        FloorSource       `json:"source"`
	TotalListings int               `json:"total_listings"`
	StaleCount    int               `json:"stale_count"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NoEstimate is the canonical "no qualifying data" result.
func NoEstimate() FloorEstimate {
	return FloorEstimate{Source: SourceNone, Tier: TierNone}
}

// CalculationMethod records how a fair market price was derived.
type CalculationMethod string

const (
	MethodFormula     CalculationMethod = "formula"
	MethodMedian      CalculationMethod = "median"
	MethodOrderBook   CalculationMethod = "order_book"
	MethodUnavailable CalculationMethod = "unavailable"
)

// FMPBreakdown exposes the factors behind a formula-derived FMP.
type FMPBreakdown struct {
	BaseSetPrice        float64 `json:"base_set_price"`
	RarityMultiplier    float64 `json:"rarity_multiplier"`
	TreatmentMultiplier float64 `json:"treatment_multiplier"`
	LiquidityAdjustment float64 `json:"liquidity_adjustment"`
	TrailingSales       int     `json:"trailing_sales"`
}

// DataQuality flags how much signal backed a result.
type DataQuality struct {
	SaleCount      int  `json:"sale_count"`
	ActiveListings int  `json:"active_listings"`
	WindowWidened  bool `json:"window_widened"`
}

// FairMarketPriceResult carries the normalized valuation for one
// card × variant. FairMarketPrice is nil when no defensible number exists.
type FairMarketPriceResult struct {
	CardID            string            `json:"card_id"`
	Treatment         string            `json:"treatment,omitempty"`
	FairMarketPrice   *float64          `json:"fair_market_price"`
	FloorPrice        *float64          `json:"floor_price"`
	Confidence        float64           `json:"confidence"`
	CalculationMethod CalculationMethod `json:"calculation_method"`
	Breakdown         *FMPBreakdown     `json:"breakdown,omitempty"`
	DataQuality       DataQuality       `json:"data_quality"`
}

// TreatmentFMP is one row of a per-treatment FMP sweep.
type TreatmentFMP struct {
	Treatment       string   `json:"treatment"`
	FairMarketPrice *float64 `json:"fair_market_price"`
	FloorPrice      *float64 `json:"floor_price"`
	Confidence      float64  `json:"confidence"`
}

// Float is a convenience for building optional prices.
func Float(v float64) *float64 { return &v }
