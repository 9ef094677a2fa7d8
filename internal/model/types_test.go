package model

import (
	"testing"
	"time"
)

func TestEffectiveDate_PrefersSoldAt(t *testing.T) {
	observed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sold := time.Date(2026, 2, 20, 9, 30, 0, 0, time.UTC)

	l := Listing{ObservedAt: observed, SoldAt: &sold}
	if got := l.EffectiveDate(); !got.Equal(sold) {
		t.Errorf("expected sold_at %v, got %v", sold, got)
	}

	l.SoldAt = nil
	if got := l.EffectiveDate(); !got.Equal(observed) {
		t.Errorf("expected observed_at %v, got %v", observed, got)
	}
}

func TestVariantLabel_SubtypeWinsOverTreatment(t *testing.T) {
	cases := []struct {
		name      string
		subtype   string
		treatment string
		want      string
	}{
		{"sealed product", "Booster Box", "Classic Paper", "Booster Box"},
		{"single with treatment", "", "Classic Foil", "Classic Foil"},
		{"nothing set", "", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := Listing{ProductSubtype: tc.subtype, Treatment: tc.treatment}
			if got := l.VariantLabel(); got != tc.want {
				t.Errorf("VariantLabel() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestKey_OnePerListing(t *testing.T) {
	l := Listing{CardID: "card-1", Treatment: "Classic Foil"}
	key := l.Key()
	if key.CardID != "card-1" || key.Variant != "Classic Foil" {
		t.Errorf("unexpected key %+v", key)
	}
}

func TestNoEstimate_NeverZeroPrice(t *testing.T) {
	e := NoEstimate()
	if e.Price != nil {
		t.Errorf("absence must be a nil price, got %v", *e.Price)
	}
	if e.Source != SourceNone {
		t.Errorf("expected source none, got %s", e.Source)
	}
	if e.Confidence != 0 {
		t.Errorf("expected zero confidence, got %f", e.Confidence)
	}
}
