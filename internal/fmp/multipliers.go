package fmp

// Multipliers holds the rarity and treatment lookup tables plus the
// liquidity curve. Tables are configuration: unknown names fall back to
// a neutral 1.0 rather than failing the calculation.
type Multipliers struct {
	Rarity    map[string]float64
	Treatment map[string]float64
	Liquidity LiquidityCurve
}

// DefaultMultipliers returns the shipped lookup tables.
func DefaultMultipliers() Multipliers {
	return Multipliers{
		Rarity: map[string]float64{
			"Common":    1.0,
			"Uncommon":  1.5,
			"Rare":      3.0,
			"Epic":      6.0,
			"Legendary": 12.0,
			"Mythic":    20.0,
		},
		Treatment: map[string]float64{
			"Classic Paper":  1.0,
			"Classic Foil":   1.3,
			"Gold Foil":      2.5,
			"Serialized":     5.0,
			"OCM Serialized": 10.0,
		},
		Liquidity: DefaultLiquidityCurve(),
	}
}

// RarityMultiplier looks up a rarity, defaulting to neutral.
func (m Multipliers) RarityMultiplier(name string) float64 {
	if v, ok := m.Rarity[name]; ok {
		return v
	}
	return 1.0
}

// TreatmentMultiplier looks up a treatment, defaulting to neutral.
func (m Multipliers) TreatmentMultiplier(name string) float64 {
	if v, ok := m.Treatment[name]; ok {
		return v
	}
	return 1.0
}

// Empty reports whether both tables are absent, which forces the
// unavailable calculation method instead of a fabricated formula result.
func (m Multipliers) Empty() bool {
	return len(m.Rarity) == 0 && len(m.Treatment) == 0
}

// LiquidityCurve maps trailing sale volume to a price adjustment.
// The bounds are a hard invariant; the ramp between them is tunable.
type LiquidityCurve struct {
	Min        float64 // adjustment for an illiquid card
	Max        float64 // adjustment once volume saturates
	FullVolume int     // trailing sales at which the ramp tops out
}

// DefaultLiquidityCurve returns the shipped linear ramp.
func DefaultLiquidityCurve() LiquidityCurve {
	return LiquidityCurve{Min: 0.85, Max: 1.0, FullVolume: 20}
}

// Adjust returns the liquidity adjustment for a trailing sale count.
// The result is always within [0.85, 1.0] no matter how the curve is
// configured: an adjustment outside those bounds is never fabricated.
func (c LiquidityCurve) Adjust(trailingSales int) float64 {
	lo, hi := c.Min, c.Max
	if lo < 0.85 {
		lo = 0.85
	}
	if hi > 1.0 {
		hi = 1.0
	}
	if hi < lo {
		hi = lo
	}

	full := c.FullVolume
	if full <= 0 {
		full = DefaultLiquidityCurve().FullVolume
	}

	ratio := float64(trailingSales) / float64(full)
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	return lo + (hi-lo)*ratio
}
