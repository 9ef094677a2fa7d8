package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"cardpricer/internal/fmp"
)

// Config holds everything the pricing engine needs at composition time.
type Config struct {
	// DatabaseURL points at the listing store. Empty means the engine
	// runs against an injected repository (tests, embedded use).
	DatabaseURL string
	MinConns    int
	MaxConns    int

	// Repository throttling.
	RepoRateLimit float64 // queries per second
	RepoBurst     int

	// Result cache.
	CacheMaxEntries int
	BucketWidth     time.Duration
	JanitorSpec     string

	// Pricing.
	LookbackDays int
	FullPricing  bool // false selects the floor-only provider
	Multipliers  fmp.Multipliers
	BasePrices   fmp.StaticBasePrices
}

// Load reads configuration from the environment, honoring a .env file
// when present, then applies defaults and validates.
func Load() (Config, error) {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		MinConns:        envInt("DB_MIN_CONNS", 0),
		MaxConns:        envInt("DB_MAX_CONNS", 0),
		RepoRateLimit:   envFloat("REPO_RATE_LIMIT", 0),
		RepoBurst:       envInt("REPO_BURST", 0),
		CacheMaxEntries: envInt("CACHE_MAX_ENTRIES", 0),
		BucketWidth:     envDuration("CACHE_BUCKET_WIDTH", 0),
		JanitorSpec:     os.Getenv("CACHE_JANITOR_SPEC"),
		LookbackDays:    envInt("LOOKBACK_DAYS", 0),
		FullPricing:     envBool("FULL_PRICING", true),
	}

	var err error
	cfg.Multipliers, err = loadMultipliers(os.Getenv("MULTIPLIERS_FILE"))
	if err != nil {
		return Config{}, err
	}
	cfg.BasePrices, err = loadBasePrices(os.Getenv("BASE_PRICES_FILE"))
	if err != nil {
		return Config{}, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default values for optional fields.
const (
	DefaultMinConns        = 2
	DefaultMaxConns        = 10
	DefaultRepoRateLimit   = 50.0
	DefaultRepoBurst       = 10
	DefaultCacheMaxEntries = 4096
	DefaultBucketWidth     = 5 * time.Minute
	DefaultJanitorSpec     = "@every 1m"
	DefaultLookbackDays    = 30
)

func (c *Config) applyDefaults() {
	if c.MinConns == 0 {
		c.MinConns = DefaultMinConns
	}
	if c.MaxConns == 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.RepoRateLimit == 0 {
		c.RepoRateLimit = DefaultRepoRateLimit
	}
	if c.RepoBurst == 0 {
		c.RepoBurst = DefaultRepoBurst
	}
	if c.CacheMaxEntries == 0 {
		c.CacheMaxEntries = DefaultCacheMaxEntries
	}
	if c.BucketWidth == 0 {
		c.BucketWidth = DefaultBucketWidth
	}
	if c.JanitorSpec == "" {
		c.JanitorSpec = DefaultJanitorSpec
	}
	if c.LookbackDays == 0 {
		c.LookbackDays = DefaultLookbackDays
	}
	if c.Multipliers.Rarity == nil && c.Multipliers.Treatment == nil {
		c.Multipliers = fmp.DefaultMultipliers()
	}
	if c.Multipliers.Liquidity == (fmp.LiquidityCurve{}) {
		c.Multipliers.Liquidity = fmp.DefaultLiquidityCurve()
	}
}

// Validate rejects configurations that would misprice silently.
func (c *Config) Validate() error {
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("db min conns %d exceeds max conns %d", c.MinConns, c.MaxConns)
	}
	if c.RepoRateLimit < 0 {
		return fmt.Errorf("repo rate limit must be non-negative, got %f", c.RepoRateLimit)
	}
	if c.BucketWidth < time.Second {
		return fmt.Errorf("cache bucket width %s is below one second", c.BucketWidth)
	}
	if c.LookbackDays < 1 || c.LookbackDays > 365 {
		return fmt.Errorf("lookback days %d outside 1-365", c.LookbackDays)
	}
	for name, v := range c.Multipliers.Rarity {
		if v <= 0 {
			return fmt.Errorf("rarity multiplier %q must be positive, got %f", name, v)
		}
	}
	for name, v := range c.Multipliers.Treatment {
		if v <= 0 {
			return fmt.Errorf("treatment multiplier %q must be positive, got %f", name, v)
		}
	}
	return nil
}

type multiplierFile struct {
	Rarity    map[string]float64 `json:"rarity"`
	Treatment map[string]float64 `json:"treatment"`
	Liquidity struct {
		Min        float64 `json:"min"`
		Max        float64 `json:"max"`
		FullVolume int     `json:"full_volume"`
	} `json:"liquidity"`
}

func loadMultipliers(path string) (fmp.Multipliers, error) {
	if path == "" {
		return fmp.Multipliers{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmp.Multipliers{}, fmt.Errorf("read multipliers file: %w", err)
	}
	var f multiplierFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmp.Multipliers{}, fmt.Errorf("parse multipliers file: %w", err)
	}
	m := fmp.Multipliers{Rarity: f.Rarity, Treatment: f.Treatment}
	if f.Liquidity.FullVolume > 0 {
		m.Liquidity = fmp.LiquidityCurve{
			Min:        f.Liquidity.Min,
			Max:        f.Liquidity.Max,
			FullVolume: f.Liquidity.FullVolume,
		}
	}
	return m, nil
}

func loadBasePrices(path string) (fmp.StaticBasePrices, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read base prices file: %w", err)
	}
	var prices fmp.StaticBasePrices
	if err := json.Unmarshal(data, &prices); err != nil {
		return nil, fmt.Errorf("parse base prices file: %w", err)
	}
	return prices, nil
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
