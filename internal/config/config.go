// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for databases and cache snapshots
	LogLevel string
	Port     int
	DevMode  bool
	Risk     RiskParams
}

// RiskParams holds the tunable parameters of the risk engine, including the
// fallback estimates used when no market data is available. Hoisting them
// here keeps the engine deterministic under test: override the struct instead
// of relying on hidden defaults.
type RiskParams struct {
	FallbackVolatility  float64       // annualized, used when no return history exists
	FallbackCorrelation float64       // pairwise, used when no overlap exists
	FallbackPrice       float64       // used when a position carries no underlying price
	LookbackDays        int           // default historical window
	CacheMaxAge         time.Duration // correlation/volatility cache freshness window
	DeltaHedgeThreshold float64       // absolute delta-dollars before a hedge is proposed
	GammaHedgeThreshold float64
	VegaHedgeThreshold  float64
}

// DefaultRiskParams returns the documented fallback constants.
func DefaultRiskParams() RiskParams {
	return RiskParams{
		FallbackVolatility:  0.25,
		FallbackCorrelation: 0.5,
		FallbackPrice:       100.0,
		LookbackDays:        252,
		CacheMaxAge:         24 * time.Hour,
		DeltaHedgeThreshold: 1000.0,
		GammaHedgeThreshold: 50.0,
		VegaHedgeThreshold:  500.0,
	}
}

// Load reads configuration from environment variables. A .env file is loaded
// first when present; real environment variables win over file entries.
func Load() (*Config, error) {
	// Ignore the error: a missing .env file is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:  getEnv("DATA_DIR", "./data"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvInt("PORT", 8090),
		DevMode:  getEnvBool("DEV_MODE", false),
		Risk:     DefaultRiskParams(),
	}

	if v := os.Getenv("RISK_FALLBACK_VOLATILITY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RISK_FALLBACK_VOLATILITY: %w", err)
		}
		cfg.Risk.FallbackVolatility = f
	}
	if v := os.Getenv("RISK_FALLBACK_CORRELATION"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RISK_FALLBACK_CORRELATION: %w", err)
		}
		cfg.Risk.FallbackCorrelation = f
	}
	cfg.Risk.LookbackDays = getEnvInt("RISK_LOOKBACK_DAYS", cfg.Risk.LookbackDays)

	abs, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	cfg.DataDir = abs

	return cfg, nil
}

// HistoryDBPath returns the path of the price-history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// CacheSnapshotPath returns the path of the correlation cache snapshot.
func (c *Config) CacheSnapshotPath() string {
	return filepath.Join(c.DataDir, "riskcache.msgpack")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
