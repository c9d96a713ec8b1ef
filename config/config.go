// Package config holds the fully enumerated backtest run configuration with
// documented defaults, loaded from explicit JSON files
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/thrasher-corp/backsim/common/file"
	"github.com/thrasher-corp/backsim/log"
)

// PositionSizing selects how the engine converts a signal into a quantity
type PositionSizing string

// Position sizing policies
const (
	// Fixed commits a constant fraction of initial capital per entry
	Fixed PositionSizing = "fixed"
	// Percent commits a fraction of the current portfolio value per entry
	Percent PositionSizing = "percent"
	// Kelly commits a half-Kelly fraction derived from the run's trade
	// history so far, clamped to [0, 0.25]
	Kelly PositionSizing = "kelly"
)

var (
	errInvalidCapital  = errors.New("initial capital must be positive")
	errNegativeRate    = errors.New("rate cannot be negative")
	errBadPositionSize = errors.New("position size must be in (0, 1]")
	errFileNotFound    = errors.New("config file not found")
)

// Config is one backtest run's settings. Zero values are replaced by
// documented defaults during Validate
type Config struct {
	Strategies        []string        `json:"strategies"`
	InitialCapital    decimal.Decimal `json:"initial_capital"`
	CommissionRate    decimal.Decimal `json:"commission_rate"`
	SlippageRate      decimal.Decimal `json:"slippage_rate"`
	PositionSizing    string          `json:"position_sizing"`
	PositionSize      decimal.Decimal `json:"position_size"`
	MaxPositions      int             `json:"max_positions"`
	WarmupBars        int             `json:"warmup_bars"`
	LookbackWindow    int             `json:"lookback_window"`
	MinConfidence     float64         `json:"min_confidence"`
	UseStops          bool            `json:"use_stops"`
	UseTakeProfit     bool            `json:"use_take_profit"`
	AllowShort        bool            `json:"allow_short"`
	MarginRequirement decimal.Decimal `json:"margin_requirement"`
	RiskFreeRate      float64         `json:"risk_free_rate"`
	OutlierK          float64         `json:"outlier_k"`
}

// Default returns a config with sane working settings
func Default() *Config {
	return &Config{
		Strategies:        []string{"buyandhold"},
		InitialCapital:    decimal.NewFromInt(100000),
		CommissionRate:    decimal.NewFromFloat(0.001),
		SlippageRate:      decimal.NewFromFloat(0.0005),
		PositionSizing:    string(Fixed),
		PositionSize:      decimal.NewFromFloat(0.1),
		MaxPositions:      5,
		LookbackWindow:    50,
		MarginRequirement: decimal.NewFromInt(1),
	}
}

// ReadConfigFromFile will take a config from a path
func ReadConfigFromFile(path string) (*Config, error) {
	if !file.Exists(path) {
		return nil, fmt.Errorf("%w: %v", errFileNotFound, path)
	}
	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadConfig(fileData)
}

// LoadConfig unmarshals byte data into a config struct
func LoadConfig(data []byte) (*Config, error) {
	resp := new(Config)
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Validate checks all config settings and fills defaults for unset fields
func (c *Config) Validate() error {
	if c.InitialCapital.LessThanOrEqual(decimal.Zero) {
		return errInvalidCapital
	}
	if c.CommissionRate.IsNegative() || c.SlippageRate.IsNegative() {
		return errNegativeRate
	}
	if c.PositionSize.IsZero() {
		c.PositionSize = decimal.NewFromFloat(0.1)
	}
	if c.PositionSize.LessThanOrEqual(decimal.Zero) || c.PositionSize.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: %v", errBadPositionSize, c.PositionSize)
	}
	if c.MarginRequirement.LessThanOrEqual(decimal.Zero) {
		c.MarginRequirement = decimal.NewFromInt(1)
	}
	if c.MaxPositions <= 0 {
		c.MaxPositions = 5
	}
	if c.LookbackWindow <= 0 {
		c.LookbackWindow = 50
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		c.MinConfidence = 0
	}
	if c.WarmupBars < 0 {
		c.WarmupBars = 0
	}
	// unknown sizing modes fall back to fixed rather than failing the run
	c.PositionSizing = string(c.SizingMode())
	return nil
}

// SizingMode returns the configured position sizing policy, falling back to
// fixed on an unknown mode
func (c *Config) SizingMode() PositionSizing {
	switch PositionSizing(strings.ToLower(c.PositionSizing)) {
	case Percent:
		return Percent
	case Kelly:
		return Kelly
	case Fixed, "":
		return Fixed
	}
	log.Warnf(log.Backtester, "unknown position sizing mode %q, using fixed", c.PositionSizing)
	return Fixed
}
