package data

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thrasher-corp/backsim/common"
)

var (
	// ErrNoData occurs when iteration is requested before any series has
	// been loaded
	ErrNoData = fmt.Errorf("%w: no data loaded", common.ErrBadData)
	// ErrSymbolNotFound occurs when a series is requested for an unloaded
	// symbol
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrMissingField occurs when a bar is loaded without one of the
	// required open, high, low, close or volume fields
	ErrMissingField = fmt.Errorf("%w: bar missing required field", common.ErrBadData)
	// ErrInvalidRange occurs when a bar's high is below its low
	ErrInvalidRange = fmt.Errorf("%w: bar high below low", common.ErrBadData)
	// ErrInvalidIndex occurs when a lookback is requested outside the series
	ErrInvalidIndex = errors.New("index outside series range")
)

// Bar is one immutable OHLCV sample for a symbol at a timestamp
type Bar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	Symbol    string          `json:"symbol"`
}

// Feed owns per symbol ordered historical OHLCV series and produces aligned,
// warmed up bar cross-sections for the engine loop
type Feed struct {
	series  map[string][]Bar
	symbols []string
	aligned bool
}

// Iterator is a lazy, finite, non restartable walk over the feed's aligned
// cross-sections
type Iterator struct {
	feed   *Feed
	offset int
	length int
}
