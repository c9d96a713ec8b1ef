package strategies

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thrasher-corp/backsim/data"
)

var (
	// ErrStrategyNotFound occurs when a strategy name has no registered
	// factory
	ErrStrategyNotFound = errors.New("strategy not found")
	// ErrStrategyAlreadyExists occurs when registering a duplicate name
	ErrStrategyAlreadyExists = errors.New("strategy already registered")
	// ErrNilSignal occurs when a strategy returns no signal and no error
	ErrNilSignal = errors.New("nil signal received")
)

// Action is what a strategy wants done in response to market data
type Action string

// Signal actions
const (
	Buy  Action = "buy"
	Sell Action = "sell"
	Hold Action = "hold"
)

// Signal is a strategy's response to one market data view. Confidence is in
// [0,1] and signals below the engine's configured minimum are discarded
type Signal struct {
	Action     Action          `json:"action"`
	Confidence float64         `json:"confidence"`
	Price      decimal.Decimal `json:"price"`
	StopLoss   decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit decimal.Decimal `json:"take_profit,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// MarketData is the bounded view handed to a strategy per bar, the current
// bar plus a trailing window. Strategies must not retain or mutate it
type MarketData struct {
	Symbol     string
	Timestamp  time.Time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
	Price      decimal.Decimal
	Historical []data.Bar
}

// Handler is the one required capability of a strategy, turning a market
// data view into a signal. Implementations may keep internal state per run
type Handler interface {
	Name() string
	OnData(*MarketData) (*Signal, error)
}

// Factory constructs a fresh strategy instance so every run owns its state
type Factory func() Handler
