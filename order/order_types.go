package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Side is an order side
type Side string

// Order sides
const (
	Buy     Side = "BUY"
	Sell    Side = "SELL"
	AnySide Side = "ANY"
)

// Type is an order execution style
type Type string

// Order types
const (
	Market       Type = "MARKET"
	Limit        Type = "LIMIT"
	Stop         Type = "STOP"
	StopLimit    Type = "STOP_LIMIT"
	TrailingStop Type = "TRAILING_STOP"
	AnyType      Type = "ANY"
)

// Status defines the lifecycle stage of an order. Terminal statuses are
// final, an order never transitions out of one
type Status string

// Order statuses
const (
	Pending         Status = "PENDING"
	Open            Status = "OPEN"
	PartiallyFilled Status = "PARTIALLY_FILLED"
	Filled          Status = "FILLED"
	Cancelled       Status = "CANCELLED"
	Rejected        Status = "REJECTED"
	Expired         Status = "EXPIRED"
	UnknownStatus   Status = "UNKNOWN"
)

var (
	// ErrSideIsInvalid occurs when the string cannot be matched to a side
	ErrSideIsInvalid = errors.New("order side is invalid")
	// ErrTypeIsInvalid occurs when the string cannot be matched to a type
	ErrTypeIsInvalid = errors.New("order type is invalid")
	// ErrAmountIsInvalid occurs when an order is created with a zero or
	// negative quantity
	ErrAmountIsInvalid = errors.New("order quantity is invalid")
	// ErrSymbolIsEmpty occurs when an order is created without a symbol
	ErrSymbolIsEmpty = errors.New("order symbol is empty")
	// ErrPriceMustBeSetIfLimitOrder limit orders cannot be priced at zero
	ErrPriceMustBeSetIfLimitOrder = errors.New("limit price must be set for a limit order")
	// ErrStopPriceMustBeSet stop orders cannot trigger at zero
	ErrStopPriceMustBeSet = errors.New("stop price must be set for a stop order")
	// ErrStatusIsTerminal occurs on an attempt to transition an order out of
	// a terminal status
	ErrStatusIsTerminal = errors.New("order status is terminal")
)

// Order is a single execution request and its fill state machine. Created by
// the engine from a strategy signal, it is only mutated by Fill and the
// terminal transition helpers
type Order struct {
	ID               string          `json:"id"`
	Symbol           string          `json:"symbol"`
	Side             Side            `json:"side"`
	Quantity         decimal.Decimal `json:"quantity"`
	Type             Type            `json:"order_type"`
	LimitPrice       decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice        decimal.Decimal `json:"stop_price,omitempty"`
	Status           Status          `json:"status"`
	FilledQuantity   decimal.Decimal `json:"filled_quantity"`
	AverageFillPrice decimal.Decimal `json:"average_fill_price"`
	Commission       decimal.Decimal `json:"commission"`
	Slippage         decimal.Decimal `json:"slippage"`
	StopLoss         decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit       decimal.Decimal `json:"take_profit,omitempty"`
	StrategyName     string          `json:"strategy_name,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
