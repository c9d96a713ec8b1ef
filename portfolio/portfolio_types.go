package portfolio

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thrasher-corp/backsim/order"
)

var (
	// ErrInvalidInitialCapital occurs on portfolio creation with no funds
	ErrInvalidInitialCapital = errors.New("initial capital must be positive")
	// ErrInvalidQuantity occurs when an order is submitted with a zero or
	// negative quantity
	ErrInvalidQuantity = errors.New("invalid order quantity")
	// ErrInsufficientBuyingPower occurs when a buy's estimated notional
	// exceeds cash scaled by the margin requirement
	ErrInsufficientBuyingPower = errors.New("insufficient buying power")
	// ErrInsufficientPosition occurs when a sell exceeds the held quantity
	// and shorting is not allowed
	ErrInsufficientPosition = errors.New("insufficient position")
	// ErrInsufficientFunds occurs at execution time when costs exceed cash
	ErrInsufficientFunds = errors.New("insufficient funds for trade costs")
	// ErrNoPosition occurs when a sell is submitted with nothing held
	ErrNoPosition = errors.New("no position held")
)

// Position tracks one symbol's holding. Average cost is a weighted average
// recomputed on every increase and untouched by reductions. Quantity only
// goes negative when the owning portfolio allows shorting
type Position struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	AverageCost  decimal.Decimal `json:"average_cost"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
	OpenedAt     time.Time       `json:"opened_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Trade is the immutable record of one successful execution
type Trade struct {
	Timestamp   time.Time       `json:"timestamp"`
	Symbol      string          `json:"symbol"`
	Side        order.Side      `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Value       decimal.Decimal `json:"value"`
	Commission  decimal.Decimal `json:"commission"`
	Slippage    decimal.Decimal `json:"slippage"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Strategy    string          `json:"strategy,omitempty"`
}

// PositionSnapshot is the per position detail captured inside a snapshot
type PositionSnapshot struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AverageCost   decimal.Decimal `json:"average_cost"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// Snapshot is one append-only, never mutated point on the equity curve,
// taken exactly once per simulated bar in timestamp order
type Snapshot struct {
	Timestamp      time.Time          `json:"timestamp"`
	Cash           decimal.Decimal    `json:"cash"`
	PositionsValue decimal.Decimal    `json:"positions_value"`
	TotalValue     decimal.Decimal    `json:"total_value"`
	RealizedPnL    decimal.Decimal    `json:"realized_pnl"`
	UnrealizedPnL  decimal.Decimal    `json:"unrealized_pnl"`
	Positions      []PositionSnapshot `json:"positions,omitempty"`
}

// Portfolio owns cash, open positions and the running P&L of a single
// backtest run. Cash and positions are mutated exclusively through
// SubmitOrder and ExecuteOrder
type Portfolio struct {
	initialCapital    decimal.Decimal
	cash              decimal.Decimal
	commissionRate    decimal.Decimal
	slippageRate      decimal.Decimal
	marginRequirement decimal.Decimal
	allowShort        bool

	positions    map[string]*Position
	openOrders   []*order.Order
	filledOrders []*order.Order
	trades       []Trade
	snapshots    []Snapshot
	realizedPnL  decimal.Decimal
}
