package engine

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thrasher-corp/backsim/breaker"
	"github.com/thrasher-corp/backsim/config"
	"github.com/thrasher-corp/backsim/data"
	"github.com/thrasher-corp/backsim/order"
	"github.com/thrasher-corp/backsim/portfolio"
	"github.com/thrasher-corp/backsim/statistics"
	"github.com/thrasher-corp/backsim/strategies"
)

var (
	// ErrNilConfig occurs when an engine is created without a config
	ErrNilConfig = errors.New("nil config received")
	// ErrNilFeed occurs when an engine is created without a bar feed
	ErrNilFeed = errors.New("nil bar feed received")
	// ErrNoStrategies occurs when an engine is created with nothing to run
	ErrNoStrategies = errors.New("no strategies to run")
	// ErrAlreadyRan occurs when Run is called twice on the same engine, a
	// run owns and consumes its feed iterator
	ErrAlreadyRan = errors.New("engine has already run")
)

// BacktestEngine orchestrates one simulation run. It owns a fresh portfolio
// and a bar feed, feeds bars to the strategies and submits resulting signals
// as orders. Runs are fully deterministic for the same data, config and
// strategies
type BacktestEngine struct {
	cfg       *config.Config
	feed      *data.Feed
	pf        *portfolio.Portfolio
	handlers  []strategies.Handler
	governor  *breaker.CircuitBreaker
	allOrders []*order.Order
	ran       bool
}

// FinalPortfolio summarises the portfolio at the end of a run
type FinalPortfolio struct {
	Cash           decimal.Decimal              `json:"cash"`
	PositionsValue decimal.Decimal              `json:"positions_value"`
	TotalValue     decimal.Decimal              `json:"total_value"`
	RealizedPnL    decimal.Decimal              `json:"realized_pnl"`
	Positions      []portfolio.PositionSnapshot `json:"positions,omitempty"`
}

// Result is the serializable report of one backtest run
type Result struct {
	RunID         string                          `json:"run_id"`
	StrategyName  string                          `json:"strategy_name"`
	Metrics       *statistics.PerformanceMetrics  `json:"metrics"`
	EquityCurve   []portfolio.Snapshot            `json:"equity_curve"`
	Trades        []portfolio.Trade               `json:"trades"`
	Orders        []order.Order                   `json:"orders"`
	FinalHoldings FinalPortfolio                  `json:"final_portfolio"`
	ExecutionTime time.Duration                   `json:"execution_time"`
	BarsProcessed int                             `json:"bars_processed"`
}
