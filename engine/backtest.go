package engine

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/thrasher-corp/backsim/breaker"
	"github.com/thrasher-corp/backsim/config"
	"github.com/thrasher-corp/backsim/data"
	"github.com/thrasher-corp/backsim/log"
	"github.com/thrasher-corp/backsim/order"
	"github.com/thrasher-corp/backsim/portfolio"
	"github.com/thrasher-corp/backsim/statistics"
	"github.com/thrasher-corp/backsim/strategies"
)

// New creates an engine with a fresh portfolio built from cfg. governor may
// be nil, the absence of a circuit breaker is equivalent to all Closed
func New(cfg *config.Config, feed *data.Feed, handlers []strategies.Handler, governor *breaker.CircuitBreaker) (*BacktestEngine, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if feed == nil {
		return nil, ErrNilFeed
	}
	if len(handlers) == 0 {
		return nil, ErrNoStrategies
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pf, err := portfolio.New(cfg.InitialCapital, cfg.CommissionRate, cfg.SlippageRate, cfg.MarginRequirement, cfg.AllowShort)
	if err != nil {
		return nil, err
	}
	return &BacktestEngine{
		cfg:      cfg,
		feed:     feed,
		pf:       pf,
		handlers: handlers,
		governor: governor,
	}, nil
}

// Portfolio exposes the engine's portfolio, used by tests and reporting
func (e *BacktestEngine) Portfolio() *portfolio.Portfolio {
	return e.pf
}

// Run executes the simulation loop over the feed and produces the final
// report. Recoverable problems (order rejections, strategy errors) are
// logged and the loop continues; only data problems surfaced before any bar
// is processed fail the run
func (e *BacktestEngine) Run() (*Result, error) {
	if e.ran {
		return nil, ErrAlreadyRan
	}
	e.ran = true
	start := time.Now()

	it, err := e.feed.Iterate(e.cfg.WarmupBars)
	if err != nil {
		return nil, err
	}

	var barsProcessed int
	for {
		batch, index, ok := it.Next()
		if !ok {
			break
		}
		ts := e.batchTime(batch)

		e.markToMarket(batch, ts)
		e.fillPendingOrders(batch, ts)
		e.processSignals(batch, index, ts)
		e.monitorExits(batch, ts)
		e.pf.TakeSnapshot(ts)
		barsProcessed++
	}
	if barsProcessed == 0 {
		return nil, fmt.Errorf("%w after warmup of %v bars", data.ErrNoData, e.cfg.WarmupBars)
	}
	e.pf.ExpireOpenOrders()

	metrics, err := statistics.Analyze(e.pf.Snapshots(), e.pf.Trades(), e.cfg.InitialCapital, e.cfg.RiskFreeRate)
	if err != nil {
		return nil, err
	}
	return e.buildResult(metrics, barsProcessed, time.Since(start)), nil
}

func (e *BacktestEngine) batchTime(batch map[string]data.Bar) time.Time {
	for _, symbol := range e.feed.Symbols() {
		if bar, ok := batch[symbol]; ok {
			return bar.Timestamp
		}
	}
	return time.Time{}
}

func (e *BacktestEngine) markToMarket(batch map[string]data.Bar, ts time.Time) {
	for _, symbol := range e.feed.Symbols() {
		if bar, ok := batch[symbol]; ok {
			e.pf.UpdatePrice(symbol, bar.Close, ts)
		}
	}
}

// fillPendingOrders attempts to execute previously queued limit and stop
// orders against this bar's range
func (e *BacktestEngine) fillPendingOrders(batch map[string]data.Bar, ts time.Time) {
	open := e.pf.OpenOrders()
	pending := make([]*order.Order, len(open))
	copy(pending, open)
	for _, o := range pending {
		bar, ok := batch[o.Symbol]
		if !ok {
			continue
		}
		if !o.CanFillAtPrice(bar.Close, bar.High, bar.Low) {
			continue
		}
		fillPrice := o.FillPrice(bar.Close, e.cfg.SlippageRate)
		if _, err := e.pf.ExecuteOrder(o, fillPrice, ts); err != nil {
			log.Warnf(log.Backtester, "pending order %v not executed: %v", o.ID, err)
		}
	}
}

// processSignals queries every strategy per symbol and turns actionable
// signals into orders. A failing strategy is isolated per bar, it neither
// aborts the run nor contaminates other strategies
func (e *BacktestEngine) processSignals(batch map[string]data.Bar, index int, ts time.Time) {
	for _, h := range e.handlers {
		for _, symbol := range e.feed.Symbols() {
			bar, ok := batch[symbol]
			if !ok {
				continue
			}
			signal, err := e.safeSignal(h, symbol, index, bar)
			if err != nil {
				log.Errorf(log.Strategy, "%v on %v at %v: %v", h.Name(), symbol, ts, err)
				continue
			}
			if signal == nil || signal.Action == strategies.Hold {
				continue
			}
			if signal.Confidence < e.cfg.MinConfidence {
				log.Debugf(log.Strategy, "%v %v signal below confidence floor (%.2f < %.2f)",
					h.Name(), symbol, signal.Confidence, e.cfg.MinConfidence)
				continue
			}
			e.actOnSignal(h.Name(), symbol, signal, bar, ts)
		}
	}
}

func (e *BacktestEngine) safeSignal(h strategies.Handler, symbol string, index int, bar data.Bar) (signal *strategies.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			signal = nil
			err = fmt.Errorf("strategy panic: %v", r)
		}
	}()
	window, err := e.feed.Lookback(symbol, index, e.cfg.LookbackWindow)
	if err != nil {
		return nil, err
	}
	md := &strategies.MarketData{
		Symbol:     symbol,
		Timestamp:  bar.Timestamp,
		Open:       bar.Open,
		High:       bar.High,
		Low:        bar.Low,
		Close:      bar.Close,
		Volume:     bar.Volume,
		Price:      bar.Close,
		Historical: window,
	}
	return h.OnData(md)
}

func (e *BacktestEngine) actOnSignal(strategyName, symbol string, signal *strategies.Signal, bar data.Bar, ts time.Time) {
	side := order.Buy
	if signal.Action == strategies.Sell {
		side = order.Sell
	}

	if e.governor != nil {
		if allowed, status := e.governor.Check(breaker.AnyType, ""); !allowed {
			log.Warnf(log.Backtester, "trading halted globally (%v), discarding %v %v", status, side, symbol)
			return
		}
		if allowed, status := e.governor.Check(breaker.AnyType, symbol); !allowed {
			log.Warnf(log.Backtester, "trading halted for %v (%v), discarding %v", symbol, status, side)
			return
		}
	}

	quantity := e.sizeOrder(side, symbol, bar.Close)
	if quantity.LessThanOrEqual(decimal.Zero) {
		return
	}
	if side == order.Buy &&
		e.pf.Position(symbol) == nil &&
		e.pf.OpenPositionCount() >= e.cfg.MaxPositions {
		log.Debugf(log.Backtester, "max positions (%d) reached, discarding %v buy", e.cfg.MaxPositions, symbol)
		return
	}
	if side == order.Sell && e.pf.Position(symbol) == nil && !e.cfg.AllowShort {
		return
	}

	o, err := order.New(symbol, side, order.Market, quantity)
	if err != nil {
		log.Errorf(log.Backtester, "unable to create order for %v: %v", symbol, err)
		return
	}
	o.StrategyName = strategyName
	o.StopLoss = signal.StopLoss
	o.TakeProfit = signal.TakeProfit
	if signal.Reason != "" {
		o.AppendReason(signal.Reason)
	}
	e.allOrders = append(e.allOrders, o)

	if err := e.pf.SubmitOrder(o, bar.Close); err != nil {
		return // rejection already logged and recorded on the order
	}
	fillPrice := o.FillPrice(bar.Close, e.cfg.SlippageRate)
	if _, err := e.pf.ExecuteOrder(o, fillPrice, ts); err != nil {
		log.Warnf(log.Backtester, "market order %v not executed: %v", o.ID, err)
	}
}

// sizeOrder converts a signal into a quantity using the configured policy
// and the governor's sizing multiplier. Sells of an existing position exit
// the full holding
func (e *BacktestEngine) sizeOrder(side order.Side, symbol string, price decimal.Decimal) decimal.Decimal {
	if side == order.Sell {
		if pos := e.pf.Position(symbol); pos != nil && pos.Quantity.IsPositive() {
			return pos.Quantity
		}
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	fraction := e.sizingFraction()
	if e.governor != nil {
		multiplier := decimal.Min(
			e.governor.GetPositionSizing(breaker.AnyType, ""),
			e.governor.GetPositionSizing(breaker.AnyType, symbol))
		fraction = fraction.Mul(multiplier)
	}
	if fraction.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	base := e.pf.TotalValue()
	if e.cfg.SizingMode() == config.Fixed {
		base = e.cfg.InitialCapital
	}
	return base.Mul(fraction).Div(price).Truncate(8)
}

func (e *BacktestEngine) sizingFraction() decimal.Decimal {
	switch e.cfg.SizingMode() {
	case config.Kelly:
		return e.halfKellyFraction()
	default: // fixed and percent share the configured fraction
		return e.cfg.PositionSize
	}
}

// halfKellyFraction derives a half-Kelly stake from the run's realized trade
// history so far, clamped to [0, 0.25]. With no history it falls back to the
// configured fraction
func (e *BacktestEngine) halfKellyFraction() decimal.Decimal {
	var wins, losses int
	var grossProfit, grossLoss float64
	trades := e.pf.Trades()
	for i := range trades {
		pnl, _ := trades[i].RealizedPnL.Float64()
		switch {
		case pnl > 0:
			wins++
			grossProfit += pnl
		case pnl < 0:
			losses++
			grossLoss += -pnl
		}
	}
	if wins == 0 || losses == 0 {
		return e.cfg.PositionSize
	}
	winRate := float64(wins) / float64(wins+losses)
	payoff := (grossProfit / float64(wins)) / (grossLoss / float64(losses))
	kelly := winRate - (1-winRate)/payoff
	half := kelly / 2
	if half < 0 {
		half = 0
	}
	if half > 0.25 {
		half = 0.25
	}
	return decimal.NewFromFloat(half)
}

// monitorExits synthesises an offsetting market sell when a bar breaches an
// open position's stop loss or take profit. At most one exit fires per
// position per bar and the stop loss is checked first when both could
// trigger within the same bar
func (e *BacktestEngine) monitorExits(batch map[string]data.Bar, ts time.Time) {
	if !e.cfg.UseStops && !e.cfg.UseTakeProfit {
		return
	}
	for _, pos := range e.pf.Positions() {
		if !pos.Quantity.IsPositive() {
			continue
		}
		bar, ok := batch[pos.Symbol]
		if !ok {
			continue
		}
		entry := e.originatingBuy(pos.Symbol)
		if entry == nil {
			continue
		}
		var exitPrice decimal.Decimal
		var reason string
		switch {
		case e.cfg.UseStops && entry.StopLoss.IsPositive() && bar.Low.LessThanOrEqual(entry.StopLoss):
			exitPrice, reason = entry.StopLoss, "stop loss triggered"
		case e.cfg.UseTakeProfit && entry.TakeProfit.IsPositive() && bar.High.GreaterThanOrEqual(entry.TakeProfit):
			exitPrice, reason = entry.TakeProfit, "take profit triggered"
		default:
			continue
		}
		exit, err := order.New(pos.Symbol, order.Sell, order.Market, pos.Quantity)
		if err != nil {
			log.Errorf(log.Backtester, "unable to create exit order for %v: %v", pos.Symbol, err)
			continue
		}
		exit.StrategyName = entry.StrategyName
		exit.AppendReason(reason)
		e.allOrders = append(e.allOrders, exit)
		if err := e.pf.SubmitOrder(exit, exitPrice); err != nil {
			continue
		}
		if _, err := e.pf.ExecuteOrder(exit, exitPrice, ts); err != nil {
			log.Warnf(log.Backtester, "exit order %v not executed: %v", exit.ID, err)
			continue
		}
		log.Infof(log.Backtester, "%v for %v at %v", reason, pos.Symbol, exitPrice)
	}
}

// originatingBuy locates the most recent filled buy for a symbol, the order
// whose stop loss and take profit levels govern the open position
func (e *BacktestEngine) originatingBuy(symbol string) *order.Order {
	filled := e.pf.FilledOrders()
	for i := len(filled) - 1; i >= 0; i-- {
		if filled[i].Symbol == symbol && filled[i].Side == order.Buy {
			return filled[i]
		}
	}
	return nil
}

func (e *BacktestEngine) buildResult(metrics *statistics.PerformanceMetrics, barsProcessed int, elapsed time.Duration) *Result {
	id, err := uuid.NewV4()
	if err != nil {
		log.Errorf(log.Backtester, "unable to generate run id: %v", err)
	}
	names := make([]string, len(e.handlers))
	for i := range e.handlers {
		names[i] = e.handlers[i].Name()
	}
	orders := make([]order.Order, len(e.allOrders))
	for i := range e.allOrders {
		orders[i] = *e.allOrders[i]
	}
	final := FinalPortfolio{
		Cash:        e.pf.Cash(),
		RealizedPnL: e.pf.RealizedPnL(),
	}
	for _, pos := range e.pf.Positions() {
		final.PositionsValue = final.PositionsValue.Add(pos.MarketValue())
		final.Positions = append(final.Positions, portfolio.PositionSnapshot{
			Symbol:        pos.Symbol,
			Quantity:      pos.Quantity,
			AverageCost:   pos.AverageCost,
			CurrentPrice:  pos.CurrentPrice,
			MarketValue:   pos.MarketValue(),
			UnrealizedPnL: pos.UnrealizedPnL(),
		})
	}
	final.TotalValue = final.Cash.Add(final.PositionsValue)

	return &Result{
		RunID:         id.String(),
		StrategyName:  joinNames(names),
		Metrics:       metrics,
		EquityCurve:   e.pf.Snapshots(),
		Trades:        e.pf.Trades(),
		Orders:        orders,
		FinalHoldings: final,
		ExecutionTime: elapsed,
		BarsProcessed: barsProcessed,
	}
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	out := names[0]
	for _, n := range names[1:] {
		out += "," + n
	}
	return out
}
