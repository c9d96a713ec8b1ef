package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrasher-corp/backsim/breaker"
	"github.com/thrasher-corp/backsim/config"
	"github.com/thrasher-corp/backsim/data"
	"github.com/thrasher-corp/backsim/order"
	"github.com/thrasher-corp/backsim/strategies"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Strategies:     []string{strategies.BuyAndHoldName},
		InitialCapital: decimal.NewFromInt(10000),
		PositionSizing: string(config.Fixed),
		PositionSize:   decimal.NewFromFloat(0.1),
		MaxPositions:   5,
		LookbackWindow: 10,
	}
}

func flatBar(day int, price float64) data.Bar {
	d := decimal.NewFromFloat(price)
	return data.Bar{
		Timestamp: testStart.AddDate(0, 0, day),
		Open:      d, High: d, Low: d, Close: d,
		Volume: decimal.NewFromInt(1000),
	}
}

func rangeBar(day int, open, high, low, closePrice float64) data.Bar {
	return data.Bar{
		Timestamp: testStart.AddDate(0, 0, day),
		Open:      decimal.NewFromFloat(open),
		High:      decimal.NewFromFloat(high),
		Low:       decimal.NewFromFloat(low),
		Close:     decimal.NewFromFloat(closePrice),
		Volume:    decimal.NewFromInt(1000),
	}
}

func feedWith(t *testing.T, symbol string, bars ...data.Bar) *data.Feed {
	t.Helper()
	f := data.NewFeed()
	require.NoError(t, f.Load(symbol, bars))
	return f
}

func risingFeed(t *testing.T, symbol string, days int) *data.Feed {
	t.Helper()
	bars := make([]data.Bar, days)
	for i := range bars {
		bars[i] = flatBar(i, 100+float64(i))
	}
	return feedWith(t, symbol, bars...)
}

// signalOnce emits one fixed signal on the first bar and holds after
type signalOnce struct {
	signal strategies.Signal
	fired  bool
}

func (s *signalOnce) Name() string { return "signalonce" }
func (s *signalOnce) OnData(d *strategies.MarketData) (*strategies.Signal, error) {
	if s.fired {
		return &strategies.Signal{Action: strategies.Hold, Price: d.Close}, nil
	}
	s.fired = true
	sig := s.signal
	sig.Price = d.Close
	return &sig, nil
}

type panicStrategy struct{}

func (s *panicStrategy) Name() string { return "panics" }
func (s *panicStrategy) OnData(*strategies.MarketData) (*strategies.Signal, error) {
	panic("strategy blew up")
}

func buyAndHold() []strategies.Handler {
	return []strategies.Handler{new(strategies.BuyAndHold)}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	feed := risingFeed(t, "AAPL", 3)

	_, err := New(nil, feed, buyAndHold(), nil)
	assert.ErrorIs(t, err, ErrNilConfig)
	_, err = New(testConfig(), nil, buyAndHold(), nil)
	assert.ErrorIs(t, err, ErrNilFeed)
	_, err = New(testConfig(), feed, nil, nil)
	assert.ErrorIs(t, err, ErrNoStrategies)

	cfg := testConfig()
	cfg.InitialCapital = decimal.Zero
	_, err = New(cfg, feed, buyAndHold(), nil)
	assert.Error(t, err)
}

func TestRunBuyAndHold(t *testing.T) {
	t.Parallel()
	eng, err := New(testConfig(), risingFeed(t, "AAPL", 5), buyAndHold(), nil)
	require.NoError(t, err)
	result, err := eng.Run()
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, strategies.BuyAndHoldName, result.StrategyName)
	assert.Equal(t, 5, result.BarsProcessed)
	assert.Len(t, result.EquityCurve, 5)

	// one entry of 10% of initial capital at the first close of 100
	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, order.Buy, trade.Side)
	assert.True(t, trade.Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, trade.Price.Equal(decimal.NewFromInt(100)))

	// 10 shares riding 100 -> 104
	assert.True(t, result.FinalHoldings.TotalValue.Equal(decimal.NewFromInt(10040)), result.FinalHoldings.TotalValue)
	assert.InDelta(t, 0.004, result.Metrics.TotalReturn, 1e-9)
	assert.Equal(t, 1, result.Metrics.TotalTrades)
}

func TestRunTwiceFails(t *testing.T) {
	t.Parallel()
	eng, err := New(testConfig(), risingFeed(t, "AAPL", 3), buyAndHold(), nil)
	require.NoError(t, err)
	_, err = eng.Run()
	require.NoError(t, err)
	_, err = eng.Run()
	assert.ErrorIs(t, err, ErrAlreadyRan)
}

func TestRunWarmupConsumesEverything(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.WarmupBars = 10
	eng, err := New(cfg, risingFeed(t, "AAPL", 3), buyAndHold(), nil)
	require.NoError(t, err)
	_, err = eng.Run()
	assert.ErrorIs(t, err, data.ErrNoData)
}

func TestConfidenceFloor(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.MinConfidence = 0.5
	handlers := []strategies.Handler{&signalOnce{signal: strategies.Signal{
		Action:     strategies.Buy,
		Confidence: 0.3,
	}}}
	eng, err := New(cfg, risingFeed(t, "AAPL", 3), handlers, nil)
	require.NoError(t, err)
	result, err := eng.Run()
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
}

func TestPanickingStrategyIsIsolated(t *testing.T) {
	t.Parallel()
	handlers := []strategies.Handler{new(panicStrategy), new(strategies.BuyAndHold)}
	eng, err := New(testConfig(), risingFeed(t, "AAPL", 3), handlers, nil)
	require.NoError(t, err)
	result, err := eng.Run()
	require.NoError(t, err)

	// the healthy strategy still traded
	assert.Len(t, result.Trades, 1)
	assert.Equal(t, "panics,buyandhold", result.StrategyName)
}

func TestMaxPositions(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.MaxPositions = 1
	f := data.NewFeed()
	require.NoError(t, f.Load("AAPL", []data.Bar{flatBar(0, 100), flatBar(1, 101)}))
	require.NoError(t, f.Load("MSFT", []data.Bar{flatBar(0, 200), flatBar(1, 201)}))

	eng, err := New(cfg, f, buyAndHold(), nil)
	require.NoError(t, err)
	result, err := eng.Run()
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.Len(t, result.FinalHoldings.Positions, 1)
}

func TestGovernorBlocksEntries(t *testing.T) {
	t.Parallel()
	governor := breaker.New(nil)
	governor.Trip(breaker.DailyLoss, "limit hit", "AAPL", 0, breaker.Open)

	eng, err := New(testConfig(), risingFeed(t, "AAPL", 3), buyAndHold(), governor)
	require.NoError(t, err)
	result, err := eng.Run()
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
}

func TestGovernorScalesPositionSize(t *testing.T) {
	t.Parallel()
	governor := breaker.New(nil)
	governor.Trip(breaker.Volatility, "choppy", "AAPL", 0, breaker.Restricted)

	eng, err := New(testConfig(), risingFeed(t, "AAPL", 3), buyAndHold(), governor)
	require.NoError(t, err)
	result, err := eng.Run()
	require.NoError(t, err)

	// restricted quarters the stake: 10000 * 0.1 * 0.25 / 100
	require.Len(t, result.Trades, 1)
	assert.True(t, result.Trades[0].Quantity.Equal(decimal.NewFromFloat(2.5)), result.Trades[0].Quantity)
}

func TestStopLossBeforeTakeProfit(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.UseStops = true
	cfg.UseTakeProfit = true
	handlers := []strategies.Handler{&signalOnce{signal: strategies.Signal{
		Action:     strategies.Buy,
		Confidence: 1,
		StopLoss:   decimal.NewFromInt(95),
		TakeProfit: decimal.NewFromInt(105),
	}}}
	feed := feedWith(t, "AAPL",
		flatBar(0, 100),
		// one violent bar pierces both levels, the stop wins
		rangeBar(1, 100, 110, 90, 100),
		flatBar(2, 100),
	)
	eng, err := New(cfg, feed, handlers, nil)
	require.NoError(t, err)
	result, err := eng.Run()
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	exit := result.Trades[1]
	assert.Equal(t, order.Sell, exit.Side)
	assert.True(t, exit.Price.Equal(decimal.NewFromInt(95)), exit.Price)
	assert.Empty(t, result.FinalHoldings.Positions)
}

func TestTakeProfitExit(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.UseTakeProfit = true
	handlers := []strategies.Handler{&signalOnce{signal: strategies.Signal{
		Action:     strategies.Buy,
		Confidence: 1,
		TakeProfit: decimal.NewFromInt(105),
	}}}
	feed := feedWith(t, "AAPL",
		flatBar(0, 100),
		rangeBar(1, 100, 106, 99, 104),
	)
	eng, err := New(cfg, feed, handlers, nil)
	require.NoError(t, err)
	result, err := eng.Run()
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	exit := result.Trades[1]
	assert.Equal(t, order.Sell, exit.Side)
	assert.True(t, exit.Price.Equal(decimal.NewFromInt(105)))
	// 10 shares from 100 to 105
	assert.True(t, exit.RealizedPnL.Equal(decimal.NewFromInt(50)))
}

func TestPendingLimitOrderFillsOnLaterBar(t *testing.T) {
	t.Parallel()
	feed := feedWith(t, "AAPL",
		flatBar(0, 100),
		rangeBar(1, 100, 101, 94, 96),
		flatBar(2, 97),
	)
	eng, err := New(testConfig(), feed, buyAndHold(), nil)
	require.NoError(t, err)

	limit, err := order.New("AAPL", order.Buy, order.Limit, decimal.NewFromInt(5))
	require.NoError(t, err)
	limit.LimitPrice = decimal.NewFromInt(95)
	require.NoError(t, eng.Portfolio().SubmitOrder(limit, decimal.NewFromInt(95)))

	result, err := eng.Run()
	require.NoError(t, err)

	// bar 0 never trades through 95, bar 1 does
	assert.Equal(t, order.Filled, limit.Status)
	assert.True(t, limit.AverageFillPrice.Equal(decimal.NewFromInt(95)), limit.AverageFillPrice)
	require.NotEmpty(t, result.Trades)
}

func TestUnfillableLimitOrderExpiresAtRunEnd(t *testing.T) {
	t.Parallel()
	eng, err := New(testConfig(), risingFeed(t, "AAPL", 3), buyAndHold(), nil)
	require.NoError(t, err)

	limit, err := order.New("AAPL", order.Buy, order.Limit, decimal.NewFromInt(5))
	require.NoError(t, err)
	limit.LimitPrice = decimal.NewFromInt(50)
	require.NoError(t, eng.Portfolio().SubmitOrder(limit, decimal.NewFromInt(50)))

	_, err = eng.Run()
	require.NoError(t, err)

	// no bar trades down to 50, so the order lapses instead of lingering
	assert.Equal(t, order.Expired, limit.Status)
	assert.Empty(t, eng.Portfolio().OpenOrders())
}

func TestSellWithoutPositionDiscarded(t *testing.T) {
	t.Parallel()
	handlers := []strategies.Handler{&signalOnce{signal: strategies.Signal{
		Action:     strategies.Sell,
		Confidence: 1,
	}}}
	eng, err := New(testConfig(), risingFeed(t, "AAPL", 3), handlers, nil)
	require.NoError(t, err)
	result, err := eng.Run()
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
}

func TestRunSweep(t *testing.T) {
	t.Parallel()
	jobs := []SweepJob{
		{Name: "size 0.1", Config: testConfig(), Feed: risingFeed(t, "AAPL", 5), Handlers: buyAndHold()},
		{Name: "broken", Config: nil, Feed: risingFeed(t, "AAPL", 5), Handlers: buyAndHold()},
		{Name: "size 0.2", Config: func() *config.Config {
			c := testConfig()
			c.PositionSize = decimal.NewFromFloat(0.2)
			return c
		}(), Feed: risingFeed(t, "AAPL", 5), Handlers: buyAndHold()},
	}
	results := RunSweep(jobs, nil, 2)
	require.Len(t, results, 3)

	assert.Equal(t, "size 0.1", results[0].Name)
	require.NoError(t, results[0].Err)
	assert.True(t, results[0].Result.Trades[0].Quantity.Equal(decimal.NewFromInt(10)))

	assert.ErrorIs(t, results[1].Err, ErrNilConfig)
	assert.Nil(t, results[1].Result)

	require.NoError(t, results[2].Err)
	assert.True(t, results[2].Result.Trades[0].Quantity.Equal(decimal.NewFromInt(20)))
}

func TestDeterministicRuns(t *testing.T) {
	t.Parallel()
	run := func() *Result {
		eng, err := New(testConfig(), risingFeed(t, "AAPL", 10), buyAndHold(), nil)
		require.NoError(t, err)
		result, err := eng.Run()
		require.NoError(t, err)
		return result
	}
	a, b := run(), run()
	assert.Equal(t, a.Metrics.TotalReturn, b.Metrics.TotalReturn)
	assert.Equal(t, a.Metrics.SharpeRatio, b.Metrics.SharpeRatio)
	assert.Equal(t, a.BarsProcessed, b.BarsProcessed)
	assert.True(t, a.FinalHoldings.TotalValue.Equal(b.FinalHoldings.TotalValue))
	require.Equal(t, len(a.EquityCurve), len(b.EquityCurve))
	for i := range a.EquityCurve {
		assert.True(t, a.EquityCurve[i].TotalValue.Equal(b.EquityCurve[i].TotalValue))
	}
}
