package breaker

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAllClosed(t *testing.T) {
	t.Parallel()
	cb := New(nil)
	allowed, status := cb.Check(AnyType, "AAPL")
	assert.True(t, allowed)
	assert.Equal(t, Closed, status)
	assert.Equal(t, Closed, cb.GetStatus(DailyLoss, ""))
}

func TestTripBlocksTrading(t *testing.T) {
	t.Parallel()
	cb := New(nil)
	cb.Trip(DailyLoss, "daily loss limit hit", "AAPL", 0, Open)

	allowed, status := cb.Check(DailyLoss, "AAPL")
	assert.False(t, allowed)
	assert.Equal(t, Open, status)

	// scope isolation, other symbols trade on
	allowed, status = cb.Check(DailyLoss, "MSFT")
	assert.True(t, allowed)
	assert.Equal(t, Closed, status)
}

func TestTripDefaultsToOpen(t *testing.T) {
	t.Parallel()
	cb := New(nil)
	cb.Trip(Volatility, "vol spike", "", 0, "")
	assert.Equal(t, Open, cb.GetStatus(Volatility, ""))
}

func TestTripOverwritesExisting(t *testing.T) {
	t.Parallel()
	cb := New(nil)
	cb.Trip(Drawdown, "first", "AAPL", 0, Cautious)
	cb.Trip(Drawdown, "second", "AAPL", 0, Open)
	assert.Equal(t, Open, cb.GetStatus(Drawdown, "AAPL"))
	records := cb.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "second", records["DRAWDOWN:AAPL"].Reason)
}

func TestNoAutoResetWhenDisabled(t *testing.T) {
	t.Parallel()
	cb := New(nil)
	cb.Trip(DailyLoss, "manual only", "AAPL", 0, Open)

	// far future, still tripped
	cb.now = func() time.Time { return time.Now().Add(1000 * time.Hour) }
	allowed, status := cb.Check(DailyLoss, "AAPL")
	assert.False(t, allowed)
	assert.Equal(t, Open, status)
}

func TestGlobalSystemOpenBlocksEverything(t *testing.T) {
	t.Parallel()
	cb := New(nil)
	cb.Trip(System, "kill switch", "", 0, Open)

	allowed, status := cb.Check(DailyLoss, "AAPL")
	assert.False(t, allowed)
	assert.Equal(t, Open, status)
	allowed, _ = cb.Check(AnyType, "MSFT")
	assert.False(t, allowed)
}

func TestManualResetDeescalatesOneStep(t *testing.T) {
	t.Parallel()
	cb := New(nil)
	cb.Trip(Drawdown, "too deep", "", 0, Open)

	cb.Reset(Drawdown, "")
	assert.Equal(t, Restricted, cb.GetStatus(Drawdown, ""))
	cb.Reset(Drawdown, "")
	assert.Equal(t, Cautious, cb.GetStatus(Drawdown, ""))
	cb.Reset(Drawdown, "")
	assert.Equal(t, Closed, cb.GetStatus(Drawdown, ""))
	assert.Empty(t, cb.Records())
}

func TestResetAbsentIsNoOp(t *testing.T) {
	t.Parallel()
	cb := New(nil)
	cb.Reset(ErrorRate, "nothing here")
	assert.Empty(t, cb.Records())
}

func TestHalfOpenEasesOutEntirely(t *testing.T) {
	t.Parallel()
	cb := New(nil)
	cb.Trip(ErrorRate, "flaky", "", 0, HalfOpen)
	cb.Reset(ErrorRate, "")
	assert.Equal(t, Closed, cb.GetStatus(ErrorRate, ""))
}

func TestAutoResetSweep(t *testing.T) {
	t.Parallel()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	cb := New(nil)
	cb.now = func() time.Time { return clock }

	cb.Trip(DailyLoss, "limit hit", "AAPL", time.Hour, Open)

	// before the deadline nothing moves
	clock = base.Add(30 * time.Minute)
	allowed, status := cb.Check(DailyLoss, "AAPL")
	assert.False(t, allowed)
	assert.Equal(t, Open, status)

	// each elapsed interval eases one step
	clock = base.Add(time.Hour)
	_, status = cb.Check(DailyLoss, "AAPL")
	assert.Equal(t, Restricted, status)

	clock = clock.Add(time.Hour)
	_, status = cb.Check(DailyLoss, "AAPL")
	assert.Equal(t, Cautious, status)

	clock = clock.Add(time.Hour)
	allowed, status = cb.Check(DailyLoss, "AAPL")
	assert.True(t, allowed)
	assert.Equal(t, Closed, status)
	assert.Empty(t, cb.Records())
}

func TestCheckMostRestrictiveWins(t *testing.T) {
	t.Parallel()
	cb := New(nil)
	cb.Trip(Volatility, "choppy", "AAPL", 0, Cautious)
	cb.Trip(Drawdown, "sliding", "AAPL", 0, Restricted)

	allowed, status := cb.Check(AnyType, "AAPL")
	assert.True(t, allowed)
	assert.Equal(t, Restricted, status)

	// type filter narrows the match
	_, status = cb.Check(Volatility, "AAPL")
	assert.Equal(t, Cautious, status)
}

func TestGetPositionSizing(t *testing.T) {
	t.Parallel()
	cb := New(nil)
	assert.True(t, cb.GetPositionSizing(AnyType, "AAPL").Equal(decimal.NewFromInt(1)))

	cb.Trip(Volatility, "choppy", "AAPL", 0, Cautious)
	assert.True(t, cb.GetPositionSizing(AnyType, "AAPL").Equal(decimal.NewFromFloat(0.75)))

	cb.Trip(Volatility, "worse", "AAPL", 0, Restricted)
	assert.True(t, cb.GetPositionSizing(AnyType, "AAPL").Equal(decimal.NewFromFloat(0.25)))

	cb.Trip(Volatility, "halt", "AAPL", 0, Open)
	assert.True(t, cb.GetPositionSizing(AnyType, "AAPL").IsZero())
}

func TestStringToStatus(t *testing.T) {
	t.Parallel()
	status, err := StringToStatus("restricted")
	require.NoError(t, err)
	assert.Equal(t, Restricted, status)

	status, err = StringToStatus("BROKEN")
	assert.ErrorIs(t, err, ErrUnknownStatus)
	assert.Equal(t, Open, status)
}

func TestRecordsReturnsCopy(t *testing.T) {
	t.Parallel()
	cb := New(nil)
	cb.Trip(DailyLoss, "limit", "", 0, Open)
	records := cb.Records()
	rec := records["DAILY_LOSS"]
	rec.Status = Closed
	records["DAILY_LOSS"] = rec
	assert.Equal(t, Open, cb.GetStatus(DailyLoss, ""))
}
