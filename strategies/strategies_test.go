package strategies

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStrategy struct{}

func (s *stubStrategy) Name() string { return "stub" }
func (s *stubStrategy) OnData(*MarketData) (*Signal, error) {
	return &Signal{Action: Hold}, nil
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	assert.Equal(t, []string{BuyAndHoldName}, r.List())
}

func TestRegister(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	err := r.Register("", func() Handler { return new(stubStrategy) })
	assert.ErrorIs(t, err, ErrStrategyNotFound)
	err = r.Register("stub", nil)
	assert.ErrorIs(t, err, ErrStrategyNotFound)

	require.NoError(t, r.Register("Stub", func() Handler { return new(stubStrategy) }))
	err = r.Register("STUB", func() Handler { return new(stubStrategy) })
	assert.ErrorIs(t, err, ErrStrategyAlreadyExists)
	assert.Equal(t, []string{BuyAndHoldName, "stub"}, r.List())
}

func TestCreate(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	_, err := r.Create("missing")
	assert.ErrorIs(t, err, ErrStrategyNotFound)

	h, err := r.Create("BuyAndHold")
	require.NoError(t, err)
	assert.Equal(t, BuyAndHoldName, h.Name())

	// every creation is a fresh instance with its own state
	h2, err := r.Create(BuyAndHoldName)
	require.NoError(t, err)
	assert.NotSame(t, h, h2)
}

func TestBuyAndHold(t *testing.T) {
	t.Parallel()
	s := new(BuyAndHold)
	_, err := s.OnData(nil)
	assert.ErrorIs(t, err, ErrNilSignal)

	d := &MarketData{
		Symbol:    "AAPL",
		Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Close:     decimal.NewFromInt(100),
	}
	sig, err := s.OnData(d)
	require.NoError(t, err)
	assert.Equal(t, Buy, sig.Action)
	assert.Equal(t, 1.0, sig.Confidence)
	assert.True(t, sig.Price.Equal(decimal.NewFromInt(100)))

	sig, err = s.OnData(d)
	require.NoError(t, err)
	assert.Equal(t, Hold, sig.Action)

	// new symbols still get an entry
	sig, err = s.OnData(&MarketData{Symbol: "MSFT", Close: decimal.NewFromInt(50)})
	require.NoError(t, err)
	assert.Equal(t, Buy, sig.Action)
}
