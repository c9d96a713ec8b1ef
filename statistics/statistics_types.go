package statistics

import (
	"errors"
	"math"
	"strconv"
	"time"
)

var (
	// ErrNoSnapshots occurs when analysis is requested over an empty equity
	// curve
	ErrNoSnapshots = errors.New("no snapshots to analyse")
	// ErrInvalidInitialCapital occurs when the initial capital is not
	// positive
	ErrInvalidInitialCapital = errors.New("initial capital must be positive")
)

// Ratio is a float64 that survives JSON round-trips when non finite, the
// profit factor is positive infinity for a run with profits and no losses
type Ratio float64

// MarshalJSON implements json.Marshaler
func (r Ratio) MarshalJSON() ([]byte, error) {
	v := float64(r)
	if math.IsInf(v, 1) {
		return []byte(`"inf"`), nil
	}
	if math.IsInf(v, -1) {
		return []byte(`"-inf"`), nil
	}
	if math.IsNaN(v) {
		return []byte(`"nan"`), nil
	}
	return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Ratio) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"inf"`:
		*r = Ratio(math.Inf(1))
		return nil
	case `"-inf"`:
		*r = Ratio(math.Inf(-1))
		return nil
	case `"nan"`:
		*r = Ratio(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*r = Ratio(v)
	return nil
}

// PerformanceMetrics is the pure function result of analysing an equity
// curve and trade list
type PerformanceMetrics struct {
	StartTime           time.Time `json:"start_time"`
	EndTime             time.Time `json:"end_time"`
	InitialCapital      float64   `json:"initial_capital"`
	FinalValue          float64   `json:"final_value"`
	TotalReturn         float64   `json:"total_return"`
	AnnualizedReturn    float64   `json:"annualized_return"`
	Volatility          float64   `json:"volatility"`
	DownsideVolatility  float64   `json:"downside_volatility"`
	SharpeRatio         float64   `json:"sharpe_ratio"`
	SortinoRatio        float64   `json:"sortino_ratio"`
	MaxDrawdown         float64   `json:"max_drawdown"`
	MaxDrawdownDuration int       `json:"max_drawdown_duration"`

	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  Ratio   `json:"profit_factor"`
	GrossProfit   float64 `json:"gross_profit"`
	GrossLoss     float64 `json:"gross_loss"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	LargestWin    float64 `json:"largest_win"`
	LargestLoss   float64 `json:"largest_loss"`
	Expectancy    float64 `json:"expectancy"`
}
