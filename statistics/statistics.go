// Package statistics computes performance metrics over a completed run's
// equity curve and trade list. It is a pure computation with no side effects
// on the portfolio that produced the inputs
package statistics

import (
	stdmath "math"

	"github.com/shopspring/decimal"

	"github.com/thrasher-corp/backsim/common/math"
	"github.com/thrasher-corp/backsim/log"
	"github.com/thrasher-corp/backsim/portfolio"
)

// Analyze produces the performance metrics for an equity curve and its
// trades. riskFreeRate is annualised, eg 0.02 for two percent
func Analyze(snapshots []portfolio.Snapshot, trades []portfolio.Trade, initialCapital decimal.Decimal, riskFreeRate float64) (*PerformanceMetrics, error) {
	if len(snapshots) == 0 {
		return nil, ErrNoSnapshots
	}
	if initialCapital.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidInitialCapital
	}

	m := &PerformanceMetrics{
		StartTime: snapshots[0].Timestamp,
		EndTime:   snapshots[len(snapshots)-1].Timestamp,
	}
	m.InitialCapital, _ = initialCapital.Float64()

	equity := make([]float64, len(snapshots))
	for i := range snapshots {
		equity[i], _ = snapshots[i].TotalValue.Float64()
	}
	m.FinalValue = equity[len(equity)-1]
	m.TotalReturn = m.FinalValue/m.InitialCapital - 1

	days := m.EndTime.Sub(m.StartTime).Hours() / 24
	m.AnnualizedReturn = math.AnnualisedReturn(m.TotalReturn, days)

	var returns []float64
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		returns = append(returns, equity[i]/equity[i-1]-1)
	}
	if len(returns) > 0 {
		periodVol, err := math.StandardDeviation(returns)
		if err == nil {
			m.Volatility = math.AnnualiseVolatility(periodVol)
		}
		downside, err := math.DownsideDeviation(returns)
		if err == nil {
			m.DownsideVolatility = math.AnnualiseVolatility(downside)
		}
	}
	m.SharpeRatio = math.SharpeRatio(m.AnnualizedReturn, riskFreeRate, m.Volatility)
	m.SortinoRatio = math.SharpeRatio(m.AnnualizedReturn, riskFreeRate, m.DownsideVolatility)
	m.MaxDrawdown, m.MaxDrawdownDuration = math.MaxDrawdown(equity)

	analyseTrades(m, trades)
	return m, nil
}

// analyseTrades partitions realized P&L into wins and losses. Trades that
// realize nothing (position entries) count towards the total only
func analyseTrades(m *PerformanceMetrics, trades []portfolio.Trade) {
	m.TotalTrades = len(trades)
	for i := range trades {
		pnl, _ := trades[i].RealizedPnL.Float64()
		switch {
		case pnl > 0:
			m.WinningTrades++
			m.GrossProfit += pnl
			if pnl > m.LargestWin {
				m.LargestWin = pnl
			}
		case pnl < 0:
			m.LosingTrades++
			m.GrossLoss += -pnl
			if pnl < m.LargestLoss {
				m.LargestLoss = pnl
			}
		}
	}
	closed := m.WinningTrades + m.LosingTrades
	if closed > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(closed)
	}
	switch {
	case m.GrossLoss > 0:
		m.ProfitFactor = Ratio(m.GrossProfit / m.GrossLoss)
	case m.GrossProfit > 0:
		m.ProfitFactor = Ratio(stdmath.Inf(1))
	default:
		m.ProfitFactor = 0
	}
	if m.WinningTrades > 0 {
		m.AverageWin = m.GrossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = -m.GrossLoss / float64(m.LosingTrades)
	}
	m.Expectancy = m.WinRate*m.AverageWin + (1-m.WinRate)*m.AverageLoss
}

// PrintResults outputs the calculated statistics to the report sublogger
func PrintResults(m *PerformanceMetrics) {
	if m == nil {
		return
	}
	log.Infof(log.Report, "------------------Returns-------------------------------------")
	log.Infof(log.Report, "Initial capital: $%.2f", m.InitialCapital)
	log.Infof(log.Report, "Final value: $%.2f", m.FinalValue)
	log.Infof(log.Report, "Total return: %.2f%%", m.TotalReturn*100)
	log.Infof(log.Report, "Annualized return: %.2f%%", m.AnnualizedReturn*100)
	log.Infof(log.Report, "------------------Risk----------------------------------------")
	log.Infof(log.Report, "Annualized volatility: %.4f", m.Volatility)
	log.Infof(log.Report, "Sharpe ratio: %.4f", m.SharpeRatio)
	log.Infof(log.Report, "Sortino ratio: %.4f", m.SortinoRatio)
	log.Infof(log.Report, "Max drawdown: %.2f%% over %d periods", m.MaxDrawdown*100, m.MaxDrawdownDuration)
	log.Infof(log.Report, "------------------Trades--------------------------------------")
	log.Infof(log.Report, "Total trades: %d (%d wins / %d losses)", m.TotalTrades, m.WinningTrades, m.LosingTrades)
	log.Infof(log.Report, "Win rate: %.2f%%", m.WinRate*100)
	log.Infof(log.Report, "Profit factor: %.4f", float64(m.ProfitFactor))
	log.Infof(log.Report, "Expectancy: $%.2f", m.Expectancy)
}
