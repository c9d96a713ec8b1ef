package math

import (
	"errors"
	"math"
)

const (
	// DaysPerYear includes leap year correction for annualising returns over
	// calendar time
	DaysPerYear = 365.25
	// TradingDaysPerYear is the conventional equity trading calendar used to
	// annualise per-bar volatility
	TradingDaysPerYear = 252
)

// ErrNotEnoughValues is returned when a calculation requires more data points
// than were supplied
var ErrNotEnoughValues = errors.New("not enough values supplied")

// ArithmeticMean returns the mean of values
func ArithmeticMean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNotEnoughValues
	}
	var sum float64
	for x := range values {
		sum += values[x]
	}
	return sum / float64(len(values)), nil
}

// StandardDeviation returns the population standard deviation of values
func StandardDeviation(values []float64) (float64, error) {
	mean, err := ArithmeticMean(values)
	if err != nil {
		return 0, err
	}
	var sumOfSquares float64
	for x := range values {
		sumOfSquares += (values[x] - mean) * (values[x] - mean)
	}
	return math.Sqrt(sumOfSquares / float64(len(values))), nil
}

// DownsideDeviation returns the standard deviation of only the negative
// periods in values. A zero result means no losing periods occurred
func DownsideDeviation(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNotEnoughValues
	}
	var negatives []float64
	for x := range values {
		if values[x] < 0 {
			negatives = append(negatives, values[x])
		}
	}
	if len(negatives) == 0 {
		return 0, nil
	}
	var sumOfSquares float64
	for x := range negatives {
		sumOfSquares += negatives[x] * negatives[x]
	}
	return math.Sqrt(sumOfSquares / float64(len(negatives))), nil
}

// AnnualisedReturn compounds a total return over elapsed days into a yearly
// rate
func AnnualisedReturn(totalReturn, days float64) float64 {
	if days <= 0 {
		return 0
	}
	return math.Pow(1+totalReturn, DaysPerYear/days) - 1
}

// AnnualiseVolatility scales a per-period volatility by the square root of
// the trading calendar
func AnnualiseVolatility(periodVolatility float64) float64 {
	return periodVolatility * math.Sqrt(TradingDaysPerYear)
}

// SharpeRatio returns the excess annualised return per unit of annualised
// volatility, zero when volatility is zero
func SharpeRatio(annualisedReturn, riskFreeRate, annualisedVolatility float64) float64 {
	if annualisedVolatility == 0 {
		return 0
	}
	return (annualisedReturn - riskFreeRate) / annualisedVolatility
}

// MaxDrawdown returns the largest peak to trough decline of the equity
// series as a positive fraction of the peak, along with the longest
// consecutive run of underwater periods
func MaxDrawdown(equity []float64) (drawdown float64, duration int) {
	if len(equity) == 0 {
		return 0, 0
	}
	runningMax := equity[0]
	var worst float64
	var run, longestRun int
	for x := range equity {
		if equity[x] > runningMax {
			runningMax = equity[x]
		}
		if runningMax == 0 {
			continue
		}
		dd := (equity[x] - runningMax) / runningMax
		if dd < worst {
			worst = dd
		}
		if dd < 0 {
			run++
			if run > longestRun {
				longestRun = run
			}
		} else {
			run = 0
		}
	}
	return -worst, longestRun
}

// CompoundAnnualGrowthRate calculates CAGR over the open and close values of
// a run spanning intervals at intervalsPerYear
func CompoundAnnualGrowthRate(openValue, closeValue, intervalsPerYear, numberOfIntervals float64) float64 {
	if openValue <= 0 || numberOfIntervals <= 0 {
		return 0
	}
	return math.Pow(closeValue/openValue, intervalsPerYear/numberOfIntervals) - 1
}
