package data

import (
	"fmt"
	"sort"

	"github.com/thrasher-corp/backsim/common/math"
	"github.com/thrasher-corp/backsim/log"
)

// NewFeed returns an empty bar feed
func NewFeed() *Feed {
	return &Feed{series: make(map[string][]Bar)}
}

// Load ingests an OHLCV series for a symbol after validating every bar
// carries the required fields. The series is sorted by timestamp. Loading a
// symbol twice replaces the prior series
func (f *Feed) Load(symbol string, bars []Bar) error {
	if symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrSymbolNotFound)
	}
	if len(bars) == 0 {
		return fmt.Errorf("%w for %v", ErrNoData, symbol)
	}
	cp := make([]Bar, len(bars))
	copy(cp, bars)
	var usableClose bool
	for i := range cp {
		if cp[i].Timestamp.IsZero() {
			return fmt.Errorf("%w: %v bar %d timestamp", ErrMissingField, symbol, i)
		}
		if cp[i].Open.IsNegative() || cp[i].High.IsNegative() ||
			cp[i].Low.IsNegative() || cp[i].Close.IsNegative() ||
			cp[i].Volume.IsNegative() {
			return fmt.Errorf("%w: %v bar %d negative value", ErrMissingField, symbol, i)
		}
		// zero prices are gaps, repaired by Preprocess
		if cp[i].High.IsPositive() && cp[i].Low.IsPositive() &&
			cp[i].High.LessThan(cp[i].Low) {
			return fmt.Errorf("%w: %v bar %d", ErrInvalidRange, symbol, i)
		}
		if cp[i].Close.IsPositive() {
			usableClose = true
		}
		cp[i].Symbol = symbol
	}
	if !usableClose {
		return fmt.Errorf("%w: %v has no usable close prices", ErrMissingField, symbol)
	}
	sort.Slice(cp, func(i, j int) bool {
		return cp[i].Timestamp.Before(cp[j].Timestamp)
	})
	if _, ok := f.series[symbol]; !ok {
		f.symbols = append(f.symbols, symbol)
	}
	f.series[symbol] = cp
	f.aligned = len(f.symbols) <= 1
	return nil
}

// Symbols returns the loaded symbols in load order
func (f *Feed) Symbols() []string {
	out := make([]string, len(f.symbols))
	copy(out, f.symbols)
	return out
}

// Length returns the series length for a symbol
func (f *Feed) Length(symbol string) int {
	return len(f.series[symbol])
}

// Preprocess forward then backward fills price gaps and, when outlierK is
// positive, removes bars whose close-to-close return deviates from the mean
// by more than outlierK standard deviations
func (f *Feed) Preprocess(outlierK float64) {
	for _, symbol := range f.symbols {
		f.series[symbol] = fillGaps(f.series[symbol])
		if outlierK > 0 {
			f.series[symbol] = removeOutliers(f.series[symbol], outlierK, symbol)
		}
	}
	if len(f.symbols) > 1 {
		f.aligned = false
	}
}

func fillGaps(bars []Bar) []Bar {
	// forward fill from the previous close
	for i := 1; i < len(bars); i++ {
		if bars[i].Close.IsZero() {
			prev := bars[i-1].Close
			bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = prev, prev, prev, prev
		}
	}
	// backward fill any leading gap
	for i := len(bars) - 2; i >= 0; i-- {
		if bars[i].Close.IsZero() {
			next := bars[i+1].Close
			bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = next, next, next, next
		}
	}
	return bars
}

func removeOutliers(bars []Bar, k float64, symbol string) []Bar {
	if len(bars) < 3 {
		return bars
	}
	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev.IsZero() {
			returns = append(returns, 0)
			continue
		}
		r, _ := bars[i].Close.Sub(prev).Div(prev).Float64()
		returns = append(returns, r)
	}
	mean, err := math.ArithmeticMean(returns)
	if err != nil {
		return bars
	}
	sigma, err := math.StandardDeviation(returns)
	if err != nil || sigma == 0 {
		return bars
	}
	kept := bars[:1]
	removed := 0
	for i := 1; i < len(bars); i++ {
		deviation := returns[i-1] - mean
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation > k*sigma {
			removed++
			continue
		}
		kept = append(kept, bars[i])
	}
	if removed > 0 {
		log.Warnf(log.Data, "%v removed %d outlier bars beyond %.2f sigma", symbol, removed, k)
	}
	return kept
}

// Align intersects timestamps across every loaded symbol so multi symbol
// iteration never produces a partial cross-section
func (f *Feed) Align() {
	if len(f.symbols) < 2 {
		f.aligned = true
		return
	}
	counts := make(map[int64]int)
	for _, symbol := range f.symbols {
		for i := range f.series[symbol] {
			counts[f.series[symbol][i].Timestamp.UnixNano()]++
		}
	}
	for _, symbol := range f.symbols {
		kept := f.series[symbol][:0]
		for i := range f.series[symbol] {
			if counts[f.series[symbol][i].Timestamp.UnixNano()] == len(f.symbols) {
				kept = append(kept, f.series[symbol][i])
			}
		}
		f.series[symbol] = kept
	}
	f.aligned = true
}

// Iterate returns a lazy iterator over cross-sections of all loaded symbols,
// skipping the first warmup bars and stopping at the shortest series
func (f *Feed) Iterate(warmup int) (*Iterator, error) {
	if len(f.symbols) == 0 {
		return nil, ErrNoData
	}
	if !f.aligned {
		f.Align()
	}
	shortest := -1
	for _, symbol := range f.symbols {
		if l := len(f.series[symbol]); shortest < 0 || l < shortest {
			shortest = l
		}
	}
	if warmup < 0 {
		warmup = 0
	}
	return &Iterator{feed: f, offset: warmup, length: shortest}, nil
}

// Next returns the cross-section at the current offset and advances. ok is
// false once the shortest series is exhausted
func (it *Iterator) Next() (batch map[string]Bar, index int, ok bool) {
	if it.offset >= it.length {
		return nil, 0, false
	}
	batch = make(map[string]Bar, len(it.feed.symbols))
	for _, symbol := range it.feed.symbols {
		batch[symbol] = it.feed.series[symbol][it.offset]
	}
	index = it.offset
	it.offset++
	return batch, index, true
}

// Lookback returns the trailing window of up to n bars ending at index
// inclusive, clipped at the series start
func (f *Feed) Lookback(symbol string, index, n int) ([]Bar, error) {
	series, ok := f.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrSymbolNotFound, symbol)
	}
	if index < 0 || index >= len(series) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidIndex, index, len(series))
	}
	if n <= 0 {
		return nil, nil
	}
	start := index - n + 1
	if start < 0 {
		start = 0
	}
	window := make([]Bar, index-start+1)
	copy(window, series[start:index+1])
	return window, nil
}
