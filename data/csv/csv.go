// Package csv loads OHLCV series from headed CSV files into a bar feed
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thrasher-corp/backsim/data"
)

var requiredColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// LoadBars reads a CSV file with a header row containing at least
// timestamp, open, high, low, close and volume columns. A missing column
// fails with the feed's missing field error before any bar is produced
func LoadBars(path, symbol string) ([]data.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v header: %v", data.ErrMissingField, path, err)
	}
	idx := make(map[string]int, len(header))
	for i := range header {
		idx[strings.ToLower(strings.TrimSpace(header[i]))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: column %q absent in %v", data.ErrMissingField, col, path)
		}
	}

	var bars []data.Bar
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// a malformed row must fail the load, not truncate it
			return nil, fmt.Errorf("%w: %v line %d: %v", data.ErrMissingField, path, line, err)
		}
		bar, err := parseBar(record, idx, symbol)
		if err != nil {
			return nil, fmt.Errorf("%v line %d: %w", path, line, err)
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %v", data.ErrNoData, symbol)
	}
	return bars, nil
}

func parseBar(record []string, idx map[string]int, symbol string) (data.Bar, error) {
	ts, err := parseTimestamp(record[idx["timestamp"]])
	if err != nil {
		return data.Bar{}, err
	}
	bar := data.Bar{Timestamp: ts, Symbol: symbol}
	for col, dst := range map[string]*decimal.Decimal{
		"open":   &bar.Open,
		"high":   &bar.High,
		"low":    &bar.Low,
		"close":  &bar.Close,
		"volume": &bar.Volume,
	} {
		raw := strings.TrimSpace(record[idx[col]])
		if raw == "" {
			continue // gap, repaired by feed preprocessing
		}
		*dst, err = decimal.NewFromString(raw)
		if err != nil {
			return data.Bar{}, fmt.Errorf("%w: %v %q", data.ErrMissingField, col, raw)
		}
	}
	return bar, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable timestamp %q", data.ErrMissingField, raw)
}
