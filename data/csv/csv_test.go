package csv

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrasher-corp/backsim/data"
)

func writeCSV(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o660))
	return path
}

func TestLoadBars(t *testing.T) {
	t.Parallel()
	path := writeCSV(t, `timestamp,open,high,low,close,volume
2024-01-01,100,105,95,101,10000
2024-01-02,101,106,96,102,12000
`)
	bars, err := LoadBars(path, "AAPL")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), bars[0].Timestamp)
	assert.True(t, bars[0].Close.Equal(decimal.NewFromInt(101)))
	assert.True(t, bars[1].Volume.Equal(decimal.NewFromInt(12000)))
}

func TestLoadBarsMissingColumn(t *testing.T) {
	t.Parallel()
	path := writeCSV(t, `timestamp,open,high,low,close
2024-01-01,100,105,95,101
`)
	_, err := LoadBars(path, "AAPL")
	assert.ErrorIs(t, err, data.ErrMissingField)
}

func TestLoadBarsMissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadBars(filepath.Join(t.TempDir(), "absent.csv"), "AAPL")
	assert.Error(t, err)
}

func TestLoadBarsEmptyBody(t *testing.T) {
	t.Parallel()
	path := writeCSV(t, "timestamp,open,high,low,close,volume\n")
	_, err := LoadBars(path, "AAPL")
	assert.ErrorIs(t, err, data.ErrNoData)
}

func TestLoadBarsEmptyCellIsGap(t *testing.T) {
	t.Parallel()
	path := writeCSV(t, `timestamp,open,high,low,close,volume
2024-01-01,,,,,0
2024-01-02,101,106,96,102,12000
`)
	bars, err := LoadBars(path, "AAPL")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Close.IsZero())

	// gap rows load and preprocessing repairs them
	f := data.NewFeed()
	require.NoError(t, f.Load("AAPL", bars))
	f.Preprocess(0)
	window, err := f.Lookback("AAPL", 0, 1)
	require.NoError(t, err)
	assert.True(t, window[0].Close.Equal(decimal.NewFromInt(102)))
}

func TestLoadBarsMalformedRow(t *testing.T) {
	t.Parallel()
	// the middle row is short a field, the load must fail rather than
	// silently drop it and everything after it
	path := writeCSV(t, `timestamp,open,high,low,close,volume
2024-01-01,100,105,95,101,10000
2024-01-02,101,106,96,102
2024-01-03,102,107,97,103,13000
`)
	_, err := LoadBars(path, "AAPL")
	assert.ErrorIs(t, err, data.ErrMissingField)
	assert.Contains(t, err.Error(), "line 3")
}

func TestLoadBarsBadCell(t *testing.T) {
	t.Parallel()
	path := writeCSV(t, `timestamp,open,high,low,close,volume
2024-01-01,abc,105,95,101,10000
`)
	_, err := LoadBars(path, "AAPL")
	assert.ErrorIs(t, err, data.ErrMissingField)
	assert.Contains(t, err.Error(), "line 2")
}

func TestTimestampFormats(t *testing.T) {
	t.Parallel()
	path := writeCSV(t, `timestamp,open,high,low,close,volume
1704067200,100,105,95,101,10000
2024-01-02T00:00:00Z,101,106,96,102,12000
2024-01-03 00:00:00,102,107,97,103,13000
`)
	bars, err := LoadBars(path, "AAPL")
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), bars[0].Timestamp)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[1].Timestamp)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), bars[2].Timestamp)
}
