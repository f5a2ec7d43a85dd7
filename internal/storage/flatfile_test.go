package storage

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 3, 7, 14, 30, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"1741357800000000000", want},
		{"1741357800000000", want},
		{"1741357800000", want},
		{"1741357800", want},
		{"1.7413578e+18", want},
		{"2025-03-07 14:30:00", want},
		{"2025-03-07T14:30:00Z", want},
		{"2025-03-07 09:30:00-05:00", want},
		{"2025-03-07 14:30:00+00:00", want},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%s parsed as %s", tt.in, got)
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	in := strings.Join([]string{
		"ticker,volume,Open,close,high,low,window_start,transactions",
		"O:SPY250307C00578000,10,1.5,1.6,1.7,1.4,1741357800000000000,3",
		"O:SPY250307C00578000,4,bad,1.7,1.8,1.5,1741357860000000000,1",
	}, "\n")

	recs, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "O:SPY250307C00578000", recs[0].Ticker)
	assert.Equal(t, models.Bar{
		Time: time.Date(2025, 3, 7, 14, 30, 0, 0, time.UTC), Open: 1.5, High: 1.7, Low: 1.4, Close: 1.6,
	}, recs[0].Bar)
	assert.True(t, math.IsNaN(recs[1].Bar.Open), "bad price becomes NaN")
}

func TestReadCSV_IndexFileWithoutTicker(t *testing.T) {
	in := "Datetime,Open,High,Low,Close\n2025-03-07 14:30:00+00:00,5780,5782,5779,5781\n"
	recs, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].Ticker)
	assert.Equal(t, 5781.0, recs[0].Bar.Close)
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Datetime,Open,High,Low\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = ReadCSV(strings.NewReader("Datetime,Open,High,Low,Close\nnever,1,1,1,1\n"))
	assert.ErrorContains(t, err, "line 2")

	recs, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestWriteReadRoundTrip(t *testing.T) {
	recs := []Record{
		{Ticker: "O:SPY250307P00575000", Bar: models.Bar{Time: time.Date(2025, 3, 7, 14, 31, 0, 0, time.UTC), Open: 2, High: 2.5, Low: 1.5, Close: 2.25}},
		{Ticker: "O:SPY250307P00580000", Bar: models.Bar{Time: time.Date(2025, 3, 7, 14, 32, 0, 0, time.UTC), Open: 3, High: 3.5, Low: 2.5, Close: 3.25}},
	}
	for _, format := range []Format{FormatCSV, FormatParquet} {
		t.Run(string(format), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "day"+format.Ext())
			require.NoError(t, WriteFile(path, recs))

			got, err := ReadFile(path)
			require.NoError(t, err)
			require.Len(t, got, len(recs))
			for i := range recs {
				assert.Equal(t, recs[i].Ticker, got[i].Ticker)
				assert.True(t, recs[i].Bar.Time.Equal(got[i].Bar.Time))
				assert.Equal(t, recs[i].Bar.Close, got[i].Bar.Close)
			}
		})
	}

	_, err := ReadFile(filepath.Join(t.TempDir(), "day.xlsx"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWriteFile_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, WriteFile(blocker+".csv", nil))

	err := WriteFile(filepath.Join(blocker+".csv", "day.csv"), []Record{{Ticker: "O:SPY250307P00575000"}})
	assert.Error(t, err, "parent is a regular file")
	assert.ErrorIs(t, WriteFile(filepath.Join(dir, "day.txt"), nil), ErrUnsupportedFormat)
}
