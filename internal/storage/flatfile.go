package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

// Record is one flat-file row: a bar and, for option files, its contract ticker.
type Record struct {
	Ticker string
	Bar    models.Bar
}

// parquetBar mirrors the Polygon flat-file columns.
type parquetBar struct {
	Ticker      string  `parquet:"ticker,optional"`
	WindowStart int64   `parquet:"window_start"`
	Open        float64 `parquet:"open"`
	High        float64 `parquet:"high"`
	Low         float64 `parquet:"low"`
	Close       float64 `parquet:"close"`
}

var columnAliases = map[string][]string{
	"time":   {"datetime", "window_start", "timestamp", "t"},
	"open":   {"open", "o"},
	"high":   {"high", "h"},
	"low":    {"low", "l"},
	"close":  {"close", "c"},
	"ticker": {"ticker", "symbol"},
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp accepts epoch integers (seconds, ms, µs or ns by magnitude)
// and the ISO-like layouts pandas writes. Zone-less values are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return epoch(n), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return epoch(int64(f)), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func epoch(n int64) time.Time {
	a := n
	if a < 0 {
		a = -a
	}
	switch {
	case a >= 1e17:
		return time.Unix(0, n).UTC()
	case a >= 1e14:
		return time.UnixMicro(n).UTC()
	case a >= 1e11:
		return time.UnixMilli(n).UTC()
	default:
		return time.Unix(n, 0).UTC()
	}
}

// ReadCSV parses a bar table. Column names are matched case-insensitively
// against the Polygon and pandas spellings. Unparseable prices become NaN so
// gap filling can repair them later.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var out []Record
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ts, err := ParseTimestamp(row[idx["time"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec := Record{Bar: models.Bar{
			Time:  ts,
			Open:  parsePrice(row[idx["open"]]),
			High:  parsePrice(row[idx["high"]]),
			Low:   parsePrice(row[idx["low"]]),
			Close: parsePrice(row[idx["close"]]),
		}}
		if i, ok := idx["ticker"]; ok {
			rec.Ticker = row[i]
		}
		out = append(out, rec)
	}
	return out, nil
}

func mapColumns(header []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idx := make(map[string]int, len(columnAliases))
	for field, names := range columnAliases {
		for _, n := range names {
			if i, ok := pos[n]; ok {
				idx[field] = i
				break
			}
		}
		if _, ok := idx[field]; !ok && field != "ticker" {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, field)
		}
	}
	return idx, nil
}

func parsePrice(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ReadFile reads a CSV or Parquet flat file, chosen by extension.
func ReadFile(path string) ([]Record, error) {
	switch Format(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")) {
	case FormatCSV:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		recs, err := ReadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return recs, nil
	case FormatParquet:
		rows, err := parquet.ReadFile[parquetBar](path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out := make([]Record, len(rows))
		for i, r := range rows {
			out[i] = Record{Ticker: r.Ticker, Bar: models.Bar{
				Time: time.Unix(0, r.WindowStart).UTC(), Open: r.Open, High: r.High, Low: r.Low, Close: r.Close,
			}}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// WriteFile writes records in the Polygon flat-file layout, creating parent
// directories as needed.
func WriteFile(path string, recs []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	switch Format(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")) {
	case FormatCSV:
		return writeCSV(path, recs)
	case FormatParquet:
		rows := make([]parquetBar, len(recs))
		for i, r := range recs {
			rows[i] = parquetBar{
				Ticker: r.Ticker, WindowStart: r.Bar.Time.UnixNano(),
				Open: r.Bar.Open, High: r.Bar.High, Low: r.Bar.Low, Close: r.Bar.Close,
			}
		}
		return parquet.WriteFile(path, rows)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func writeCSV(path string, recs []Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	w := csv.NewWriter(f)

	if err := w.Write([]string{"ticker", "window_start", "open", "high", "low", "close"}); err != nil {
		return err
	}
	for _, r := range recs {
		if err := w.Write([]string{
			r.Ticker,
			strconv.FormatInt(r.Bar.Time.UnixNano(), 10),
			floatStr(r.Bar.Open),
			floatStr(r.Bar.High),
			floatStr(r.Bar.Low),
			floatStr(r.Bar.Close),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// ScaleRecords multiplies every price in recs by factor in place. Raw Polygon
// SPY aggregates are brought to the SPX-like scale with a factor of 10, which
// makes strike*100 in a ticker equal the listed SPY strike*1000. A factor of 0
// or 1 leaves recs untouched.
func ScaleRecords(recs []Record, factor float64) {
	if factor == 0 || factor == 1 {
		return
	}
	for i := range recs {
		recs[i].Bar = recs[i].Bar.Scaled(factor)
	}
}

// BarsOf strips tickers from records.
func BarsOf(recs []Record) []models.Bar {
	out := make([]models.Bar, len(recs))
	for i, r := range recs {
		out[i] = r.Bar
	}
	return out
}
