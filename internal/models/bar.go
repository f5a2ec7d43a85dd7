// Package models provides the data structures shared by the backtesting pipeline:
// minute bars, bar series with derived columns, spreads, positions and trades.
package models

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Signal flag columns produced by a signal detector.
const (
	FlagEntryBullPut  = "entry_bull_put"
	FlagEntryBearCall = "entry_bear_call"
	FlagExitBullPut   = "exit_bull_put"
	FlagExitBearCall  = "exit_bear_call"
)

// SignalFlags lists every flag column that marks a bar as a signal row.
var SignalFlags = []string{FlagEntryBullPut, FlagEntryBearCall, FlagExitBullPut, FlagExitBearCall}

// ErrColumnLength is returned when a derived column does not match the series length.
var ErrColumnLength = errors.New("column length does not match series length")

// Bar is one OHLC bar at minute resolution.
type Bar struct {
	Time  time.Time `json:"datetime"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// Valid reports whether every price field is a finite number.
func (b Bar) Valid() bool {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Scaled returns the bar with every price multiplied by factor.
func (b Bar) Scaled(factor float64) Bar {
	b.Open *= factor
	b.High *= factor
	b.Low *= factor
	b.Close *= factor
	return b
}

// BarSeries is an ordered run of bars plus optional derived columns.
// Boolean columns hold indicator flags; float columns hold indicator values.
type BarSeries struct {
	Bars   []Bar
	flags  map[string][]bool
	values map[string][]float64
}

// NewBarSeries wraps bars into a series without derived columns.
func NewBarSeries(bars []Bar) BarSeries {
	return BarSeries{Bars: bars}
}

// Len returns the number of bars.
func (s BarSeries) Len() int { return len(s.Bars) }

// Empty reports whether the series has no bars.
func (s BarSeries) Empty() bool { return len(s.Bars) == 0 }

// First returns the first bar. The series must not be empty.
func (s BarSeries) First() Bar { return s.Bars[0] }

// Last returns the last bar. The series must not be empty.
func (s BarSeries) Last() Bar { return s.Bars[len(s.Bars)-1] }

// Index returns the position of the bar stamped exactly t, or -1.
func (s BarSeries) Index(t time.Time) int {
	i := s.IndexAtOrAfter(t)
	if i >= 0 && s.Bars[i].Time.Equal(t) {
		return i
	}
	return -1
}

// IndexAtOrAfter returns the position of the first bar stamped at or after t, or -1.
func (s BarSeries) IndexAtOrAfter(t time.Time) int {
	i := sort.Search(len(s.Bars), func(i int) bool { return !s.Bars[i].Time.Before(t) })
	if i == len(s.Bars) {
		return -1
	}
	return i
}

// SetFlag attaches a boolean column.
func (s *BarSeries) SetFlag(name string, col []bool) error {
	if len(col) != len(s.Bars) {
		return fmt.Errorf("flag %s: %w (%d != %d)", name, ErrColumnLength, len(col), len(s.Bars))
	}
	s.putFlag(name, col)
	return nil
}

// putFlag stores col without a length check.
func (s *BarSeries) putFlag(name string, col []bool) {
	if s.flags == nil {
		s.flags = make(map[string][]bool)
	}
	s.flags[name] = col
}

// Flag returns the flag value at row i; absent columns read as false.
func (s BarSeries) Flag(name string, i int) bool {
	col, ok := s.flags[name]
	if !ok || i < 0 || i >= len(col) {
		return false
	}
	return col[i]
}

// EnsureFlag adds name as an all-false column when it is absent.
func (s *BarSeries) EnsureFlag(name string) {
	if !s.HasFlag(name) {
		s.putFlag(name, make([]bool, len(s.Bars)))
	}
}

// HasFlag reports whether the boolean column exists.
func (s BarSeries) HasFlag(name string) bool {
	_, ok := s.flags[name]
	return ok
}

// CountFlag returns how many rows have the flag set.
func (s BarSeries) CountFlag(name string) int {
	n := 0
	for _, v := range s.flags[name] {
		if v {
			n++
		}
	}
	return n
}

// AnyFlag reports whether row i has at least one of the named flags set.
func (s BarSeries) AnyFlag(i int, names ...string) bool {
	for _, name := range names {
		if s.Flag(name, i) {
			return true
		}
	}
	return false
}

// SetValue attaches a numeric column. Missing values are NaN.
func (s *BarSeries) SetValue(name string, col []float64) error {
	if len(col) != len(s.Bars) {
		return fmt.Errorf("value %s: %w (%d != %d)", name, ErrColumnLength, len(col), len(s.Bars))
	}
	s.putValue(name, col)
	return nil
}

func (s *BarSeries) putValue(name string, col []float64) {
	if s.values == nil {
		s.values = make(map[string][]float64)
	}
	s.values[name] = col
}

// Value returns the numeric column value at row i. ok is false when the column
// is absent or the value is missing.
func (s BarSeries) Value(name string, i int) (v float64, ok bool) {
	col, exists := s.values[name]
	if !exists || i < 0 || i >= len(col) || math.IsNaN(col[i]) {
		return 0, false
	}
	return col[i], true
}

// FlagNames returns the attached boolean column names in sorted order.
func (s BarSeries) FlagNames() []string {
	names := make([]string, 0, len(s.flags))
	for name := range s.flags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Closes returns the close prices in order.
func (s BarSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Filter returns a new series holding the rows for which keep returns true.
// Derived columns are carried along.
func (s BarSeries) Filter(keep func(i int, b Bar) bool) BarSeries {
	idx := make([]int, 0, len(s.Bars))
	for i, b := range s.Bars {
		if keep(i, b) {
			idx = append(idx, i)
		}
	}
	return s.pick(idx)
}

// Slice returns rows [from, to) as a new series.
func (s BarSeries) Slice(from, to int) BarSeries {
	if from < 0 {
		from = 0
	}
	if to > len(s.Bars) {
		to = len(s.Bars)
	}
	if from >= to {
		return BarSeries{}
	}
	idx := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		idx = append(idx, i)
	}
	return s.pick(idx)
}

func (s BarSeries) pick(idx []int) BarSeries {
	out := BarSeries{Bars: make([]Bar, len(idx))}
	for j, i := range idx {
		out.Bars[j] = s.Bars[i]
	}
	for name, col := range s.flags {
		picked := make([]bool, len(idx))
		for j, i := range idx {
			picked[j] = col[i]
		}
		out.putFlag(name, picked)
	}
	for name, col := range s.values {
		picked := make([]float64, len(idx))
		for j, i := range idx {
			picked[j] = col[i]
		}
		out.putValue(name, picked)
	}
	return out
}
