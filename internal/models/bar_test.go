package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minuteBars(n int) []Bar {
	start := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	bars := make([]Bar, n)
	for i := range bars {
		v := float64(i)
		bars[i] = Bar{Time: start.Add(time.Duration(i) * time.Minute), Open: v, High: v + 1, Low: v - 1, Close: v}
	}
	return bars
}

func TestBarSeries_Index(t *testing.T) {
	s := NewBarSeries(minuteBars(5))
	start := s.First().Time

	assert.Equal(t, 2, s.Index(start.Add(2*time.Minute)))
	assert.Equal(t, -1, s.Index(start.Add(90*time.Second)))
	assert.Equal(t, 2, s.IndexAtOrAfter(start.Add(90*time.Second)))
	assert.Equal(t, 0, s.IndexAtOrAfter(start.Add(-time.Hour)))
	assert.Equal(t, -1, s.IndexAtOrAfter(start.Add(time.Hour)))
}

func TestBarSeries_Columns(t *testing.T) {
	s := NewBarSeries(minuteBars(3))

	require.NoError(t, s.SetFlag(FlagEntryBullPut, []bool{false, true, false}))
	require.NoError(t, s.SetValue("rsi", []float64{math.NaN(), 40, 60}))
	assert.ErrorIs(t, s.SetFlag(FlagExitBullPut, []bool{true}), ErrColumnLength)

	assert.True(t, s.Flag(FlagEntryBullPut, 1))
	assert.False(t, s.Flag(FlagEntryBearCall, 1), "absent column reads false")
	assert.True(t, s.AnyFlag(1, SignalFlags...))
	assert.Equal(t, 1, s.CountFlag(FlagEntryBullPut))
	assert.Equal(t, []string{FlagEntryBullPut}, s.FlagNames())

	_, ok := s.Value("rsi", 0)
	assert.False(t, ok, "NaN is missing")
	v, ok := s.Value("rsi", 2)
	assert.True(t, ok)
	assert.Equal(t, 60.0, v)
}

func TestBarSeries_FilterCarriesColumns(t *testing.T) {
	s := NewBarSeries(minuteBars(4))
	require.NoError(t, s.SetFlag(FlagEntryBearCall, []bool{true, false, true, false}))

	even := s.Filter(func(i int, _ Bar) bool { return i%2 == 0 })
	require.Equal(t, 2, even.Len())
	assert.True(t, even.Flag(FlagEntryBearCall, 0))
	assert.True(t, even.Flag(FlagEntryBearCall, 1))

	require.NoError(t, s.SetValue("rsi", []float64{10, 20, 30, 40}))
	tail := s.Slice(2, 10)
	require.Equal(t, 2, tail.Len())
	assert.Equal(t, 2.0, tail.First().Close)
	v, ok := tail.Value("rsi", 1)
	assert.True(t, ok)
	assert.Equal(t, 40.0, v)
	assert.True(t, s.Slice(3, 1).Empty())
}

func TestBarSeries_EnsureFlag(t *testing.T) {
	s := NewBarSeries(minuteBars(3))
	require.NoError(t, s.SetFlag(FlagEntryBullPut, []bool{true, false, false}))

	s.EnsureFlag(FlagEntryBullPut)
	s.EnsureFlag(FlagEntryBearCall)
	assert.True(t, s.Flag(FlagEntryBullPut, 0), "existing column kept")
	assert.True(t, s.HasFlag(FlagEntryBearCall))
	assert.Equal(t, 0, s.CountFlag(FlagEntryBearCall))
}

func TestBar_Scaled(t *testing.T) {
	b := Bar{Time: time.Unix(0, 0), Open: 57.8, High: 58, Low: 57.5, Close: 57.9}
	got := b.Scaled(10)
	assert.InDelta(t, 578, got.Open, 1e-9)
	assert.InDelta(t, 580, got.High, 1e-9)
	assert.InDelta(t, 575, got.Low, 1e-9)
	assert.InDelta(t, 579, got.Close, 1e-9)
	assert.Equal(t, b.Time, got.Time)
	assert.Equal(t, b, b.Scaled(1))
}

func TestBar_Valid(t *testing.T) {
	assert.True(t, Bar{Open: 1, High: 2, Low: 0, Close: 1}.Valid())
	assert.False(t, Bar{Open: math.NaN()}.Valid())
	assert.False(t, Bar{Close: math.Inf(1)}.Valid())
}
