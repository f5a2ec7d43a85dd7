package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

var day = time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)

func optionRecords() []Record {
	at := time.Date(2025, 3, 7, 14, 30, 0, 0, time.UTC)
	return []Record{
		{Ticker: "O:SPY250307C00578000", Bar: models.Bar{Time: at.Add(time.Minute), Close: 2}},
		{Ticker: "O:SPY250307C00578000", Bar: models.Bar{Time: at, Close: 1}},
		{Ticker: "O:QQQ250307C00500000", Bar: models.Bar{Time: at, Close: 9}},
	}
}

func TestFileChainSource(t *testing.T) {
	dir := t.TempDir()
	logger, hook := test.NewNullLogger()
	src := NewFileChainSource(dir, FormatCSV, "SPY", logger)

	assert.Equal(t, filepath.Join(dir, "2025-03", "2025-03-07.csv"), src.DayPath(day))

	_, err := src.LoadDay(context.Background(), day)
	require.ErrorIs(t, err, ErrNoData)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)

	require.NoError(t, WriteFile(src.DayPath(day), optionRecords()))
	chain, err := src.LoadDay(context.Background(), day)
	require.NoError(t, err)

	bars, err := chain.Leg(context.Background(), "O:SPY250307C00578000")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Time.Before(bars[1].Time), "legs are time ordered")

	other, err := chain.Leg(context.Background(), "O:QQQ250307C00500000")
	require.NoError(t, err)
	assert.Empty(t, other, "other underlyings are filtered out")
}

func TestFileChainSource_Scaled(t *testing.T) {
	src := NewFileChainSource(t.TempDir(), FormatCSV, "SPY", nil)
	src.Scale = 10
	require.NoError(t, WriteFile(src.DayPath(day), optionRecords()))

	chain, err := src.LoadDay(context.Background(), day)
	require.NoError(t, err)
	bars, err := chain.Leg(context.Background(), "O:SPY250307C00578000")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, []float64{10, 20}, []float64{bars[0].Close, bars[1].Close})
}

func TestFileChainSource_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileChainSource(t.TempDir(), FormatCSV, "SPY", nil).LoadDay(ctx, day)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCachedChainSource(t *testing.T) {
	mock := NewMockChainSource()
	mock.SetDay(day, optionRecords())
	cache := NewCachedChainSource(mock, 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := cache.LoadDay(ctx, day)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, mock.GetLoadCallCount())

	// missing days are remembered too
	for i := 0; i < 2; i++ {
		_, err := cache.LoadDay(ctx, day.AddDate(0, 0, 1))
		assert.ErrorIs(t, err, ErrNoData)
	}
	assert.Equal(t, 2, mock.GetLoadCallCount())

	_, _ = cache.LoadDay(ctx, day.AddDate(0, 0, 2))
	assert.Equal(t, 2, cache.Len(), "oldest day evicted")
}

func TestCachedChainSource_ErrorsNotCached(t *testing.T) {
	mock := NewMockChainSource()
	boom := errors.New("disk on fire")
	mock.SetLoadError(boom)
	cache := NewCachedChainSource(mock, 4)

	_, err := cache.LoadDay(context.Background(), day)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.Len())
}

func TestCachedChainSource_Concurrent(t *testing.T) {
	mock := NewMockChainSource()
	mock.SetDay(day, optionRecords())
	cache := NewCachedChainSource(mock, 4)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chain, err := cache.LoadDay(context.Background(), day)
			assert.NoError(t, err)
			assert.NotNil(t, chain)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, cache.Len())
}

func TestFallbackChainSource(t *testing.T) {
	primary := NewMockChainSource()
	fallback := NewMockChainSource()
	fallback.SetDay(day, optionRecords())
	logger, _ := test.NewNullLogger()
	src := &FallbackChainSource{Primary: primary, Fallback: fallback, Logger: logger}

	chain, err := src.LoadDay(context.Background(), day)
	require.NoError(t, err)
	require.NotNil(t, chain)
	assert.Equal(t, 1, fallback.GetLoadCallCount())

	primary.SetLoadError(errors.New("permission denied"))
	_, err = src.LoadDay(context.Background(), day)
	assert.EqualError(t, err, "permission denied")
	assert.Equal(t, 1, fallback.GetLoadCallCount(), "hard errors are not retried on the fallback")
}
