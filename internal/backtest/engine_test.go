package backtest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/zerotheta/internal/config"
	"github.com/eddiefleurent/zerotheta/internal/mock"
	"github.com/eddiefleurent/zerotheta/internal/models"
	"github.com/eddiefleurent/zerotheta/internal/storage"
	"github.com/eddiefleurent/zerotheta/internal/tracking"
)

var (
	feb = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	mar = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	cfg    *config.Config
	dirs   mock.Dirs
	logger *logrus.Logger
	hook   *test.Hook
}

func newFixture(t *testing.T, months ...time.Time) *fixture {
	t.Helper()
	root := t.TempDir()
	dirs := mock.Dirs{
		OneMinute:  filepath.Join(root, "1m"),
		FiveMinute: filepath.Join(root, "5m"),
		Options:    filepath.Join(root, "options"),
	}
	m := mock.NewMarketDataProvider(11, "SPY", 578)
	for _, month := range months {
		_, err := m.WriteMonth(dirs, month, storage.FormatCSV)
		require.NoError(t, err)
	}

	cfg := config.Default()
	cfg.Data.Index1MinDir = dirs.OneMinute
	cfg.Data.Index5MinDir = dirs.FiveMinute
	cfg.Data.OptionsDir = dirs.Options
	cfg.Strategy.ConfirmWith5Min = false
	cfg.Spread.StrikeConstraint = models.ConstraintNone
	cfg.Run.ResultsDir = filepath.Join(root, "runs")
	cfg.Run.OutputDir = filepath.Join(root, "reports")
	require.NoError(t, cfg.Validate())

	logger, hook := test.NewNullLogger()
	return &fixture{cfg: cfg, dirs: dirs, logger: logger, hook: hook}
}

func (f *fixture) engine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, NewChainSource(cfg, f.logger), f.logger)
	require.NoError(t, err)
	return e
}

func (f *fixture) pairs(t *testing.T) []storage.MonthPair {
	t.Helper()
	pairs, err := Discover(f.cfg, false, f.logger)
	require.NoError(t, err)
	return pairs
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Spread.Width = 7
	_, err := NewEngine(cfg, storage.NewMockChainSource(), nil)
	assert.Error(t, err)

	_, err = NewEngine(nil, storage.NewMockChainSource(), nil)
	assert.Error(t, err)
}

func TestRunMonth(t *testing.T) {
	f := newFixture(t, feb)
	e := f.engine(t, f.cfg)
	pairs := f.pairs(t)
	require.Len(t, pairs, 1)

	out, err := e.RunMonth(context.Background(), pairs[0])
	require.NoError(t, err)
	assert.Equal(t, "2025-02", out.Result.Name)
	require.Len(t, out.Days, 20)

	window, err := f.cfg.Window()
	require.NoError(t, err)
	profit, trades, entries := 0.0, 0, 0
	for i, d := range out.Days {
		assert.True(t, d.HasOptionData)
		if i > 0 {
			assert.True(t, d.Date.After(out.Days[i-1].Date))
		}
		entries += d.BullPutEntries + d.BearCallEntries
		for _, tr := range d.Trades {
			assert.True(t, window.Contains(tr.EntryBar.Time), "entry %s outside window", tr.EntryBar.Time)
			assert.False(t, tr.ExitBar.Time.Before(tr.EntryBar.Time))
			assert.InDelta(t, tr.ExitPrice-tr.EntryPrice, tr.Profit, 1e-9)
			profit += tr.Profit
			trades++
		}
		assert.Equal(t, len(d.Trades), d.Metrics.Wins+d.Metrics.Losses)
	}
	assert.Positive(t, entries)
	assert.Positive(t, trades)
	assert.Equal(t, trades, out.Result.Trades.TotalTrades())
	assert.InDelta(t, profit, out.Result.Trades.TotalProfit, 1e-6)
}

// listedScale rewrites every flat file under root with prices divided by ten,
// the way Polygon publishes SPY aggregates before preprocessing.
func listedScale(t *testing.T, root string) {
	t.Helper()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		recs, err := storage.ReadFile(path)
		if err != nil {
			return err
		}
		storage.ScaleRecords(recs, 0.1)
		return storage.WriteFile(path, recs)
	})
	require.NoError(t, err)
}

func TestRunMonth_RawPolygonFiles(t *testing.T) {
	f := newFixture(t)
	root := filepath.Dir(f.dirs.Options)
	_, err := mock.NewMarketDataProvider(11, "SPY", 5780).WriteMonth(f.dirs, feb, storage.FormatCSV)
	require.NoError(t, err)
	listedScale(t, root)

	raw := f.cfg.Clone()
	raw.Data.PriceScale = 10
	out, err := f.engine(t, raw).RunMonth(context.Background(), f.pairs(t)[0])
	require.NoError(t, err)
	require.Len(t, out.Days, 20)
	assert.Positive(t, out.Result.Trades.TotalTrades())
	for _, d := range out.Days {
		for _, tr := range d.Trades {
			assert.Greater(t, tr.Spread.Strikes.Sold, 1000.0, "strikes on the x10 scale")
		}
	}

	unscaled, err := f.engine(t, f.cfg).RunMonth(context.Background(), f.pairs(t)[0])
	require.NoError(t, err)
	assert.Zero(t, unscaled.Result.Trades.TotalTrades(), "listed-scale strikes never match the chain tickers")
}

func TestRunMonth_MissingOptionDay(t *testing.T) {
	f := newFixture(t, feb)
	missing := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Remove(filepath.Join(f.dirs.Options, "2025-02", "2025-02-03.csv")))

	out, err := f.engine(t, f.cfg).RunMonth(context.Background(), f.pairs(t)[0])
	require.NoError(t, err)
	require.Len(t, out.Days, 20)

	for _, d := range out.Days {
		if d.Date.Equal(missing) {
			assert.False(t, d.HasOptionData)
			assert.Empty(t, d.Trades)
		} else {
			assert.True(t, d.HasOptionData)
		}
	}
	assert.Len(t, out.Result.Trades.Days, 19)
	assert.Len(t, out.Result.Signals.Days, 20)
}

func TestRunMonth_Cancelled(t *testing.T) {
	f := newFixture(t, feb)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.engine(t, f.cfg).RunMonth(ctx, f.pairs(t)[0])
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunTotal_WorkerCountDoesNotChangeResults(t *testing.T) {
	f := newFixture(t, feb, mar)
	pairs := f.pairs(t)
	require.Len(t, pairs, 2)

	serial := f.cfg.Clone()
	serial.Run.Workers = 1
	parallel := f.cfg.Clone()
	parallel.Run.Workers = 4

	a, err := f.engine(t, serial).RunTotal(context.Background(), pairs)
	require.NoError(t, err)
	b, err := f.engine(t, parallel).RunTotal(context.Background(), pairs)
	require.NoError(t, err)

	require.Len(t, a.Summary.Months, 2)
	assert.Equal(t, "2025-02", a.Summary.Months[0].Name)
	assert.Equal(t, "2025-03", a.Summary.Months[1].Name)
	assert.Len(t, a.Days(), 41)
	assert.InDelta(t, a.Summary.TotalProfit, b.Summary.TotalProfit, 1e-9)
	assert.Equal(t, a.Summary.TotalWins, b.Summary.TotalWins)
	assert.Equal(t, a.Summary.TotalLosses, b.Summary.TotalLosses)
}

func TestRunDate(t *testing.T) {
	f := newFixture(t, feb)
	e := f.engine(t, f.cfg)
	pairs := f.pairs(t)

	d, err := e.RunDate(context.Background(), pairs, time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, d.HasOptionData)
	assert.Equal(t, 4, d.Date.Day())

	_, err = e.RunDate(context.Background(), pairs, time.Date(2025, 2, 8, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, storage.ErrNoData)

	_, err = e.RunDate(context.Background(), pairs, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}

func TestDiscover_LogsUnpairedFiles(t *testing.T) {
	f := newFixture(t, feb)
	stray := filepath.Join(f.dirs.OneMinute, "2025-01.csv")
	require.NoError(t, os.WriteFile(stray, []byte("timestamp,open,high,low,close\n"), 0o600))

	pairs, err := Discover(f.cfg, false, f.logger)
	require.NoError(t, err)
	assert.Len(t, pairs, 1)

	var warned bool
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["file"] == stray {
			warned = true
		}
	}
	assert.True(t, warned)

	empty := config.Default()
	empty.Data.Index1MinDir = t.TempDir()
	empty.Data.Index5MinDir = t.TempDir()
	_, err = Discover(empty, false, f.logger)
	assert.Error(t, err)
}

func TestEvaluateAndReports(t *testing.T) {
	f := newFixture(t, feb)
	tracker := tracking.NewFileTracker(f.cfg.Run.ResultsDir, f.logger)

	res, run, err := Evaluate(context.Background(), f.engine(t, f.cfg), f.pairs(t), tracker, "baseline")
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusFinished, run.Status)

	stored, err := tracker.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "baseline", stored.Name)
	assert.InDelta(t, res.Summary.TotalProfit, stored.Metrics["t/total_profit"], 1e-9)
	assert.Equal(t, "none", stored.Params["spread_calc/CONSTRAINT"])
	assert.Contains(t, stored.Tables, "monthly_summary")

	dir, err := WriteReports(f.cfg.Run.OutputDir, "baseline run", res)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.cfg.Run.OutputDir, "baseline_run"), dir)
	for _, name := range []string{"trades.csv", "trades.parquet", "days.csv", "months.csv"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestEvaluate_FailedRunIsRecorded(t *testing.T) {
	f := newFixture(t, feb)
	tracker := tracking.NewFileTracker(f.cfg.Run.ResultsDir, f.logger)
	bad := []storage.MonthPair{{Name: "2025-02", OneMinute: "missing.csv", FiveMinute: "missing.csv"}}

	_, run, err := Evaluate(context.Background(), f.engine(t, f.cfg), bad, tracker, "broken")
	require.Error(t, err)
	require.NotNil(t, run)

	stored, err := tracker.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)
}
