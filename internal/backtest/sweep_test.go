package backtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/zerotheta/internal/config"
	"github.com/eddiefleurent/zerotheta/internal/models"
	"github.com/eddiefleurent/zerotheta/internal/storage"
	"github.com/eddiefleurent/zerotheta/internal/tracking"
)

func TestVariants(t *testing.T) {
	base := config.Default()
	base.Sweep = config.SweepConfig{
		StopLosses:  []float64{0.5, 1},
		TakeProfits: []float64{1, 2},
		Windows:     []config.WindowConfig{{Start: "14:30", End: "16:00"}, {Start: "18:00", End: "20:30"}},
		Constraints: []models.StrikeConstraint{models.ConstraintEnforceITM, models.ConstraintEnforceOTM},
	}

	grid, err := Variants(base, SweepStopLossTakeProfit)
	require.NoError(t, err)
	require.Len(t, grid, 4)
	assert.Equal(t, "sl_0.5_tp_1", grid[0].Name)
	assert.Equal(t, 0.5, grid[0].Config.MoneyManagement.StopLoss)
	assert.Equal(t, 2.0, grid[3].Config.MoneyManagement.TakeProfit)
	assert.Equal(t, 1.0, base.MoneyManagement.StopLoss, "base must not change")

	windows, err := Variants(base, SweepWindows)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, "18:00", windows[1].Config.Schedule.StartTime)

	constraints, err := Variants(base, SweepConstraints)
	require.NoError(t, err)
	require.Len(t, constraints, 2)
	assert.Equal(t, models.ConstraintEnforceOTM, constraints[1].Config.Spread.StrikeConstraint)

	_, err = Variants(base, "bogus")
	assert.Error(t, err)

	_, err = Variants(config.Default(), SweepWindows)
	assert.Error(t, err, "empty sweep")
}

func TestRunSweep(t *testing.T) {
	f := newFixture(t, feb)
	f.cfg.Sweep.Constraints = []models.StrikeConstraint{models.ConstraintNone, models.ConstraintEnforceITM}
	variants, err := Variants(f.cfg, SweepConstraints)
	require.NoError(t, err)

	tracker := tracking.NewFileTracker(f.cfg.Run.ResultsDir, f.logger)
	results, err := RunSweep(context.Background(), variants, NewChainSource(f.cfg, f.logger), f.pairs(t), tracker, f.logger)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NotEqual(t, results[0].RunID, results[1].RunID)

	runs, err := tracker.ListRuns(f.cfg.Run.Experiment)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	ranked := RankByProfit(results)
	assert.GreaterOrEqual(t, ranked[0].Result.Summary.TotalProfit, ranked[1].Result.Summary.TotalProfit)

	store := storage.NewJSONStore(filepath.Join(f.cfg.Run.OutputDir, "sweep_constraints.json"))
	rows, err := SaveSweep(store, results)
	require.NoError(t, err)
	var loaded []SweepRow
	require.NoError(t, store.Load(&loaded))
	assert.Equal(t, rows, loaded)
	assert.Equal(t, ranked[0].Variant.Name, loaded[0].Variant)
}

func TestRunSweep_Cancelled(t *testing.T) {
	f := newFixture(t, feb)
	f.cfg.Sweep.Constraints = []models.StrikeConstraint{models.ConstraintNone}
	variants, err := Variants(f.cfg, SweepConstraints)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := RunSweep(ctx, variants, NewChainSource(f.cfg, f.logger), f.pairs(t),
		tracking.NewFileTracker(f.cfg.Run.ResultsDir, f.logger), f.logger)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}
