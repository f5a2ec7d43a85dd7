package tracking

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(t *testing.T) *FileTracker {
	t.Helper()
	logger, _ := test.NewNullLogger()
	tr := NewFileTracker(t.TempDir(), logger)
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return tr
}

func TestRunLifecycle(t *testing.T) {
	tr := newTracker(t)

	run, err := tr.StartRun("ZeroTheta Eval", "")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Contains(t, run.Name, "run_2024-03-01")
	assert.FileExists(t, filepath.Join(tr.Dir(), "ZeroTheta_Eval", run.ID+".json"))

	run.LogParams(map[string]any{"mm/STOP_LOSS": 1.5, "spread/width": 20})
	run.LogMetric("win_rate", 0.6)
	require.NoError(t, run.LogTable("monthly_stats", []map[string]any{{"file_name": "2024-03.csv"}}))
	require.NoError(t, run.End(nil))

	got, err := tr.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, got.Status)
	assert.Equal(t, "1.5", got.Params["mm/STOP_LOSS"])
	assert.Equal(t, 0.6, got.Metrics["win_rate"])
	assert.JSONEq(t, `[{"file_name":"2024-03.csv"}]`, string(got.Tables["monthly_stats"]))
	assert.Equal(t, time.Second, got.Duration())
}

func TestRunEndWithError(t *testing.T) {
	tr := newTracker(t)
	run, err := tr.StartRun("exp", "broken")
	require.NoError(t, err)
	require.NoError(t, run.End(errors.New("no month files")))

	got, err := tr.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "no month files", got.Error)
}

func TestListRunsAndExperiments(t *testing.T) {
	tr := newTracker(t)
	a, err := tr.StartRun("alpha", "first")
	require.NoError(t, err)
	b, err := tr.StartRun("alpha", "second")
	require.NoError(t, err)
	_, err = tr.StartRun("beta", "other")
	require.NoError(t, err)

	runs, err := tr.ListRuns("alpha")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, b.ID, runs[0].ID, "newest first")
	assert.Equal(t, a.ID, runs[1].ID)

	all, err := tr.ListRuns("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	exps, err := tr.ListExperiments()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, exps)
}

func TestListRunsSkipsCorruptFiles(t *testing.T) {
	logger, hook := test.NewNullLogger()
	tr := NewFileTracker(t.TempDir(), logger)
	_, err := tr.StartRun("alpha", "ok")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(tr.Dir(), "alpha", "junk.json"), []byte("{"), 0o644))

	runs, err := tr.ListRuns("alpha")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestGetRunNotFound(t *testing.T) {
	tr := newTracker(t)
	_, err := tr.GetRun("not-a-uuid")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = tr.GetRun("8d0c9c1e-7f37-4d0b-9b8a-1d1f0e4c2a55")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStartRunRequiresExperiment(t *testing.T) {
	_, err := newTracker(t).StartRun(" ", "x")
	assert.Error(t, err)
}
