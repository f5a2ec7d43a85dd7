// Package tracking records experiment runs (params, metrics and tables) as
// JSON documents under a results directory.
package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/zerotheta/internal/storage"
)

// ErrRunNotFound is returned by GetRun for unknown IDs.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusRunning  RunStatus = "running"
	StatusFinished RunStatus = "finished"
	StatusFailed   RunStatus = "failed"
)

// Run is one tracked evaluation.
type Run struct {
	ID         string                     `json:"id"`
	Experiment string                     `json:"experiment"`
	Name       string                     `json:"name"`
	Status     RunStatus                  `json:"status"`
	StartedAt  time.Time                  `json:"started_at"`
	EndedAt    time.Time                  `json:"ended_at,omitempty"`
	Params     map[string]string          `json:"params"`
	Metrics    map[string]float64         `json:"metrics"`
	Tables     map[string]json.RawMessage `json:"tables,omitempty"`
	Error      string                     `json:"error,omitempty"`

	mu      sync.Mutex
	tracker *FileTracker
}

// LogParam records a parameter, formatted with %v.
func (r *Run) LogParam(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Params[key] = fmt.Sprint(value)
}

// LogParams records several parameters.
func (r *Run) LogParams(params map[string]any) {
	for k, v := range params {
		r.LogParam(k, v)
	}
}

// LogMetric records a scalar metric.
func (r *Run) LogMetric(key string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Metrics[key] = value
}

// LogMetrics records several metrics.
func (r *Run) LogMetrics(metrics map[string]float64) {
	for k, v := range metrics {
		r.LogMetric(k, v)
	}
}

// LogTable stores v as a named JSON table.
func (r *Run) LogTable(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal table %s: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Tables == nil {
		r.Tables = make(map[string]json.RawMessage)
	}
	r.Tables[name] = data
	return nil
}

// End marks the run finished, or failed when runErr is non-nil, and persists it.
func (r *Run) End(runErr error) error {
	r.mu.Lock()
	r.EndedAt = r.tracker.now()
	r.Status = StatusFinished
	if runErr != nil {
		r.Status = StatusFailed
		r.Error = runErr.Error()
	}
	r.mu.Unlock()
	return r.tracker.save(r)
}

// Duration is the wall time between start and end.
func (r *Run) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// FileTracker stores runs as <dir>/<experiment>/<run id>.json.
type FileTracker struct {
	dir    string
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewFileTracker creates a tracker rooted at dir.
func NewFileTracker(dir string, logger logrus.FieldLogger) *FileTracker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FileTracker{dir: dir, logger: logger, now: time.Now}
}

// Dir returns the results directory.
func (t *FileTracker) Dir() string { return t.dir }

// StartRun creates a running run and persists it immediately.
func (t *FileTracker) StartRun(experiment, name string) (*Run, error) {
	if strings.TrimSpace(experiment) == "" {
		return nil, errors.New("experiment name is required")
	}
	r := &Run{
		ID:         uuid.NewString(),
		Experiment: experiment,
		Name:       name,
		Status:     StatusRunning,
		StartedAt:  t.now(),
		Params:     make(map[string]string),
		Metrics:    make(map[string]float64),
		tracker:    t,
	}
	if r.Name == "" {
		r.Name = "run_" + r.StartedAt.Format("2006-01-02_15-04-05")
	}
	if err := t.save(r); err != nil {
		return nil, err
	}
	t.logger.WithFields(logrus.Fields{"experiment": experiment, "run": r.Name, "id": r.ID}).Info("Started run")
	return r, nil
}

func (t *FileTracker) save(r *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	path := filepath.Join(t.dir, experimentDir(r.Experiment), r.ID+".json")
	if err := storage.WriteJSON(path, r); err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

// ListExperiments returns the experiment names that have runs.
func (t *FileTracker) ListExperiments() ([]string, error) {
	runs, err := t.ListRuns("")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range runs {
		if !seen[r.Experiment] {
			seen[r.Experiment] = true
			out = append(out, r.Experiment)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListRuns returns the runs of experiment, newest first. An empty experiment
// lists every run.
func (t *FileTracker) ListRuns(experiment string) ([]*Run, error) {
	pattern := filepath.Join(t.dir, "*", "*.json")
	if experiment != "" {
		pattern = filepath.Join(t.dir, experimentDir(experiment), "*.json")
	}
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	runs := make([]*Run, 0, len(paths))
	for _, p := range paths {
		var r Run
		if err := storage.ReadJSON(p, &r); err != nil {
			t.logger.WithError(err).WithField("path", p).Warn("Skipping unreadable run file")
			continue
		}
		runs = append(runs, &r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	return runs, nil
}

// GetRun loads a run by ID from any experiment.
func (t *FileTracker) GetRun(id string) (*Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	paths, err := filepath.Glob(filepath.Join(t.dir, "*", id+".json"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	var r Run
	if err := storage.ReadJSON(paths[0], &r); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}
	return &r, nil
}

// experimentDir maps an experiment name to a directory name.
func experimentDir(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
