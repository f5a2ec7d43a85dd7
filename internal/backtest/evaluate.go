package backtest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/zerotheta/internal/report"
	"github.com/eddiefleurent/zerotheta/internal/storage"
	"github.com/eddiefleurent/zerotheta/internal/tracking"
)

// Tracker starts tracked runs.
type Tracker interface {
	StartRun(experiment, name string) (*tracking.Run, error)
}

// Evaluate runs every month pair inside a tracked run called name. The run
// records the configuration, the summary metrics and the monthly table, and
// is marked failed when the evaluation errors.
func Evaluate(ctx context.Context, e *Engine, pairs []storage.MonthPair, tracker Tracker, name string) (TotalResult, *tracking.Run, error) {
	run, err := tracker.StartRun(e.cfg.Run.Experiment, name)
	if err != nil {
		return TotalResult{}, nil, err
	}
	run.LogParams(e.cfg.Params())
	run.LogParam("data/MONTHS", len(pairs))

	result, err := e.RunTotal(ctx, pairs)
	if err != nil {
		if endErr := run.End(err); endErr != nil {
			e.logger.WithError(endErr).Warn("Failed to persist failed run")
		}
		return TotalResult{}, run, err
	}

	run.LogMetrics(result.Summary.Metrics())
	if err := run.LogTable("monthly_summary", result.Summary.Months); err != nil {
		e.logger.WithError(err).Warn("Failed to record monthly table")
	}
	if err := run.End(nil); err != nil {
		return result, run, fmt.Errorf("persist run: %w", err)
	}
	e.logger.WithFields(logrus.Fields{"run_id": run.ID, "run": run.Name}).Info("Run recorded")
	return result, run, nil
}

// WriteReports writes a run's tables under dir/name: trades as CSV and
// Parquet, the per-day trade table and the per-month table.
func WriteReports(dir, name string, result TotalResult) (string, error) {
	out := filepath.Join(dir, safeName(name))
	trades := report.AllTrades(result.Days())

	if err := report.WriteTradesCSV(filepath.Join(out, "trades.csv"), trades); err != nil {
		return out, err
	}
	if err := report.WriteTradesParquet(filepath.Join(out, "trades.parquet"), trades); err != nil {
		return out, err
	}
	if err := report.WriteDaysCSV(filepath.Join(out, "days.csv"), report.SummarizeTrades(result.Days())); err != nil {
		return out, err
	}
	if err := report.WriteMonthsCSV(filepath.Join(out, "months.csv"), result.Summary); err != nil {
		return out, err
	}
	return out, nil
}

func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, name)
}
