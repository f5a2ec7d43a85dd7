package backtest

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/zerotheta/internal/config"
	"github.com/eddiefleurent/zerotheta/internal/storage"
)

// Sweep kinds.
const (
	SweepStopLossTakeProfit = "sltp"
	SweepWindows            = "windows"
	SweepConstraints        = "constraints"
)

// Variant is one configuration of a sweep.
type Variant struct {
	Name   string
	Config *config.Config
}

// SweepResult pairs a variant with its tracked outcome.
type SweepResult struct {
	Variant Variant
	RunID   string
	Result  TotalResult
}

// Variants expands base into the configurations of the named sweep. Each
// variant is a clone of base with one parameter set overridden.
func Variants(base *config.Config, kind string) ([]Variant, error) {
	sw := base.Sweep
	var out []Variant
	switch kind {
	case SweepStopLossTakeProfit:
		for _, sl := range sw.StopLosses {
			for _, tp := range sw.TakeProfits {
				c := base.Clone()
				c.MoneyManagement.StopLoss = sl
				c.MoneyManagement.TakeProfit = tp
				out = append(out, Variant{Name: fmt.Sprintf("sl_%g_tp_%g", sl, tp), Config: c})
			}
		}
	case SweepWindows:
		for _, w := range sw.Windows {
			c := base.Clone()
			c.Schedule.StartTime = w.Start
			c.Schedule.EndTime = w.End
			out = append(out, Variant{Name: fmt.Sprintf("window_%s_%s", w.Start, w.End), Config: c})
		}
	case SweepConstraints:
		for _, sc := range sw.Constraints {
			c := base.Clone()
			c.Spread.StrikeConstraint = sc
			out = append(out, Variant{Name: "constraint_" + string(sc), Config: c})
		}
	default:
		return nil, fmt.Errorf("unknown sweep %q: expected %s, %s or %s", kind, SweepStopLossTakeProfit, SweepWindows, SweepConstraints)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("sweep %s has no values configured", kind)
	}
	for _, v := range out {
		if err := v.Config.Validate(); err != nil {
			return nil, fmt.Errorf("variant %s: %w", v.Name, err)
		}
	}
	return out, nil
}

// RunSweep evaluates each variant in turn as its own tracked run. Variants
// share source so cached chain days are reused across runs.
func RunSweep(ctx context.Context, variants []Variant, source storage.ChainSource, pairs []storage.MonthPair,
	tracker Tracker, logger logrus.FieldLogger) ([]SweepResult, error) {
	results := make([]SweepResult, 0, len(variants))
	for _, v := range variants {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		log := logger.WithField("variant", v.Name)
		engine, err := NewEngine(v.Config, source, log)
		if err != nil {
			return results, fmt.Errorf("variant %s: %w", v.Name, err)
		}
		res, run, err := Evaluate(ctx, engine, pairs, tracker, v.Name)
		if err != nil {
			return results, fmt.Errorf("variant %s: %w", v.Name, err)
		}
		results = append(results, SweepResult{Variant: v, RunID: run.ID, Result: res})
	}
	return results, nil
}

// RankByProfit orders results by total profit, best first.
func RankByProfit(results []SweepResult) []SweepResult {
	out := append([]SweepResult(nil), results...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Result.Summary.TotalProfit > out[j].Result.Summary.TotalProfit
	})
	return out
}

// SweepRow is the persisted summary of one sweep variant.
type SweepRow struct {
	Variant     string  `json:"variant"`
	RunID       string  `json:"run_id"`
	TotalProfit float64 `json:"total_profit"`
	WinRate     float64 `json:"win_rate"`
	Trades      int     `json:"trades"`
	Sharpe      float64 `json:"sharpe_ratio"`
}

// SaveSweep stores the ranked sweep table in store.
func SaveSweep(store *storage.JSONStore, results []SweepResult) ([]SweepRow, error) {
	ranked := RankByProfit(results)
	rows := make([]SweepRow, len(ranked))
	for i, r := range ranked {
		s := r.Result.Summary
		rows[i] = SweepRow{
			Variant:     r.Variant.Name,
			RunID:       r.RunID,
			TotalProfit: s.TotalProfit,
			WinRate:     s.WinRate,
			Trades:      s.TotalWins + s.TotalLosses,
			Sharpe:      s.MonthlyProfit.Sharpe,
		}
	}
	if err := store.Save(rows); err != nil {
		return nil, fmt.Errorf("save sweep table: %w", err)
	}
	return rows, nil
}
