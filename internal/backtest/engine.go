// Package backtest runs month files through entry detection, spread
// resolution and trade simulation, and aggregates the results.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eddiefleurent/zerotheta/internal/config"
	"github.com/eddiefleurent/zerotheta/internal/models"
	"github.com/eddiefleurent/zerotheta/internal/report"
	"github.com/eddiefleurent/zerotheta/internal/series"
	"github.com/eddiefleurent/zerotheta/internal/signals"
	"github.com/eddiefleurent/zerotheta/internal/spread"
	"github.com/eddiefleurent/zerotheta/internal/storage"
	"github.com/eddiefleurent/zerotheta/internal/strategy"
)

// Engine evaluates one configuration over trading days.
type Engine struct {
	cfg      *config.Config
	strategy strategy.Strategy
	resolver *spread.Resolver
	window   models.Window
	loc      *time.Location
	logger   logrus.FieldLogger
}

// MonthOutcome is a month's summaries together with its per-day results.
type MonthOutcome struct {
	Result report.MonthResult
	Days   []models.DayResult
}

// TotalResult is the outcome of evaluating every month pair.
type TotalResult struct {
	Months  []MonthOutcome
	Summary report.RunSummary
}

// Days returns every day of every month in month order.
func (t TotalResult) Days() []models.DayResult {
	var out []models.DayResult
	for _, m := range t.Months {
		out = append(out, m.Days...)
	}
	return out
}

// NewEngine wires the detector, simulator and resolver described by cfg.
func NewEngine(cfg *config.Config, source storage.ChainSource, logger logrus.FieldLogger) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("backtest engine needs a config")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	window, err := cfg.Window()
	if err != nil {
		return nil, err
	}

	sr := cfg.Strategy.StochRSI
	detector, err := signals.NewStochRSI(sr.Window, sr.Upper, sr.Lower, cfg.Strategy.ConfirmWith5Min)
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}
	mm := cfg.MoneyManagement
	sim, err := strategy.NewSimulator(strategy.ExitPolicy{
		StopLoss:         mm.StopLoss,
		TakeProfit:       mm.TakeProfit,
		Mode:             mm.Mode,
		ExitBasedOnClose: mm.ExitBasedOnClose,
		ExitWithOpen:     mm.ExitWithOpen,
		ExitWithFixedMM:  mm.ExitWithFixedMM,
		MaxOpenPositions: mm.MaxOpenPositions,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("simulator: %w", err)
	}
	strat, err := strategy.New(cfg.Strategy.Name, detector, sim)
	if err != nil {
		return nil, err
	}
	resolver, err := spread.NewResolver(source, spread.Config{
		Underlying: cfg.Data.Underlying,
		Width:      cfg.Spread.Width,
		Constraint: cfg.Spread.StrikeConstraint,
		Location:   loc,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:      cfg,
		strategy: strat,
		resolver: resolver,
		window:   window,
		loc:      loc,
		logger:   logger,
	}, nil
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config { return e.cfg }

// RunDay evaluates one trading day. Indicators see the whole day; only
// signals inside the schedule window are traded. A day without an option
// chain is reported with HasOptionData false and no trades.
func (e *Engine) RunDay(ctx context.Context, day signals.Day) (models.DayResult, error) {
	result := models.DayResult{Date: day.Date, HasOptionData: true}
	log := e.logger.WithField("date", day.Date.Format("2006-01-02"))

	sigs, err := e.strategy.GenerateEntries(day)
	if err != nil {
		return result, fmt.Errorf("generate entries for %s: %w", day.Date.Format("2006-01-02"), err)
	}
	sigs = series.FilterWindow(sigs, e.window, e.loc)
	result.BullPutEntries = sigs.CountFlag(models.FlagEntryBullPut)
	result.BearCallEntries = sigs.CountFlag(models.FlagEntryBearCall)

	set, err := e.resolver.Resolve(ctx, sigs, day.Date, e.window)
	if err != nil {
		if errors.Is(err, spread.ErrNoOptionData) {
			log.Info("No option data for day, skipping")
			result.HasOptionData = false
			return result, nil
		}
		return result, err
	}

	trades, metrics, err := e.strategy.GenerateTrades(sigs, set)
	if err != nil {
		return result, fmt.Errorf("generate trades for %s: %w", day.Date.Format("2006-01-02"), err)
	}
	result.Trades = trades
	result.Metrics = metrics

	log.WithFields(logrus.Fields{
		"bull_put_entries":  result.BullPutEntries,
		"bear_call_entries": result.BearCallEntries,
		"trades":            len(trades),
		"profit":            result.Profit(),
	}).Debug("Day evaluated")
	return result, nil
}

// RunMonth evaluates every date present in both index files of pair. When
// the pair's name is a YYYY-MM month, dates outside that month are ignored.
func (e *Engine) RunMonth(ctx context.Context, pair storage.MonthPair) (MonthOutcome, error) {
	log := e.logger.WithField("month", pair.Name)

	days, err := e.loadDays(pair)
	if err != nil {
		return MonthOutcome{}, err
	}
	if len(days) == 0 {
		log.Warn("No common trading dates in month files")
	}

	results := make([]models.DayResult, 0, len(days))
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return MonthOutcome{}, err
		}
		r, err := e.RunDay(ctx, day)
		if err != nil {
			return MonthOutcome{}, fmt.Errorf("month %s: %w", pair.Name, err)
		}
		results = append(results, r)
	}

	out := MonthOutcome{
		Result: report.MonthResult{
			Name:    pair.Name,
			Signals: report.SummarizeSignals(results),
			Trades:  report.SummarizeTrades(results),
		},
		Days: results,
	}
	log.WithFields(logrus.Fields{
		"days":     len(results),
		"trades":   out.Result.Trades.TotalTrades(),
		"profit":   out.Result.Trades.TotalProfit,
		"win_rate": out.Result.Trades.WinRate,
	}).Info("Month evaluated")
	return out, nil
}

// RunDate evaluates a single date from the month file that contains it.
func (e *Engine) RunDate(ctx context.Context, pairs []storage.MonthPair, date time.Time) (models.DayResult, error) {
	pair, err := FindMonth(pairs, date.Format("2006-01"))
	if err != nil {
		return models.DayResult{}, err
	}
	days, err := e.loadDays(pair)
	if err != nil {
		return models.DayResult{}, err
	}
	want := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, e.loc)
	for _, d := range days {
		if d.Date.Equal(want) {
			return e.RunDay(ctx, d)
		}
	}
	return models.DayResult{}, fmt.Errorf("%s: %w", want.Format("2006-01-02"), storage.ErrNoData)
}

func (e *Engine) loadDays(pair storage.MonthPair) ([]signals.Day, error) {
	one, err := storage.LoadIndexSeries(pair.OneMinute, e.cfg.Data.PriceScale)
	if err != nil {
		return nil, fmt.Errorf("month %s: %w", pair.Name, err)
	}
	five, err := storage.LoadIndexSeries(pair.FiveMinute, e.cfg.Data.PriceScale)
	if err != nil {
		return nil, fmt.Errorf("month %s: %w", pair.Name, err)
	}
	return e.commonDays(pair.Name, one, five), nil
}

func (e *Engine) commonDays(name string, one, five models.BarSeries) []signals.Day {
	month, monthErr := time.ParseInLocation("2006-01", name, e.loc)
	fiveByDate := make(map[time.Time]models.BarSeries)
	for _, d := range series.SplitByDay(five, e.loc) {
		fiveByDate[d.Date] = d.Series
	}

	var days []signals.Day
	for _, d := range series.SplitByDay(one, e.loc) {
		if monthErr == nil && (d.Date.Year() != month.Year() || d.Date.Month() != month.Month()) {
			continue
		}
		f, ok := fiveByDate[d.Date]
		if !ok {
			continue
		}
		days = append(days, signals.Day{Date: d.Date, OneMinute: d.Series, FiveMinute: f})
	}
	return days
}

// RunTotal evaluates all month pairs with at most run.workers months in
// flight, then combines the month summaries.
func (e *Engine) RunTotal(ctx context.Context, pairs []storage.MonthPair) (TotalResult, error) {
	months := make([]MonthOutcome, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Run.Workers)
	for i, pair := range pairs {
		g.Go(func() error {
			m, err := e.RunMonth(gctx, pair)
			if err != nil {
				return err
			}
			months[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TotalResult{}, err
	}

	results := make([]report.MonthResult, len(months))
	for i, m := range months {
		results[i] = m.Result
	}
	summary := report.Combine(results)
	e.logger.WithFields(logrus.Fields{
		"months":       summary.Months,
		"valid_months": summary.ValidMonths,
		"trades":       summary.TotalWins + summary.TotalLosses,
		"profit":       summary.TotalProfit,
		"win_rate":     summary.WinRate,
	}).Info("Evaluation complete")
	return TotalResult{Months: months, Summary: summary}, nil
}

// Discover pairs the month files of the configured index directories and
// logs any file that has no counterpart.
func Discover(cfg *config.Config, quicktest bool, logger logrus.FieldLogger) ([]storage.MonthPair, error) {
	oneDir, fiveDir := cfg.IndexDirs(quicktest)
	pairs, unpaired, err := storage.PairMonthFiles(oneDir, fiveDir, cfg.Data.Format)
	if err != nil {
		return nil, err
	}
	for _, f := range unpaired {
		logger.WithField("file", f).Warn("Index file has no matching 1-minute/5-minute counterpart, skipping")
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no month files found in %s and %s", oneDir, fiveDir)
	}
	return pairs, nil
}

// FindMonth returns the pair named month.
func FindMonth(pairs []storage.MonthPair, month string) (storage.MonthPair, error) {
	for _, p := range pairs {
		if p.Name == month {
			return p, nil
		}
	}
	return storage.MonthPair{}, fmt.Errorf("month %s not found", month)
}
