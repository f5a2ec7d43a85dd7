package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/zerotheta/internal/backtest"
	"github.com/eddiefleurent/zerotheta/internal/config"
	"github.com/eddiefleurent/zerotheta/internal/mock"
	"github.com/eddiefleurent/zerotheta/internal/models"
	"github.com/eddiefleurent/zerotheta/internal/storage"
	"github.com/eddiefleurent/zerotheta/internal/tracking"
)

const (
	modeDay      = "day"
	modeMonth    = "month"
	modeTotal    = "total"
	modeSweep    = "sweep"
	modeGenerate = "generate"
)

type options struct {
	configPath string
	envFile    string
	mode       string
	date       string
	month      string
	quicktest  bool
	runName    string
	sweep      string
	seed       uint64
	price      float64
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&opts.envFile, "env", ".env", "Environment file loaded before the config")
	flag.StringVar(&opts.mode, "mode", modeTotal, "Run mode: day | month | total | sweep | generate")
	flag.StringVar(&opts.date, "date", "", "Trading date for -mode day (YYYY-MM-DD)")
	flag.StringVar(&opts.month, "month", "", "Month for -mode month or generate (YYYY-MM)")
	flag.BoolVar(&opts.quicktest, "quicktest", false, "Use the quicktest index directories")
	flag.StringVar(&opts.runName, "run-name", "", "Name of the tracked run")
	flag.StringVar(&opts.sweep, "sweep", backtest.SweepStopLossTakeProfit, "Sweep for -mode sweep: sltp | windows | constraints")
	flag.Uint64Var(&opts.seed, "seed", 1, "Random seed for -mode generate")
	flag.Float64Var(&opts.price, "price", 5800, "Starting index price for -mode generate, on the x10 scale")
	flag.Parse()

	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Fatal("Failed to load env file")
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Interrupted")
			os.Exit(130)
		}
		logger.WithError(err).Fatal("Backtest failed")
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(cfg.Environment.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Environment.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *logrus.Logger) error {
	if opts.mode == modeGenerate {
		return generate(cfg, opts, logger)
	}

	source := backtest.NewChainSource(cfg, logger)
	pairs, err := backtest.Discover(cfg, opts.quicktest, logger)
	if err != nil {
		return err
	}
	tracker := tracking.NewFileTracker(cfg.Run.ResultsDir, logger)

	switch opts.mode {
	case modeDay:
		date, err := time.Parse(time.DateOnly, opts.date)
		if err != nil {
			return fmt.Errorf("-date: %w", err)
		}
		engine, err := backtest.NewEngine(cfg, source, logger)
		if err != nil {
			return err
		}
		day, err := engine.RunDate(ctx, pairs, date)
		if err != nil {
			return err
		}
		printDay(day)
		return nil

	case modeMonth:
		pair, err := backtest.FindMonth(pairs, opts.month)
		if err != nil {
			return err
		}
		engine, err := backtest.NewEngine(cfg, source, logger)
		if err != nil {
			return err
		}
		return evaluateMonth(ctx, engine, pair, tracker, runName(opts, "month_"+pair.Name), logger)

	case modeTotal:
		engine, err := backtest.NewEngine(cfg, source, logger)
		if err != nil {
			return err
		}
		name := runName(opts, "total")
		res, _, err := backtest.Evaluate(ctx, engine, pairs, tracker, name)
		if err != nil {
			return err
		}
		return writeReports(cfg, name, res, logger)

	case modeSweep:
		variants, err := backtest.Variants(cfg, opts.sweep)
		if err != nil {
			return err
		}
		results, err := backtest.RunSweep(ctx, variants, source, pairs, tracker, logger)
		if err != nil {
			return err
		}
		store := storage.NewJSONStore(filepath.Join(cfg.Run.OutputDir, "sweep_"+opts.sweep+".json"))
		rows, err := backtest.SaveSweep(store, results)
		if err != nil {
			return err
		}
		fmt.Printf("%-32s %12s %8s %8s\n", "variant", "profit", "trades", "win%")
		for _, r := range rows {
			fmt.Printf("%-32s %12.2f %8d %7.1f%%\n", r.Variant, r.TotalProfit, r.Trades, r.WinRate*100)
		}
		logger.WithField("path", store.Path()).Info("Sweep table written")
		return nil

	default:
		return fmt.Errorf("unknown mode %q", opts.mode)
	}
}

func evaluateMonth(ctx context.Context, engine *backtest.Engine, pair storage.MonthPair,
	tracker *tracking.FileTracker, name string, logger *logrus.Logger) error {
	res, _, err := backtest.Evaluate(ctx, engine, []storage.MonthPair{pair}, tracker, name)
	if err != nil {
		return err
	}
	for _, m := range res.Months {
		for _, d := range m.Days {
			printDay(d)
		}
	}
	return writeReports(engine.Config(), name, res, logger)
}

func writeReports(cfg *config.Config, name string, res backtest.TotalResult, logger *logrus.Logger) error {
	dir, err := backtest.WriteReports(cfg.Run.OutputDir, name, res)
	if err != nil {
		return fmt.Errorf("write reports: %w", err)
	}
	s := res.Summary
	logger.WithFields(logrus.Fields{
		"dir":              dir,
		"total_profit":     s.TotalProfit,
		"win_rate":         s.WinRate,
		"profit_per_trade": s.ProfitPerTrade,
		"sharpe_ratio":     s.MonthlyProfit.Sharpe,
	}).Info("Reports written")
	return nil
}

func printDay(d models.DayResult) {
	if !d.HasOptionData {
		fmt.Printf("%s  no option data\n", d.Date.Format(time.DateOnly))
		return
	}
	fmt.Printf("%s  entries bp=%d bc=%d  trades=%d  wins=%d  profit=%.2f  availability=%.2f\n",
		d.Date.Format(time.DateOnly), d.BullPutEntries, d.BearCallEntries, len(d.Trades),
		d.Metrics.Wins, d.Profit(), d.Metrics.SpreadAvailability)
}

func runName(opts options, fallback string) string {
	if opts.runName != "" {
		return opts.runName
	}
	return fmt.Sprintf("%s_%s", fallback, time.Now().Format("2006-01-02_15-04-05"))
}

// generate writes a synthetic month of index and option files into the
// configured directories.
func generate(cfg *config.Config, opts options, logger *logrus.Logger) error {
	month, err := time.Parse("2006-01", opts.month)
	if err != nil {
		return fmt.Errorf("-month: %w", err)
	}
	oneDir, fiveDir := cfg.IndexDirs(opts.quicktest)
	dirs := mock.Dirs{OneMinute: oneDir, FiveMinute: fiveDir, Options: cfg.Data.OptionsDir}

	provider := mock.NewMarketDataProvider(opts.seed, cfg.Data.Underlying, opts.price)
	dates, err := provider.WriteMonth(dirs, month, cfg.Data.Format)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"month": opts.month,
		"days":  len(dates),
		"seed":  opts.seed,
	}).Info("Synthetic data written")
	return nil
}
