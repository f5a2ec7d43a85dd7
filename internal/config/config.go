// Package config provides configuration management for the backtester.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v3"

	"github.com/eddiefleurent/zerotheta/internal/models"
	"github.com/eddiefleurent/zerotheta/internal/options"
	"github.com/eddiefleurent/zerotheta/internal/storage"
)

const (
	defaultUnderlying = "SPY"
	defaultWorkers    = 4
	defaultCacheDays  = 4
	defaultExperiment = "ZeroTheta Eval"

	// Polygon lists SPY options; prices times ten put them on the SPX-like
	// scale whose strike*100 ticker encoding matches the listed contracts.
	defaultAPIPriceScale     = 10
	defaultRequestsPerSecond = 5
)

// Config represents the complete application configuration.
type Config struct {
	Environment     EnvironmentConfig     `yaml:"environment"`
	Data            DataConfig            `yaml:"data"`
	Polygon         PolygonConfig         `yaml:"polygon"`
	Schedule        ScheduleConfig        `yaml:"schedule"`
	Strategy        StrategyConfig        `yaml:"strategy"`
	Spread          SpreadConfig          `yaml:"spread"`
	MoneyManagement MoneyManagementConfig `yaml:"money_management"`
	Run             RunConfig             `yaml:"run"`
	Sweep           SweepConfig           `yaml:"sweep"`
	Dashboard       DashboardConfig       `yaml:"dashboard"`
}

// EnvironmentConfig defines logging settings.
type EnvironmentConfig struct {
	LogLevel  string `yaml:"log_level"`  // debug | info | warn | error
	LogFormat string `yaml:"log_format"` // text | json
}

// DataConfig locates the index and option flat files.
type DataConfig struct {
	Underlying       string         `yaml:"underlying"`
	Index1MinDir     string         `yaml:"index_1min_dir"`
	Index5MinDir     string         `yaml:"index_5min_dir"`
	Quicktest1MinDir string         `yaml:"quicktest_1min_dir"`
	Quicktest5MinDir string         `yaml:"quicktest_5min_dir"`
	OptionsDir       string         `yaml:"options_dir"`
	Format           storage.Format `yaml:"format"`
	CacheDays        int            `yaml:"cache_days"`
	APIFallback      bool           `yaml:"api_fallback"` // fetch missing option days from Polygon
	PriceScale       float64        `yaml:"price_scale"`  // 10 for raw Polygon flat files, 1 for preprocessed ones
}

// PolygonConfig defines aggregates API settings.
type PolygonConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	PriceScale        float64       `yaml:"price_scale"` // applied to every API bar
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// ScheduleConfig defines the evaluated intraday window.
type ScheduleConfig struct {
	Timezone  string `yaml:"timezone"`   // e.g., "UTC" or "America/New_York"
	StartTime string `yaml:"start_time"` // "HH:MM"
	EndTime   string `yaml:"end_time"`   // "HH:MM"
}

// StrategyConfig selects the entry strategy.
type StrategyConfig struct {
	Name            string         `yaml:"name"` // stoch_rsi | flags
	ConfirmWith5Min bool           `yaml:"confirm_with_5min"`
	StochRSI        StochRSIConfig `yaml:"stoch_rsi"`
}

// StochRSIConfig parameterizes the Stochastic RSI detector.
type StochRSIConfig struct {
	Window int     `yaml:"window"`
	Upper  float64 `yaml:"upper"`
	Lower  float64 `yaml:"lower"`
}

// SpreadConfig controls strike selection.
type SpreadConfig struct {
	Width            float64                 `yaml:"width"`
	StrikeConstraint models.StrikeConstraint `yaml:"strike_constraint"`
}

// MoneyManagementConfig defines exit rules.
type MoneyManagementConfig struct {
	StopLoss         float64                    `yaml:"stop_loss"`
	TakeProfit       float64                    `yaml:"take_profit"`
	Mode             models.MoneyManagementMode `yaml:"mode"`
	ExitBasedOnClose bool                       `yaml:"exit_based_on_close"`
	ExitWithOpen     bool                       `yaml:"exit_with_open"`
	ExitWithFixedMM  bool                       `yaml:"exit_with_fixed_mm"`
	MaxOpenPositions int                        `yaml:"max_open_positions"`
}

// RunConfig defines evaluation and output settings.
type RunConfig struct {
	Workers    int    `yaml:"workers"`
	Experiment string `yaml:"experiment"`
	ResultsDir string `yaml:"results_dir"`
	OutputDir  string `yaml:"output_dir"`
}

// SweepConfig lists the parameter grids explored by sweep mode.
type SweepConfig struct {
	StopLosses  []float64                 `yaml:"stop_losses"`
	TakeProfits []float64                 `yaml:"take_profits"`
	Windows     []WindowConfig            `yaml:"windows"`
	Constraints []models.StrikeConstraint `yaml:"constraints"`
}

// WindowConfig is one intraday window of a sweep.
type WindowConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// DashboardConfig defines the run viewer.
type DashboardConfig struct {
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML after expanding environment variables, then validates.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// Default returns a valid configuration with the documented defaults.
func Default() *Config {
	c := &Config{
		Strategy:        StrategyConfig{ConfirmWith5Min: true},
		MoneyManagement: MoneyManagementConfig{StopLoss: 1, TakeProfit: 2, ExitBasedOnClose: true, ExitWithOpen: true},
	}
	c.normalize()
	return c
}

// Clone returns a deep copy for per-run overrides.
func (c *Config) Clone() *Config {
	out := *c
	out.Sweep.StopLosses = append([]float64(nil), c.Sweep.StopLosses...)
	out.Sweep.TakeProfits = append([]float64(nil), c.Sweep.TakeProfits...)
	out.Sweep.Windows = append([]WindowConfig(nil), c.Sweep.Windows...)
	out.Sweep.Constraints = append([]models.StrikeConstraint(nil), c.Sweep.Constraints...)
	return &out
}

// normalize fills unset fields with defaults.
func (c *Config) normalize() {
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Environment.LogFormat == "" {
		c.Environment.LogFormat = "text"
	}
	if c.Data.Underlying == "" {
		c.Data.Underlying = defaultUnderlying
	}
	if c.Data.Format == "" {
		c.Data.Format = storage.FormatCSV
	}
	if c.Data.CacheDays == 0 {
		c.Data.CacheDays = defaultCacheDays
	}
	if c.Data.PriceScale == 0 {
		c.Data.PriceScale = 1
	}
	if c.Polygon.Timeout == 0 {
		c.Polygon.Timeout = 10 * time.Second
	}
	if c.Polygon.PriceScale == 0 {
		c.Polygon.PriceScale = defaultAPIPriceScale
	}
	if c.Polygon.RequestsPerSecond == 0 {
		c.Polygon.RequestsPerSecond = defaultRequestsPerSecond
	}
	if c.Polygon.Burst == 0 {
		c.Polygon.Burst = 1
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "UTC"
	}
	if c.Schedule.StartTime == "" {
		c.Schedule.StartTime = "14:30"
	}
	if c.Schedule.EndTime == "" {
		c.Schedule.EndTime = "21:00"
	}
	if c.Strategy.Name == "" {
		c.Strategy.Name = "stoch_rsi"
	}
	if c.Strategy.StochRSI.Window == 0 {
		c.Strategy.StochRSI.Window = 8
	}
	if c.Strategy.StochRSI.Upper == 0 {
		c.Strategy.StochRSI.Upper = 0.8
	}
	if c.Strategy.StochRSI.Lower == 0 {
		c.Strategy.StochRSI.Lower = 0.2
	}
	if c.Spread.Width == 0 {
		c.Spread.Width = options.DefaultWidth
	}
	if c.Spread.StrikeConstraint == "" {
		c.Spread.StrikeConstraint = models.ConstraintEnforceITM
	}
	if c.MoneyManagement.Mode == "" {
		c.MoneyManagement.Mode = models.ModeStatic
	}
	if c.MoneyManagement.MaxOpenPositions == 0 {
		c.MoneyManagement.MaxOpenPositions = 1
	}
	if c.Run.Workers == 0 {
		c.Run.Workers = defaultWorkers
	}
	if c.Run.Experiment == "" {
		c.Run.Experiment = defaultExperiment
	}
	if c.Run.ResultsDir == "" {
		c.Run.ResultsDir = "mlruns"
	}
	if c.Run.OutputDir == "" {
		c.Run.OutputDir = "reports"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// Validate applies defaults, then checks that all values are valid and consistent.
func (c *Config) Validate() error {
	c.normalize()

	if _, err := logrus.ParseLevel(c.Environment.LogLevel); err != nil {
		return fmt.Errorf("environment.log_level: %w", err)
	}
	if c.Environment.LogFormat != "text" && c.Environment.LogFormat != "json" {
		return fmt.Errorf("environment.log_format must be 'text' or 'json'")
	}

	if c.Data.Format != storage.FormatCSV && c.Data.Format != storage.FormatParquet {
		return fmt.Errorf("data.format must be 'csv' or 'parquet', got %q", c.Data.Format)
	}
	if c.Data.CacheDays < 0 {
		return fmt.Errorf("data.cache_days must be >= 0")
	}
	if c.Data.PriceScale < 0 {
		return fmt.Errorf("data.price_scale must be > 0")
	}
	if c.Polygon.PriceScale < 0 {
		return fmt.Errorf("polygon.price_scale must be > 0")
	}
	if c.Polygon.RequestsPerSecond < 0 || c.Polygon.Burst < 0 {
		return fmt.Errorf("polygon.requests_per_second and polygon.burst must be >= 0")
	}
	if c.Data.APIFallback && c.Polygon.APIKey == "" {
		return fmt.Errorf("polygon.api_key is required when data.api_fallback is enabled")
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Window(); err != nil {
		return err
	}

	switch c.Strategy.Name {
	case "stoch_rsi", "flags":
	default:
		return fmt.Errorf("strategy.name must be 'stoch_rsi' or 'flags', got %q", c.Strategy.Name)
	}
	if c.Strategy.StochRSI.Window < 2 {
		return fmt.Errorf("strategy.stoch_rsi.window must be >= 2")
	}
	if c.Strategy.StochRSI.Lower <= 0 || c.Strategy.StochRSI.Upper >= 1 ||
		c.Strategy.StochRSI.Lower >= c.Strategy.StochRSI.Upper {
		return fmt.Errorf("strategy.stoch_rsi thresholds must satisfy 0 < lower < upper < 1")
	}

	if !c.Spread.StrikeConstraint.Valid() {
		return fmt.Errorf("spread.strike_constraint: %w %q", models.ErrInvalidConstraint, c.Spread.StrikeConstraint)
	}
	if err := options.ValidateWidth(c.Spread.Width, c.Spread.StrikeConstraint); err != nil {
		return fmt.Errorf("spread.width: %w", err)
	}

	mm := c.MoneyManagement
	if mm.StopLoss <= 0 {
		return fmt.Errorf("money_management.stop_loss must be > 0")
	}
	if mm.TakeProfit <= 0 {
		return fmt.Errorf("money_management.take_profit must be > 0")
	}
	mode, err := models.ParseMoneyManagementMode(string(mm.Mode))
	if err != nil {
		return fmt.Errorf("money_management.mode: %w", err)
	}
	c.MoneyManagement.Mode = mode
	if mm.MaxOpenPositions < 1 {
		return fmt.Errorf("money_management.max_open_positions must be >= 1")
	}

	if c.Run.Workers < 1 {
		return fmt.Errorf("run.workers must be >= 1")
	}
	if c.Dashboard.Port < 1 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port must be between 1 and 65535")
	}

	return c.Sweep.validate()
}

func (s SweepConfig) validate() error {
	var errs []error
	for _, v := range s.StopLosses {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("sweep.stop_losses: %g must be > 0", v))
		}
	}
	for _, v := range s.TakeProfits {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("sweep.take_profits: %g must be > 0", v))
		}
	}
	for i, w := range s.Windows {
		if _, err := models.ParseWindow(w.Start, w.End); err != nil {
			errs = append(errs, fmt.Errorf("sweep.windows[%d]: %w", i, err))
		}
	}
	for _, sc := range s.Constraints {
		if !sc.Valid() {
			errs = append(errs, fmt.Errorf("sweep.constraints: %w %q", models.ErrInvalidConstraint, sc))
		}
	}
	return errors.Join(errs...)
}

// Location resolves schedule.timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}

// Window parses schedule.start_time and schedule.end_time.
func (c *Config) Window() (models.Window, error) {
	w, err := models.ParseWindow(c.Schedule.StartTime, c.Schedule.EndTime)
	if err != nil {
		return models.Window{}, fmt.Errorf("schedule: %w", err)
	}
	return w, nil
}

// IndexDirs returns the 1-minute and 5-minute index directories.
func (c *Config) IndexDirs(quicktest bool) (oneMin, fiveMin string) {
	if quicktest && c.Data.Quicktest1MinDir != "" && c.Data.Quicktest5MinDir != "" {
		return c.Data.Quicktest1MinDir, c.Data.Quicktest5MinDir
	}
	return c.Data.Index1MinDir, c.Data.Index5MinDir
}

// Params flattens the run-defining settings for experiment tracking.
func (c *Config) Params() map[string]any {
	return map[string]any{
		"strategy/STRATEGY":          c.Strategy.Name,
		"strategy/CONFIRM_WITH_5MIN": c.Strategy.ConfirmWith5Min,
		"strategy/STOCH_RSI_WINDOW":  c.Strategy.StochRSI.Window,
		"__START_TIME":               c.Schedule.StartTime,
		"__END_TIME":                 c.Schedule.EndTime,
		"mm/STOP_LOSS":               c.MoneyManagement.StopLoss,
		"mm/TAKE_PROFIT":             c.MoneyManagement.TakeProfit,
		"mm/MM_TYPE":                 c.MoneyManagement.Mode,
		"mm/EXIT_BASED_ON_CLOSE":     c.MoneyManagement.ExitBasedOnClose,
		"mm/MAX_OPEN_POSITIONS":      c.MoneyManagement.MaxOpenPositions,
		"exit/EXIT_W_OPEN":           c.MoneyManagement.ExitWithOpen,
		"exit/EXIT_W_MM":             c.MoneyManagement.ExitWithFixedMM,
		"spread_calc/CONSTRAINT":     c.Spread.StrikeConstraint,
		"spread_calc/WIDTH":          c.Spread.Width,
	}
}
