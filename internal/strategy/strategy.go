// Package strategy turns signal rows and resolved spreads into simulated trades.
package strategy

import (
	"fmt"

	"github.com/eddiefleurent/zerotheta/internal/models"
	"github.com/eddiefleurent/zerotheta/internal/signals"
	"github.com/eddiefleurent/zerotheta/internal/spread"
)

// Strategy names accepted by New.
const (
	NameStochRSI = "stoch_rsi"
	NameFlags    = "flags"
)

// Strategy is an interchangeable entry/exit rule set.
type Strategy interface {
	Name() string
	// GenerateEntries returns the day's 1-minute series with signal flag columns.
	GenerateEntries(day signals.Day) (models.BarSeries, error)
	// GenerateTrades simulates the entries that have a resolved spread.
	GenerateTrades(sigs models.BarSeries, spreads spread.Set) ([]models.Trade, models.DayMetrics, error)
}

// StochRSIStrategy detects entries with a Stochastic RSI detector.
type StochRSIStrategy struct {
	detector signals.Detector
	sim      *Simulator
}

// NewStochRSIStrategy wires a detector and simulator.
func NewStochRSIStrategy(detector signals.Detector, sim *Simulator) *StochRSIStrategy {
	return &StochRSIStrategy{detector: detector, sim: sim}
}

// Name implements Strategy.
func (s *StochRSIStrategy) Name() string { return NameStochRSI }

// GenerateEntries implements Strategy.
func (s *StochRSIStrategy) GenerateEntries(day signals.Day) (models.BarSeries, error) {
	out, err := s.detector.Detect(day)
	if err != nil {
		return models.BarSeries{}, fmt.Errorf("%s detect: %w", s.Name(), err)
	}
	signals.EnsureFlags(&out)
	return out, nil
}

// GenerateTrades implements Strategy.
func (s *StochRSIStrategy) GenerateTrades(sigs models.BarSeries, spreads spread.Set) ([]models.Trade, models.DayMetrics, error) {
	trades, metrics := s.sim.Run(sigs, spreads)
	return trades, metrics, nil
}

// FlagStrategy trusts flag columns computed upstream by an external detector.
type FlagStrategy struct {
	sim *Simulator
}

// NewFlagStrategy wraps a simulator.
func NewFlagStrategy(sim *Simulator) *FlagStrategy {
	return &FlagStrategy{sim: sim}
}

// Name implements Strategy.
func (s *FlagStrategy) Name() string { return NameFlags }

// GenerateEntries returns the 1-minute series, adding empty columns for any
// signal flag the upstream detector did not provide.
func (s *FlagStrategy) GenerateEntries(day signals.Day) (models.BarSeries, error) {
	out := day.OneMinute.Slice(0, day.OneMinute.Len())
	signals.EnsureFlags(&out)
	return out, nil
}

// GenerateTrades implements Strategy.
func (s *FlagStrategy) GenerateTrades(sigs models.BarSeries, spreads spread.Set) ([]models.Trade, models.DayMetrics, error) {
	trades, metrics := s.sim.Run(sigs, spreads)
	return trades, metrics, nil
}

// New builds a strategy by name. detector is only used by stoch_rsi.
func New(name string, detector signals.Detector, sim *Simulator) (Strategy, error) {
	if sim == nil {
		return nil, fmt.Errorf("strategy %s needs a simulator", name)
	}
	switch name {
	case NameStochRSI:
		if detector == nil {
			return nil, fmt.Errorf("strategy %s needs a detector", name)
		}
		return NewStochRSIStrategy(detector, sim), nil
	case NameFlags:
		return NewFlagStrategy(sim), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q: expected %s or %s", name, NameStochRSI, NameFlags)
	}
}

// Ensure implementations satisfy the interface
var (
	_ Strategy = (*StochRSIStrategy)(nil)
	_ Strategy = (*FlagStrategy)(nil)
)
