package strategy

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/zerotheta/internal/models"
	"github.com/eddiefleurent/zerotheta/internal/spread"
)

// ExitPolicy configures how open positions are managed and closed.
type ExitPolicy struct {
	StopLoss         float64
	TakeProfit       float64
	Mode             models.MoneyManagementMode
	ExitBasedOnClose bool // compare Close; otherwise Low vs stop-loss and High vs take-profit
	ExitWithOpen     bool // fill at the next bar's Open
	ExitWithFixedMM  bool // settle at exactly -StopLoss or +TakeProfit
	MaxOpenPositions int
}

// Validate checks the policy for configuration errors.
func (p ExitPolicy) Validate() error {
	var errs []error
	if p.StopLoss <= 0 {
		errs = append(errs, fmt.Errorf("stop_loss must be positive, got %g", p.StopLoss))
	}
	if p.TakeProfit <= 0 {
		errs = append(errs, fmt.Errorf("take_profit must be positive, got %g", p.TakeProfit))
	}
	if p.Mode != models.ModeStatic && p.Mode != models.ModeTrailing {
		errs = append(errs, fmt.Errorf("%w %q", models.ErrInvalidMode, string(p.Mode)))
	}
	if p.MaxOpenPositions < 0 {
		errs = append(errs, fmt.Errorf("max_open_positions must not be negative, got %d", p.MaxOpenPositions))
	}
	return errors.Join(errs...)
}

// Simulator walks resolved spread series and produces closed trades.
type Simulator struct {
	policy ExitPolicy
	logger logrus.FieldLogger
}

// NewSimulator validates policy. A zero MaxOpenPositions means one.
func NewSimulator(policy ExitPolicy, logger logrus.FieldLogger) (*Simulator, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if policy.MaxOpenPositions == 0 {
		policy.MaxOpenPositions = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Simulator{policy: policy, logger: logger}, nil
}

// Policy returns the effective exit policy.
func (s *Simulator) Policy() ExitPolicy { return s.policy }

// Run simulates every entry row of signals that has a resolved spread. Entries
// arriving while MaxOpenPositions earlier positions are still open are ignored.
func (s *Simulator) Run(signals models.BarSeries, spreads spread.Set) ([]models.Trade, models.DayMetrics) {
	metrics := models.DayMetrics{
		Flagged:            spreads.Flagged,
		Resolved:           spreads.Resolved,
		SpreadAvailability: spreads.Availability(),
	}
	var trades []models.Trade
	var open []models.Trade

	for i, row := range signals.Bars {
		if !signals.Flag(models.FlagEntryBullPut, i) && !signals.Flag(models.FlagEntryBearCall, i) {
			continue
		}
		b, ok := spreads.Get(row.Time)
		if !ok {
			continue
		}

		still := open[:0]
		for _, t := range open {
			if !t.ExitBar.Time.Before(row.Time) {
				still = append(still, t)
			}
		}
		open = still
		if len(open) >= s.policy.MaxOpenPositions {
			s.logger.WithField("signal", row.Time).Debug("Position already open, ignoring entry")
			continue
		}

		trade, ok := s.simulate(b)
		if !ok {
			continue
		}
		trades = append(trades, trade)
		open = append(open, trade)
		if trade.IsWin() {
			metrics.Wins++
		} else {
			metrics.Losses++
		}
	}
	return trades, metrics
}

// simulate runs one position over its spread series.
func (s *Simulator) simulate(b spread.Bundle) (models.Trade, bool) {
	bars := b.Value.Bars
	ei := b.Value.IndexAtOrAfter(b.EntryTime)
	if ei < 0 {
		return models.Trade{}, false
	}
	reference := bars[ei].High
	if s.policy.ExitBasedOnClose {
		reference = bars[ei].Close
	}
	pos, err := models.NewPosition(b.Spread, bars[ei], s.policy.StopLoss, s.policy.TakeProfit, s.policy.Mode, reference)
	if err != nil {
		s.logger.WithError(err).Warn("Could not open position")
		return models.Trade{}, false
	}

	for j := ei + 1; j < len(bars); j++ {
		bar := bars[j]
		slPrice, tpPrice := bar.Low, bar.High
		if s.policy.ExitBasedOnClose {
			slPrice, tpPrice = bar.Close, bar.Close
		}
		switch {
		case slPrice <= pos.StopLossPrice:
			return s.exit(pos, bars, j, models.ExitStopLoss, slPrice), true
		case tpPrice >= pos.TakeProfitPrice:
			return s.exit(pos, bars, j, models.ExitTakeProfit, tpPrice), true
		}
		pos.Ratchet(tpPrice)
	}

	last := bars[len(bars)-1]
	return s.settle(pos, last, last.Close, models.ExitTime, models.ExitTime), true
}

// exit applies the fill rules to a triggered threshold on bar j.
func (s *Simulator) exit(pos *models.Position, bars []models.Bar, j int, trigger models.ExitReason, compared float64) models.Trade {
	switch {
	case s.policy.ExitWithFixedMM:
		profit := s.policy.TakeProfit
		if trigger == models.ExitStopLoss {
			profit = -s.policy.StopLoss
		}
		t := s.settle(pos, bars[j], pos.EntryPrice+profit, models.ExitMoneyManagementFixed, trigger)
		t.Profit = profit
		return t
	case s.policy.ExitWithOpen && j+1 < len(bars):
		return s.settle(pos, bars[j+1], bars[j+1].Open, trigger, trigger)
	default:
		return s.settle(pos, bars[j], compared, trigger, trigger)
	}
}

func (s *Simulator) settle(pos *models.Position, exitBar models.Bar, price float64, reason, trigger models.ExitReason) models.Trade {
	if err := pos.Close(reason, exitBar.Time); err != nil {
		s.logger.WithError(err).Warn("Position close transition failed")
	}
	return models.Trade{
		ID:              uuid.NewString(),
		Spread:          pos.Spread,
		EntryBar:        pos.EntryBar,
		ExitBar:         exitBar,
		EntryPrice:      pos.EntryPrice,
		ExitPrice:       price,
		InitialStopLoss: pos.InitialStopLoss,
		FinalStopLoss:   pos.StopLossPrice,
		TakeProfit:      pos.TakeProfitPrice,
		Profit:          price - pos.EntryPrice,
		ExitReason:      reason,
		Trigger:         trigger,
		Mode:            pos.Mode,
	}
}
