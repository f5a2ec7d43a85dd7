package models

import (
	"fmt"
	"time"
)

// Position is an open simulated spread trade with its money-management thresholds.
type Position struct {
	StateMachine    *StateMachine       `json:"-"`
	State           PositionState       `json:"state"`
	Spread          Spread              `json:"spread"`
	Mode            MoneyManagementMode `json:"mode"`
	EntryBar        Bar                 `json:"entry_bar"`
	EntryPrice      float64             `json:"entry_price"`
	StopLossPrice   float64             `json:"stop_loss_price"`
	TakeProfitPrice float64             `json:"take_profit_price"`
	InitialStopLoss float64             `json:"initial_stop_loss"`
	ExitReason      ExitReason          `json:"exit_reason,omitempty"`
	ExitTime        time.Time           `json:"exit_time,omitempty"`

	reference float64
}

// NewPosition opens a position on the entry bar. The entry price is the bar's
// Close. reference seeds the trailing ratchet and must be the entry bar's value
// in the field later bars are compared on.
func NewPosition(spread Spread, entry Bar, stopLoss, takeProfit float64, mode MoneyManagementMode, reference float64) (*Position, error) {
	p := &Position{
		StateMachine:    NewStateMachine(),
		State:           StateIdle,
		Spread:          spread,
		Mode:            mode,
		EntryBar:        entry,
		EntryPrice:      entry.Close,
		StopLossPrice:   entry.Close - stopLoss,
		TakeProfitPrice: entry.Close + takeProfit,
		reference:       reference,
	}
	p.InitialStopLoss = p.StopLossPrice
	if err := p.TransitionState(StateOpen, "entry_filled", entry.Time); err != nil {
		return nil, err
	}
	return p, nil
}

// TransitionState moves the position to a new state
func (p *Position) TransitionState(to PositionState, condition string, at time.Time) error {
	if p.StateMachine == nil {
		p.StateMachine = NewStateMachine()
	}
	if err := p.StateMachine.Transition(to, condition, at); err != nil {
		return fmt.Errorf("position %s state transition failed: %w", p.EntryBar.Time.Format(time.RFC3339), err)
	}
	p.State = to
	return nil
}

// IsOpen reports whether the position is still live.
func (p *Position) IsOpen() bool { return p.State == StateOpen }

// Ratchet raises the stop-loss by the amount price exceeds the last reference.
// It is a no-op in static mode and never lowers the stop.
func (p *Position) Ratchet(price float64) bool {
	if p.Mode != ModeTrailing || price <= p.reference {
		return false
	}
	p.StopLossPrice += price - p.reference
	p.reference = price
	return true
}

// Close marks the position closed at bar time at.
func (p *Position) Close(reason ExitReason, at time.Time) error {
	if err := p.TransitionState(StateClosed, string(reason), at); err != nil {
		return err
	}
	p.ExitReason = reason
	p.ExitTime = p.StateMachine.GetTransitionTime()
	return nil
}
