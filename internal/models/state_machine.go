package models

import (
	"fmt"
	"time"
)

// PositionState represents the current state of a position
type PositionState string

const (
	StateIdle   PositionState = "idle"   // Not yet entered
	StateOpen   PositionState = "open"   // Entered, thresholds armed
	StateClosed PositionState = "closed" // Exited with a reason
)

// StateTransition defines valid state transitions
type StateTransition struct {
	From        PositionState
	To          PositionState
	Condition   string
	Description string
}

// ValidTransitions lists the lifecycle edges of a simulated position.
var ValidTransitions = []StateTransition{
	{StateIdle, StateOpen, "entry_filled", "Entered at the first spread bar at or after the signal"},
	{StateOpen, StateClosed, string(ExitStopLoss), "Spread value fell to the stop-loss"},
	{StateOpen, StateClosed, string(ExitTakeProfit), "Spread value rose to the take-profit"},
	{StateOpen, StateClosed, string(ExitMoneyManagementFixed), "Settled at the fixed stop-loss or take-profit amount"},
	{StateOpen, StateClosed, string(ExitTime), "Series ended without a trigger"},
}

// StateMachine manages position state transitions
type StateMachine struct {
	transitionTime time.Time
	currentState   PositionState
}

// NewStateMachine creates a new state machine
func NewStateMachine() *StateMachine {
	return &StateMachine{currentState: StateIdle}
}

// GetCurrentState returns the current state
func (sm *StateMachine) GetCurrentState() PositionState {
	return sm.currentState
}

// GetTransitionTime returns the bar time of the last transition.
func (sm *StateMachine) GetTransitionTime() time.Time {
	return sm.transitionTime
}

// IsValidTransition checks if a transition is valid
func (sm *StateMachine) IsValidTransition(to PositionState, condition string) error {
	for _, tr := range ValidTransitions {
		if tr.From == sm.currentState && tr.To == to && tr.Condition == condition {
			return nil
		}
	}
	return fmt.Errorf("invalid transition from %s to %s with condition '%s'",
		sm.currentState, to, condition)
}

// Transition moves to a new state. at is the simulated bar time, not wall time.
func (sm *StateMachine) Transition(to PositionState, condition string, at time.Time) error {
	if err := sm.IsValidTransition(to, condition); err != nil {
		return err
	}
	sm.currentState = to
	sm.transitionTime = at
	return nil
}
