package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Direction identifies which side a vertical credit spread is sold on.
type Direction string

const (
	// BullPut sells a put and buys a lower put.
	BullPut Direction = "Bull Put"
	// BearCall sells a call and buys a higher call.
	BearCall Direction = "Bear Call"
)

// OptionClass is the contract type letter used in option tickers.
type OptionClass string

const (
	Call OptionClass = "C"
	Put  OptionClass = "P"
)

// StrikeConstraint controls where the sold strike lands relative to the index price.
type StrikeConstraint string

const (
	ConstraintEnforceITM StrikeConstraint = "enforce_itm"
	ConstraintEnforceOTM StrikeConstraint = "enforce_otm"
	ConstraintMiddleITM  StrikeConstraint = "middle_itm"
	ConstraintNone       StrikeConstraint = "none"
)

// MoneyManagementMode selects how the stop-loss behaves while a position is open.
type MoneyManagementMode string

const (
	// ModeStatic keeps the stop-loss where it was set at entry.
	ModeStatic MoneyManagementMode = "static"
	// ModeTrailing ratchets the stop-loss up as the spread value rises.
	ModeTrailing MoneyManagementMode = "trailing"
)

var (
	// ErrInvalidDirection is returned for a spread type other than Bull Put or Bear Call.
	ErrInvalidDirection = errors.New("invalid spread type")
	// ErrInvalidConstraint is returned for an unknown strike constraint.
	ErrInvalidConstraint = errors.New("invalid strike constraint")
	// ErrInvalidMode is returned for an unknown money management mode.
	ErrInvalidMode = errors.New("invalid money management mode")
)

// ParseDirection accepts the display names as well as snake_case spellings.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bull put", "bull_put", "bullput":
		return BullPut, nil
	case "bear call", "bear_call", "bearcall":
		return BearCall, nil
	}
	return "", fmt.Errorf("%w %q: expected 'Bull Put' or 'Bear Call'", ErrInvalidDirection, s)
}

// Valid reports whether d is one of the defined directions.
func (d Direction) Valid() bool {
	return d == BullPut || d == BearCall
}

// Class returns the option class traded by the direction.
func (d Direction) Class() OptionClass {
	if d == BearCall {
		return Call
	}
	return Put
}

// EntryFlag returns the signal column that opens this kind of spread.
func (d Direction) EntryFlag() string {
	if d == BearCall {
		return FlagEntryBearCall
	}
	return FlagEntryBullPut
}

// ParseStrikeConstraint validates a constraint name.
func ParseStrikeConstraint(s string) (StrikeConstraint, error) {
	c := StrikeConstraint(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w %q: expected enforce_itm, enforce_otm, middle_itm or none", ErrInvalidConstraint, s)
	}
	return c, nil
}

// Valid reports whether c is a defined constraint.
func (c StrikeConstraint) Valid() bool {
	switch c {
	case ConstraintEnforceITM, ConstraintEnforceOTM, ConstraintMiddleITM, ConstraintNone:
		return true
	default:
		return false
	}
}

// ParseMoneyManagementMode validates a mode name.
func ParseMoneyManagementMode(s string) (MoneyManagementMode, error) {
	m := MoneyManagementMode(strings.ToLower(strings.TrimSpace(s)))
	if m != ModeStatic && m != ModeTrailing {
		return "", fmt.Errorf("%w %q: expected static or trailing", ErrInvalidMode, s)
	}
	return m, nil
}

// Strikes is the sold/bought strike pair of a vertical spread.
type Strikes struct {
	Sold   float64 `json:"sold_strike"`
	Bought float64 `json:"bought_strike"`
}

// Width returns the absolute distance between the strikes.
func (s Strikes) Width() float64 {
	if s.Sold > s.Bought {
		return s.Sold - s.Bought
	}
	return s.Bought - s.Sold
}

// Lower returns the smaller strike.
func (s Strikes) Lower() float64 { return min(s.Sold, s.Bought) }

// Upper returns the larger strike.
func (s Strikes) Upper() float64 { return max(s.Sold, s.Bought) }

// Spread describes a resolved vertical spread for one entry signal.
type Spread struct {
	Type         Direction `json:"spread_type"`
	Strikes      Strikes   `json:"strikes"`
	SoldTicker   string    `json:"sold_ticker"`
	BoughtTicker string    `json:"bought_ticker"`
	Expiration   time.Time `json:"expiration"`
}

func (s Spread) String() string {
	return fmt.Sprintf("%s %g/%g", s.Type, s.Strikes.Sold, s.Strikes.Bought)
}
