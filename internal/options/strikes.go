// Package options selects spread strikes and encodes option tickers.
package options

import (
	"errors"
	"fmt"
	"math"

	"github.com/eddiefleurent/zerotheta/internal/models"
	"github.com/eddiefleurent/zerotheta/internal/util"
)

// DefaultWidth is the strike distance used when none is configured.
const DefaultWidth = 20.0

// ErrInvalidWidth is returned when the spread width cannot be built from listed strikes.
var ErrInvalidWidth = errors.New("invalid spread width")

// Intent is the transient request for one spread, built per entry signal.
type Intent struct {
	Direction      models.Direction
	ReferencePrice float64
	Constraint     models.StrikeConstraint
	Width          float64
}

// Select resolves the intent into strikes.
func (in Intent) Select() (models.Strikes, error) {
	return SelectStrikes(in.ReferencePrice, in.Direction, in.Width, in.Constraint)
}

// ValidateWidth checks that width is a positive strike multiple; middle_itm
// additionally needs an even number of rungs so both strikes stay listed.
func ValidateWidth(width float64, constraint models.StrikeConstraint) error {
	if width <= 0 || math.IsNaN(width) || !util.IsStrikeMultiple(width) {
		return fmt.Errorf("%w %g: must be a positive multiple of %g", ErrInvalidWidth, width, util.StrikeIncrement)
	}
	if constraint == models.ConstraintMiddleITM && !util.IsStrikeMultiple(width/2) {
		return fmt.Errorf("%w %g: middle_itm needs a multiple of %g", ErrInvalidWidth, width, 2*util.StrikeIncrement)
	}
	return nil
}

// SelectStrikes maps an index price and direction to a sold/bought strike pair.
//
// Under enforce_itm the index price lies between the strikes, under enforce_otm
// it lies strictly outside them, middle_itm centres the spread on the rounded
// price and none keeps the plain rounded strike.
func SelectStrikes(price float64, dir models.Direction, width float64, constraint models.StrikeConstraint) (models.Strikes, error) {
	if !dir.Valid() {
		return models.Strikes{}, fmt.Errorf("%w %q: use 'Bull Put' or 'Bear Call'", models.ErrInvalidDirection, string(dir))
	}
	if !constraint.Valid() {
		return models.Strikes{}, fmt.Errorf("%w %q", models.ErrInvalidConstraint, string(constraint))
	}
	if err := ValidateWidth(width, constraint); err != nil {
		return models.Strikes{}, err
	}

	if constraint == models.ConstraintMiddleITM {
		mid := util.RoundToStrike(price)
		upper, lower := mid+width/2, mid-width/2
		if dir == models.BullPut {
			return models.Strikes{Sold: upper, Bought: lower}, nil
		}
		return models.Strikes{Sold: lower, Bought: upper}, nil
	}

	sold := util.RoundToStrike(price)
	switch dir {
	case models.BullPut:
		switch {
		case constraint == models.ConstraintEnforceITM && sold < price:
			sold = util.RoundToStrike(price + util.StrikeIncrement)
		case constraint == models.ConstraintEnforceOTM && sold >= price:
			sold = util.RoundToStrike(price - util.StrikeIncrement)
		}
		return models.Strikes{Sold: sold, Bought: sold - width}, nil
	default:
		switch {
		case constraint == models.ConstraintEnforceITM && sold > price:
			sold = util.RoundToStrike(price - util.StrikeIncrement)
		case constraint == models.ConstraintEnforceOTM && sold <= price:
			sold = util.RoundToStrike(price + util.StrikeIncrement)
		}
		return models.Strikes{Sold: sold, Bought: sold + width}, nil
	}
}
