package signals

import (
	"fmt"
	"math"
	"time"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

// Value column names attached by the Stochastic RSI detector.
const (
	ColumnStochRSI     = "stoch_rsi"
	ColumnStochRSI5Min = "stoch_rsi_5min"
)

// StochRSI flags a bull put entry when the oscillator crosses below Lower and
// a bear call entry when it crosses above Upper. The opposite zone marks the
// exit of each side. With ConfirmWith5Min an entry also needs the last
// completed 5-minute bar to sit in the same zone.
type StochRSI struct {
	Window          int
	Upper           float64
	Lower           float64
	ConfirmWith5Min bool
}

// NewStochRSI validates the parameters.
func NewStochRSI(window int, upper, lower float64, confirm bool) (*StochRSI, error) {
	if window < 2 {
		return nil, fmt.Errorf("stoch rsi window must be at least 2, got %d", window)
	}
	if lower < 0 || upper > 1 || lower >= upper {
		return nil, fmt.Errorf("stoch rsi thresholds must satisfy 0 <= lower < upper <= 1, got %g/%g", lower, upper)
	}
	return &StochRSI{Window: window, Upper: upper, Lower: lower, ConfirmWith5Min: confirm}, nil
}

// Detect implements Detector.
func (d *StochRSI) Detect(day Day) (models.BarSeries, error) {
	out := day.OneMinute.Slice(0, day.OneMinute.Len())
	n := out.Len()
	osc := StochasticRSI(out.Closes(), d.Window)

	var confirm []float64
	if d.ConfirmWith5Min {
		confirm = d.confirmation(out, day.FiveMinute)
		if err := out.SetValue(ColumnStochRSI5Min, confirm); err != nil {
			return models.BarSeries{}, err
		}
	}

	bullPut, bearCall := make([]bool, n), make([]bool, n)
	exitBullPut, exitBearCall := make([]bool, n), make([]bool, n)
	for i, v := range osc {
		if math.IsNaN(v) {
			continue
		}
		low, high := v < d.Lower, v > d.Upper
		exitBullPut[i], exitBearCall[i] = high, low

		prev := math.NaN()
		if i > 0 {
			prev = osc[i-1]
		}
		crossedLow := low && !(prev < d.Lower)
		crossedHigh := high && !(prev > d.Upper)
		if d.ConfirmWith5Min {
			c := confirm[i]
			crossedLow = crossedLow && c < d.Lower
			crossedHigh = crossedHigh && c > d.Upper
		}
		bullPut[i], bearCall[i] = crossedLow, crossedHigh
	}

	for name, col := range map[string][]bool{
		models.FlagEntryBullPut:  bullPut,
		models.FlagEntryBearCall: bearCall,
		models.FlagExitBullPut:   exitBullPut,
		models.FlagExitBearCall:  exitBearCall,
	} {
		if err := out.SetFlag(name, col); err != nil {
			return models.BarSeries{}, err
		}
	}
	if err := out.SetValue(ColumnStochRSI, osc); err != nil {
		return models.BarSeries{}, err
	}
	return out, nil
}

// confirmation maps each 1-minute row to the oscillator of the latest 5-minute
// bar that had completed by the row's close.
func (d *StochRSI) confirmation(one, five models.BarSeries) []float64 {
	osc := StochasticRSI(five.Closes(), d.Window)
	out := nanSlice(one.Len())
	j := -1
	for i, b := range one.Bars {
		rowClose := b.Time.Add(time.Minute)
		for j+1 < five.Len() && !five.Bars[j+1].Time.Add(5*time.Minute).After(rowClose) {
			j++
		}
		if j >= 0 {
			out[i] = osc[j]
		}
	}
	return out
}
