package strategy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/zerotheta/internal/models"
	"github.com/eddiefleurent/zerotheta/internal/signals"
)

func TestNew(t *testing.T) {
	sim := newSim(t, ExitPolicy{StopLoss: 1, TakeProfit: 1, Mode: models.ModeStatic})
	det := signals.DetectorFunc(func(d signals.Day) (models.BarSeries, error) { return d.OneMinute, nil })

	s, err := New(NameStochRSI, det, sim)
	require.NoError(t, err)
	assert.Equal(t, NameStochRSI, s.Name())

	s, err = New(NameFlags, nil, sim)
	require.NoError(t, err)
	assert.Equal(t, NameFlags, s.Name())

	_, err = New(NameStochRSI, nil, sim)
	assert.Error(t, err)
	_, err = New(NameFlags, nil, nil)
	assert.Error(t, err)
	_, err = New("martingale", det, sim)
	assert.ErrorContains(t, err, "unknown strategy")
}

func TestFlagStrategy_GenerateEntries(t *testing.T) {
	sim := newSim(t, ExitPolicy{StopLoss: 1, TakeProfit: 1, Mode: models.ModeStatic})
	one := signalRows(t, 3, 1)

	out, err := NewFlagStrategy(sim).GenerateEntries(signals.Day{Date: open0, OneMinute: one})
	require.NoError(t, err)
	for _, f := range models.SignalFlags {
		assert.True(t, out.HasFlag(f), f)
	}
	assert.True(t, out.Flag(models.FlagEntryBullPut, 1))
	assert.False(t, one.HasFlag(models.FlagEntryBearCall), "input must not be mutated")
}

func TestStochRSIStrategy_DetectorErrors(t *testing.T) {
	sim := newSim(t, ExitPolicy{StopLoss: 1, TakeProfit: 1, Mode: models.ModeStatic})
	boom := errors.New("boom")
	det := signals.DetectorFunc(func(signals.Day) (models.BarSeries, error) { return models.BarSeries{}, boom })

	_, err := NewStochRSIStrategy(det, sim).GenerateEntries(signals.Day{})
	assert.ErrorIs(t, err, boom)
}

func TestStochRSIStrategy_EndToEnd(t *testing.T) {
	sim := newSim(t, ExitPolicy{StopLoss: 1, TakeProfit: 1, Mode: models.ModeStatic})
	det := signals.DetectorFunc(func(d signals.Day) (models.BarSeries, error) {
		out := d.OneMinute.Slice(0, d.OneMinute.Len())
		col := make([]bool, out.Len())
		col[0] = true
		return out, out.SetFlag(models.FlagEntryBullPut, col)
	})
	strat := NewStochRSIStrategy(det, sim)

	sigs, err := strat.GenerateEntries(signals.Day{Date: open0, OneMinute: spreadSeries(open0, flat(1), flat(1))})
	require.NoError(t, err)
	assert.True(t, sigs.HasFlag(models.FlagExitBearCall))

	trades, metrics, err := strat.GenerateTrades(sigs, setOf(1, bundleAt(open0, spreadSeries(open0, flat(0), flat(2)))))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, models.ExitTakeProfit, trades[0].ExitReason)
	assert.Equal(t, 1, metrics.Wins)
}
