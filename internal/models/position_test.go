package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryBar(price float64) Bar {
	return Bar{Time: time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC), Open: price, High: price, Low: price, Close: price}
}

func TestNewPosition(t *testing.T) {
	p, err := NewPosition(Spread{Type: BullPut}, entryBar(-3), 1, 2, ModeStatic, -3)
	require.NoError(t, err)

	assert.Equal(t, StateOpen, p.State)
	assert.True(t, p.IsOpen())
	assert.Equal(t, -3.0, p.EntryPrice)
	assert.Equal(t, -4.0, p.StopLossPrice)
	assert.Equal(t, -1.0, p.TakeProfitPrice)
	assert.Equal(t, p.StopLossPrice, p.InitialStopLoss)
}

func TestPosition_RatchetTrailing(t *testing.T) {
	p, err := NewPosition(Spread{Type: BearCall}, entryBar(-3), 1, 2, ModeTrailing, -3)
	require.NoError(t, err)

	assert.True(t, p.Ratchet(-2.5))
	assert.InDelta(t, -3.5, p.StopLossPrice, 1e-9)

	// a lower price never lowers the stop
	assert.False(t, p.Ratchet(-2.8))
	assert.InDelta(t, -3.5, p.StopLossPrice, 1e-9)

	// only the increase over the highest reference counts
	assert.True(t, p.Ratchet(-2.0))
	assert.InDelta(t, -3.0, p.StopLossPrice, 1e-9)
	assert.Equal(t, -4.0, p.InitialStopLoss)
}

func TestPosition_RatchetStaticIsNoop(t *testing.T) {
	p, err := NewPosition(Spread{Type: BullPut}, entryBar(-3), 1, 2, ModeStatic, -3)
	require.NoError(t, err)

	assert.False(t, p.Ratchet(10))
	assert.Equal(t, -4.0, p.StopLossPrice)
}

func TestPosition_Close(t *testing.T) {
	p, err := NewPosition(Spread{Type: BullPut}, entryBar(-3), 1, 2, ModeStatic, -3)
	require.NoError(t, err)

	exit := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	require.NoError(t, p.Close(ExitTakeProfit, exit))
	assert.Equal(t, StateClosed, p.State)
	assert.Equal(t, ExitTakeProfit, p.ExitReason)
	assert.Equal(t, exit, p.ExitTime)

	assert.Error(t, p.Close(ExitStopLoss, exit), "closing twice must fail")
}

func TestPosition_RatchetSeededFromReference(t *testing.T) {
	entry := Bar{Time: time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC), Open: -3, High: -2.6, Low: -3.4, Close: -3}
	p, err := NewPosition(Spread{Type: BullPut}, entry, 1, 2, ModeTrailing, entry.High)
	require.NoError(t, err)

	assert.Equal(t, -3.0, p.EntryPrice)
	assert.False(t, p.Ratchet(-2.6), "an unchanged High is not an increase")
	assert.Equal(t, -4.0, p.StopLossPrice)
	assert.True(t, p.Ratchet(-2.5))
	assert.InDelta(t, -3.9, p.StopLossPrice, 1e-9)
}
