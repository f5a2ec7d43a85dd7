package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

func TestTicker(t *testing.T) {
	exp := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
	// Strikes are on the x10 scale, so 5780 names the listed SPY 578 contract.
	assert.Equal(t, "O:SPY250307C00578000", Ticker("SPY", exp, models.Call, 5780))
	assert.Equal(t, "O:SPY250307P00577500", Ticker("SPY", exp, models.Put, 5775))
	assert.Equal(t, "O:SPY250307P00057800", Ticker("SPY", exp, models.Put, 578))
}

func TestParseTicker(t *testing.T) {
	c, err := ParseTicker("O:SPY250307C00578000")
	require.NoError(t, err)
	assert.Equal(t, "SPY", c.Underlying)
	assert.Equal(t, time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC), c.Expiration)
	assert.Equal(t, models.Call, c.Class)
	assert.Equal(t, 5780.0, c.Strike)

	for _, bad := range []string{"SPY250307C00578000", "O:SPY250307X00578000", "O:SPY2503C00578000", "O:SPY251399C00578000"} {
		_, err := ParseTicker(bad)
		assert.Error(t, err, bad)
	}
}

func TestLegs(t *testing.T) {
	exp := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
	sold, bought := Legs("SPY", exp, models.BullPut, models.Strikes{Sold: 5800, Bought: 5780})
	assert.Equal(t, "O:SPY250307P00580000", sold)
	assert.Equal(t, "O:SPY250307P00578000", bought)

	round, err := ParseTicker(sold)
	require.NoError(t, err)
	assert.Equal(t, Ticker(round.Underlying, round.Expiration, round.Class, round.Strike), sold)
}
