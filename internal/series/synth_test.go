package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

func TestSynthesize(t *testing.T) {
	front := models.NewBarSeries([]models.Bar{{Time: t0, Open: 1.0, High: 1.4, Low: 0.8, Close: 1.2}})
	back := models.NewBarSeries([]models.Bar{{Time: t0, Open: 3.0, High: 3.5, Low: 2.9, Close: 3.1}})

	s, err := Synthesize(front, back)
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	b := s.First()
	assert.InDelta(t, -2.0, b.Open, 1e-9)
	assert.InDelta(t, -1.5, b.High, 1e-9)
	assert.InDelta(t, -2.7, b.Low, 1e-9)
	assert.InDelta(t, -1.9, b.Close, 1e-9)
}

func TestSynthesize_IdenticalLegsAreZero(t *testing.T) {
	leg := models.NewBarSeries([]models.Bar{bar(0, 5), bar(1, 6), bar(2, 4)})
	s, err := Synthesize(leg, leg)
	require.NoError(t, err)

	for _, b := range s.Bars {
		assert.Zero(t, b.Open)
		assert.Zero(t, b.Close)
		// High/Low span the bar's range when both legs move together.
		assert.InDelta(t, 1.0, b.High, 1e-9)
		assert.InDelta(t, -1.0, b.Low, 1e-9)
	}

	flat := models.NewBarSeries([]models.Bar{{Time: t0, Open: 2, High: 2, Low: 2, Close: 2}})
	s, err = Synthesize(flat, flat)
	require.NoError(t, err)
	assert.Equal(t, models.Bar{Time: t0}, s.First())
}

func TestSynthesize_Misaligned(t *testing.T) {
	a := models.NewBarSeries([]models.Bar{bar(0, 1), bar(1, 1)})
	b := models.NewBarSeries([]models.Bar{bar(0, 1)})
	_, err := Synthesize(a, b)
	assert.ErrorIs(t, err, ErrMisaligned)

	c := models.NewBarSeries([]models.Bar{bar(0, 1), bar(2, 1)})
	_, err = Synthesize(a, c)
	assert.ErrorIs(t, err, ErrMisaligned)

	s, err := Synthesize(models.BarSeries{}, models.BarSeries{})
	require.NoError(t, err)
	assert.True(t, s.Empty())
}
