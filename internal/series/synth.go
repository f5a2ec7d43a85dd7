package series

import (
	"errors"
	"fmt"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

// ErrMisaligned is returned when two legs do not share a timestamp grid.
var ErrMisaligned = errors.New("series are not aligned")

// Synthesize subtracts back from front bar by bar. High and Low are the widest
// achievable values inside the bar: front.High-back.Low and front.Low-back.High.
func Synthesize(front, back models.BarSeries) (models.BarSeries, error) {
	if front.Len() != back.Len() {
		return models.BarSeries{}, fmt.Errorf("%w: %d bars vs %d", ErrMisaligned, front.Len(), back.Len())
	}
	out := make([]models.Bar, front.Len())
	for i, f := range front.Bars {
		b := back.Bars[i]
		if !f.Time.Equal(b.Time) {
			return models.BarSeries{}, fmt.Errorf("%w: row %d at %s vs %s", ErrMisaligned, i, f.Time, b.Time)
		}
		out[i] = models.Bar{
			Time:  f.Time,
			Open:  f.Open - b.Open,
			High:  f.High - b.Low,
			Low:   f.Low - b.High,
			Close: f.Close - b.Close,
		}
	}
	return models.NewBarSeries(out), nil
}
