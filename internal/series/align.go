// Package series aligns, gap-fills and combines minute bar series.
package series

import (
	"math"
	"sort"
	"time"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

// Align joins a and b on a contiguous one-minute grid spanning both series and
// fills each side forward then backward per price field. If either side is
// empty both results are empty.
func Align(a, b models.BarSeries) (models.BarSeries, models.BarSeries) {
	na, nb := normalize(a.Bars), normalize(b.Bars)
	if len(na) == 0 || len(nb) == 0 {
		return models.BarSeries{}, models.BarSeries{}
	}
	start, end := na[0].Time, na[len(na)-1].Time
	if nb[0].Time.Before(start) {
		start = nb[0].Time
	}
	if nb[len(nb)-1].Time.After(end) {
		end = nb[len(nb)-1].Time
	}
	g := minuteGrid(start, end)
	return models.NewBarSeries(reindex(na, g)), models.NewBarSeries(reindex(nb, g))
}

// FillMinuteGaps reindexes s onto a contiguous one-minute grid between its own
// first and last bar. Non-finite prices count as missing. Derived columns are
// not carried over.
func FillMinuteGaps(s models.BarSeries) models.BarSeries {
	bars := normalize(s.Bars)
	if len(bars) == 0 {
		return models.BarSeries{}
	}
	return models.NewBarSeries(reindex(bars, minuteGrid(bars[0].Time, bars[len(bars)-1].Time)))
}

// normalize truncates timestamps to the minute, sorts them and keeps the last
// bar of each minute.
func normalize(in []models.Bar) []models.Bar {
	if len(in) == 0 {
		return nil
	}
	bars := make([]models.Bar, len(in))
	for i, b := range in {
		b.Time = b.Time.Truncate(time.Minute)
		bars[i] = b
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

func minuteGrid(start, end time.Time) []time.Time {
	n := int(end.Sub(start)/time.Minute) + 1
	g := make([]time.Time, n)
	for i := range g {
		g[i] = start.Add(time.Duration(i) * time.Minute)
	}
	return g
}

// reindex places sorted, deduplicated bars on grid and fills the holes.
func reindex(bars []models.Bar, grid []time.Time) []models.Bar {
	fields := [4][]float64{}
	for f := range fields {
		fields[f] = make([]float64, len(grid))
		for i := range fields[f] {
			fields[f][i] = math.NaN()
		}
	}

	j := 0
	for i, t := range grid {
		for j < len(bars) && bars[j].Time.Before(t) {
			j++
		}
		if j < len(bars) && bars[j].Time.Equal(t) {
			b := bars[j]
			for f, v := range [4]float64{b.Open, b.High, b.Low, b.Close} {
				if !math.IsNaN(v) && !math.IsInf(v, 0) {
					fields[f][i] = v
				}
			}
		}
	}
	for f := range fields {
		forwardFill(fields[f])
		backwardFill(fields[f])
	}

	out := make([]models.Bar, len(grid))
	for i, t := range grid {
		out[i] = models.Bar{Time: t, Open: fields[0][i], High: fields[1][i], Low: fields[2][i], Close: fields[3][i]}
	}
	return out
}

func forwardFill(v []float64) {
	for i := 1; i < len(v); i++ {
		if math.IsNaN(v[i]) {
			v[i] = v[i-1]
		}
	}
}

func backwardFill(v []float64) {
	for i := len(v) - 2; i >= 0; i-- {
		if math.IsNaN(v[i]) {
			v[i] = v[i+1]
		}
	}
}
