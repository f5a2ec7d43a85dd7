package series

import (
	"sort"
	"time"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

// DaySeries is the slice of a longer series that falls on one calendar date.
type DaySeries struct {
	Date   time.Time
	Series models.BarSeries
}

// SplitByDay groups bars by calendar date in loc, preserving derived columns.
// Dates are midnight in loc and returned in ascending order.
func SplitByDay(s models.BarSeries, loc *time.Location) []DaySeries {
	if loc == nil {
		loc = time.UTC
	}
	dayOf := make([]time.Time, s.Len())
	seen := make(map[time.Time]bool)
	dates := make([]time.Time, 0)
	for i, b := range s.Bars {
		t := b.Time.In(loc)
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		dayOf[i] = d
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]DaySeries, 0, len(dates))
	for _, d := range dates {
		out = append(out, DaySeries{Date: d, Series: s.Filter(func(i int, _ models.Bar) bool { return dayOf[i].Equal(d) })})
	}
	return out
}

// FilterWindow keeps the bars whose wall clock in loc lies inside w.
func FilterWindow(s models.BarSeries, w models.Window, loc *time.Location) models.BarSeries {
	if loc == nil {
		loc = time.UTC
	}
	return s.Filter(func(_ int, b models.Bar) bool { return w.Contains(b.Time.In(loc)) })
}
