package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

func TestSplitByDay(t *testing.T) {
	d1 := time.Date(2025, 3, 6, 20, 59, 0, 0, time.UTC)
	d2 := time.Date(2025, 3, 7, 14, 30, 0, 0, time.UTC)
	s := models.NewBarSeries([]models.Bar{
		{Time: d1, Close: 1},
		{Time: d2, Close: 2},
		{Time: d2.Add(time.Minute), Close: 3},
	})
	require.NoError(t, s.SetFlag(models.FlagEntryBullPut, []bool{true, false, true}))

	days := SplitByDay(s, time.UTC)

	require.Len(t, days, 2)
	assert.Equal(t, time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC), days[0].Date)
	assert.Equal(t, 1, days[0].Series.Len())
	assert.Equal(t, 2, days[1].Series.Len())
	assert.True(t, days[1].Series.Flag(models.FlagEntryBullPut, 1))
}

func TestSplitByDay_UsesLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// 01:30 UTC on Mar 7 is still Mar 6 in New York.
	s := models.NewBarSeries([]models.Bar{{Time: time.Date(2025, 3, 7, 1, 30, 0, 0, time.UTC)}})
	days := SplitByDay(s, ny)
	require.Len(t, days, 1)
	assert.Equal(t, 6, days[0].Date.Day())
}

func TestFilterWindow(t *testing.T) {
	w, err := models.ParseWindow("14:30", "14:32")
	require.NoError(t, err)
	s := models.NewBarSeries([]models.Bar{bar(-1, 0), bar(0, 1), bar(2, 3), bar(3, 4)})

	got := FilterWindow(s, w, time.UTC)

	assert.Equal(t, []float64{1, 3}, got.Closes())
}
