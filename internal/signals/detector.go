// Package signals defines the entry/exit detector contract and ships a
// Stochastic RSI detector.
package signals

import (
	"time"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

// Day carries one trading day of index bars at both resolutions.
type Day struct {
	Date       time.Time
	OneMinute  models.BarSeries
	FiveMinute models.BarSeries
}

// Detector marks entry and exit rows on the 1-minute series. The returned
// series must carry the models.SignalFlags columns; the input is not modified.
type Detector interface {
	Detect(day Day) (models.BarSeries, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(day Day) (models.BarSeries, error)

// Detect calls f.
func (f DetectorFunc) Detect(day Day) (models.BarSeries, error) { return f(day) }

// EnsureFlags adds any missing signal column as all-false.
func EnsureFlags(s *models.BarSeries) {
	for _, name := range models.SignalFlags {
		s.EnsureFlag(name)
	}
}
