// Package mock generates synthetic index and 0DTE option minute data for
// tests and dry runs.
package mock

import (
	"fmt"
	"math"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/eddiefleurent/zerotheta/internal/models"
	"github.com/eddiefleurent/zerotheta/internal/options"
	"github.com/eddiefleurent/zerotheta/internal/storage"
	"github.com/eddiefleurent/zerotheta/internal/util"
)

const (
	sessionOpenUTC  = 14*time.Hour + 30*time.Minute
	sessionMinutes  = 390
	strikeRungs     = 12
	minOptionPrice  = 0.05
	timeValueFactor = 0.004
)

// MarketDataProvider produces a reproducible random-walk market.
type MarketDataProvider struct {
	rng          *rand.Rand
	Underlying   string
	currentPrice float64
	Volatility   float64 // per-minute standard deviation of index moves
	GapRate      float64 // probability an option minute is missing
}

// NewMarketDataProvider seeds a generator starting at price.
func NewMarketDataProvider(seed uint64, underlying string, price float64) *MarketDataProvider {
	return &MarketDataProvider{
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		Underlying:   underlying,
		currentPrice: price,
		Volatility:   0.6,
		GapRate:      0.05,
	}
}

// IndexDay walks the index through one regular session starting 14:30 UTC.
func (m *MarketDataProvider) IndexDay(date time.Time) []models.Bar {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC).Add(sessionOpenUTC)
	bars := make([]models.Bar, 0, sessionMinutes+1)
	for i := 0; i <= sessionMinutes; i++ {
		open := m.currentPrice
		path := [4]float64{open}
		for j := 1; j < len(path); j++ {
			path[j] = path[j-1] + m.rng.NormFloat64()*m.Volatility/2
		}
		hi, lo := open, open
		for _, p := range path {
			hi, lo = math.Max(hi, p), math.Min(lo, p)
		}
		closePrice := path[len(path)-1]
		m.currentPrice = closePrice
		bars = append(bars, models.Bar{
			Time:  start.Add(time.Duration(i) * time.Minute),
			Open:  util.RoundToTick(open, 0.01),
			High:  util.RoundToTick(hi, 0.01),
			Low:   util.RoundToTick(lo, 0.01),
			Close: util.RoundToTick(closePrice, 0.01),
		})
	}
	return bars
}

// Resample aggregates minute bars into n-minute bars aligned to the session start.
func Resample(bars []models.Bar, n int) []models.Bar {
	if n <= 1 || len(bars) == 0 {
		return bars
	}
	var out []models.Bar
	for i := 0; i < len(bars); i += n {
		end := min(i+n, len(bars))
		agg := bars[i]
		for _, b := range bars[i+1 : end] {
			agg.High = math.Max(agg.High, b.High)
			agg.Low = math.Min(agg.Low, b.Low)
			agg.Close = b.Close
		}
		out = append(out, agg)
	}
	return out
}

// OptionChain prices puts and calls on strikes around the day's opening price
// for every index minute. Some minutes are dropped to mimic thin trading.
func (m *MarketDataProvider) OptionChain(index []models.Bar) []storage.Record {
	if len(index) == 0 {
		return nil
	}
	date := index[0].Time
	centre := util.RoundToStrike(index[0].Open)
	var recs []storage.Record
	for k := -strikeRungs; k <= strikeRungs; k++ {
		strike := centre + float64(k)*util.StrikeIncrement
		for _, class := range []models.OptionClass{models.Call, models.Put} {
			ticker := options.Ticker(m.Underlying, date, class, strike)
			for i, b := range index {
				if i > 0 && m.rng.Float64() < m.GapRate {
					continue
				}
				tau := float64(len(index)-i) / float64(len(index))
				price := func(s float64) float64 { return optionPrice(class, s, strike, tau) }
				bar := models.Bar{Time: b.Time, Open: price(b.Open), Close: price(b.Close)}
				if class == models.Call {
					bar.High, bar.Low = price(b.High), price(b.Low)
				} else {
					bar.High, bar.Low = price(b.Low), price(b.High)
				}
				bar.High = math.Max(bar.High, math.Max(bar.Open, bar.Close))
				bar.Low = math.Min(bar.Low, math.Min(bar.Open, bar.Close))
				recs = append(recs, storage.Record{Ticker: ticker, Bar: bar})
			}
		}
	}
	return recs
}

func optionPrice(class models.OptionClass, spot, strike, tau float64) float64 {
	intrinsic := math.Max(spot-strike, 0)
	if class == models.Put {
		intrinsic = math.Max(strike-spot, 0)
	}
	dist := math.Abs(spot - strike)
	tv := spot * timeValueFactor * math.Sqrt(tau) * math.Exp(-dist/(spot*timeValueFactor*4))
	return util.RoundToTick(math.Max(intrinsic+tv, minOptionPrice), 0.01)
}

// Dirs names where WriteMonth places each kind of file.
type Dirs struct {
	OneMinute  string
	FiveMinute string
	Options    string
}

// WriteMonth writes the weekdays of month as flat files: one 1-minute and one
// 5-minute index file named YYYY-MM, and a chain file per day under
// Options/YYYY-MM/YYYY-MM-DD. It returns the trading dates written.
func (m *MarketDataProvider) WriteMonth(dirs Dirs, month time.Time, format storage.Format) ([]time.Time, error) {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	var one, five []storage.Record
	var dates []time.Time
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		bars := m.IndexDay(d)
		for _, b := range bars {
			one = append(one, storage.Record{Bar: b})
		}
		for _, b := range Resample(bars, 5) {
			five = append(five, storage.Record{Bar: b})
		}
		chainPath := filepath.Join(dirs.Options, d.Format("2006-01"), d.Format("2006-01-02")+format.Ext())
		if err := storage.WriteFile(chainPath, m.OptionChain(bars)); err != nil {
			return nil, fmt.Errorf("write chain %s: %w", chainPath, err)
		}
		dates = append(dates, d)
	}
	name := first.Format("2006-01") + format.Ext()
	if err := storage.WriteFile(filepath.Join(dirs.OneMinute, name), one); err != nil {
		return nil, err
	}
	if err := storage.WriteFile(filepath.Join(dirs.FiveMinute, name), five); err != nil {
		return nil, err
	}
	return dates, nil
}
