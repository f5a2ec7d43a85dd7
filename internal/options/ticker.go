package options

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

const expirationLayout = "060102"

var tickerPattern = regexp.MustCompile(`^O:([A-Z.]+)(\d{6})([CP])(\d{8})$`)

// Ticker builds an OCC-style option ticker such as O:SPY250307C00578000.
func Ticker(underlying string, expiration time.Time, class models.OptionClass, strike float64) string {
	return fmt.Sprintf("O:%s%s%s%08d", underlying, expiration.Format(expirationLayout), class, int64(math.Round(strike*100)))
}

// Contract is a decoded option ticker.
type Contract struct {
	Underlying string
	Expiration time.Time
	Class      models.OptionClass
	Strike     float64
}

// ParseTicker decodes a ticker produced by Ticker. Expiration is midnight UTC.
func ParseTicker(ticker string) (Contract, error) {
	m := tickerPattern.FindStringSubmatch(ticker)
	if m == nil {
		return Contract{}, fmt.Errorf("malformed option ticker %q", ticker)
	}
	exp, err := time.Parse(expirationLayout, m[2])
	if err != nil {
		return Contract{}, fmt.Errorf("option ticker %q expiration: %w", ticker, err)
	}
	cents, err := strconv.ParseInt(m[4], 10, 64)
	if err != nil {
		return Contract{}, fmt.Errorf("option ticker %q strike: %w", ticker, err)
	}
	return Contract{
		Underlying: m[1],
		Expiration: exp,
		Class:      models.OptionClass(m[3]),
		Strike:     float64(cents) / 100,
	}, nil
}

// Legs returns the sold and bought tickers of a spread expiring on expiration.
func Legs(underlying string, expiration time.Time, dir models.Direction, strikes models.Strikes) (sold, bought string) {
	class := dir.Class()
	return Ticker(underlying, expiration, class, strikes.Sold), Ticker(underlying, expiration, class, strikes.Bought)
}
