package storage

import (
	"context"
	"sort"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

// MemoryChain holds a fully loaded day of option bars. It is read-only after
// construction, so concurrent lookups need no locking.
type MemoryChain struct {
	legs map[string][]models.Bar
}

// NewMemoryChain groups records by ticker and sorts each leg by time.
func NewMemoryChain(records []Record) *MemoryChain {
	legs := make(map[string][]models.Bar)
	for _, r := range records {
		legs[r.Ticker] = append(legs[r.Ticker], r.Bar)
	}
	for _, bars := range legs {
		sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	}
	return &MemoryChain{legs: legs}
}

// Leg returns a copy of the ticker's bars.
func (c *MemoryChain) Leg(_ context.Context, ticker string) ([]models.Bar, error) {
	bars := c.legs[ticker]
	if len(bars) == 0 {
		return nil, nil
	}
	out := make([]models.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

// Tickers returns the contracts present in the chain, sorted.
func (c *MemoryChain) Tickers() []string {
	out := make([]string, 0, len(c.legs))
	for t := range c.legs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of contracts.
func (c *MemoryChain) Len() int { return len(c.legs) }
