// Package storage reads index and option flat files and persists run artifacts.
package storage

import (
	"context"
	"time"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

// Chain is one trading day of option minute bars, looked up by ticker.
//
// Implementations must be safe for concurrent use.
type Chain interface {
	// Leg returns the ticker's bars in time order. An unknown ticker yields no
	// bars and no error.
	Leg(ctx context.Context, ticker string) ([]models.Bar, error)
}

// ChainSource loads the option chain for a trading date.
//
// LoadDay returns an error wrapping ErrNoData when the date has no chain, which
// callers treat as a skip rather than a failure.
type ChainSource interface {
	LoadDay(ctx context.Context, date time.Time) (Chain, error)
}

// Format names a flat-file encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// Ext returns the file extension including the dot.
func (f Format) Ext() string { return "." + string(f) }

// Ensure implementations satisfy the interfaces
var (
	_ ChainSource = (*FileChainSource)(nil)
	_ ChainSource = (*CachedChainSource)(nil)
	_ ChainSource = (*FallbackChainSource)(nil)
	_ ChainSource = (*MockChainSource)(nil)
	_ Chain       = (*MemoryChain)(nil)
)
