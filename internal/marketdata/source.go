package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/zerotheta/internal/models"
	"github.com/eddiefleurent/zerotheta/internal/options"
	"github.com/eddiefleurent/zerotheta/internal/storage"
)

// APIChainSource serves option chains from the aggregates API. Legs are
// fetched on first use and kept for the life of the chain. The API always
// returns listed prices, so scale brings them to the flat files' price scale.
type APIChainSource struct {
	fetcher    AggregatesFetcher
	underlying string
	scale      float64
	logger     logrus.FieldLogger
}

// NewAPIChainSource creates a source for contracts on underlying whose prices
// are multiplied by scale. A scale of 0 means 1.
func NewAPIChainSource(fetcher AggregatesFetcher, underlying string, scale float64, logger logrus.FieldLogger) *APIChainSource {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if scale == 0 {
		scale = 1
	}
	return &APIChainSource{fetcher: fetcher, underlying: underlying, scale: scale, logger: logger}
}

// LoadDay implements storage.ChainSource. Weekends have no chain.
func (s *APIChainSource) LoadDay(ctx context.Context, date time.Time) (storage.Chain, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return nil, fmt.Errorf("%w: %s is a weekend", storage.ErrNoData, date.Format("2006-01-02"))
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return &apiChain{
		source: s,
		from:   day,
		to:     day.Add(24*time.Hour - time.Millisecond),
		legs:   make(map[string][]models.Bar),
	}, nil
}

type apiChain struct {
	source   *APIChainSource
	from, to time.Time

	mu   sync.Mutex
	legs map[string][]models.Bar
}

// Leg implements storage.Chain.
func (c *apiChain) Leg(ctx context.Context, ticker string) ([]models.Bar, error) {
	contract, err := options.ParseTicker(ticker)
	if err != nil {
		return nil, err
	}
	if contract.Underlying != c.source.underlying {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if bars, ok := c.legs[ticker]; ok {
		return append([]models.Bar(nil), bars...), nil
	}

	bars, err := c.source.fetcher.MinuteAggregates(ctx, ticker, c.from, c.to)
	if err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
			return nil, err
		}
		bars = nil
	}
	if c.source.scale != 1 {
		scaled := make([]models.Bar, len(bars))
		for i, b := range bars {
			scaled[i] = b.Scaled(c.source.scale)
		}
		bars = scaled
	}
	c.legs[ticker] = bars
	c.source.logger.WithFields(logrus.Fields{"ticker": ticker, "bars": len(bars)}).Debug("Loaded option leg from API")
	return append([]models.Bar(nil), bars...), nil
}

var _ storage.ChainSource = (*APIChainSource)(nil)
