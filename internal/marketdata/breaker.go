package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

// BreakerSettings configures circuit breaker behavior
type BreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// DefaultBreakerSettings trips after 60% failures over at least 5 requests.
var DefaultBreakerSettings = BreakerSettings{
	MaxRequests:  3,
	Interval:     60 * time.Second,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.6,
}

// BreakerClient wraps a fetcher with a circuit breaker. Permanent API errors
// (unknown ticker, bad key) do not count as failures.
type BreakerClient struct {
	fetcher AggregatesFetcher
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerClient wraps fetcher.
func NewBreakerClient(fetcher AggregatesFetcher, settings BreakerSettings, logger logrus.FieldLogger) *BreakerClient {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	gbSettings := gobreaker.Settings{
		Name:        "PolygonCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || errors.Is(err, context.Canceled) || (errors.As(err, &apiErr) && apiErr.Permanent())
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("Circuit breaker state changed")
		},
	}
	return &BreakerClient{fetcher: fetcher, breaker: gobreaker.NewCircuitBreaker(gbSettings)}
}

// State returns the breaker state.
func (b *BreakerClient) State() gobreaker.State { return b.breaker.State() }

// MinuteAggregates implements AggregatesFetcher.
func (b *BreakerClient) MinuteAggregates(ctx context.Context, ticker string, from, to time.Time) ([]models.Bar, error) {
	return execBreaker(b.breaker, func() ([]models.Bar, error) {
		return b.fetcher.MinuteAggregates(ctx, ticker, from, to)
	})
}

// execBreaker runs fn through the breaker with a typed result.
func execBreaker[T any](breaker *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

var _ AggregatesFetcher = (*BreakerClient)(nil)
