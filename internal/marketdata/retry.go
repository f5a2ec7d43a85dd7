package marketdata

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

// RetryConfig bounds retries of transient failures.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

// DefaultRetryConfig retries three times within two minutes.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	Timeout:        2 * time.Minute,
}

// RetryClient retries transient fetch errors with growing, jittered backoff.
type RetryClient struct {
	fetcher AggregatesFetcher
	logger  logrus.FieldLogger
	config  RetryConfig
}

// NewRetryClient wraps fetcher; config defaults to DefaultRetryConfig.
func NewRetryClient(fetcher AggregatesFetcher, logger logrus.FieldLogger, config ...RetryConfig) *RetryClient {
	cfg := DefaultRetryConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RetryClient{fetcher: fetcher, logger: logger, config: cfg}
}

// MinuteAggregates implements AggregatesFetcher.
func (c *RetryClient) MinuteAggregates(ctx context.Context, ticker string, from, to time.Time) ([]models.Bar, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var lastErr error
	backoff := c.config.InitialBackoff
	log := c.logger.WithField("ticker", ticker)

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("operation canceled: %w", ctx.Err())
		}
		if fetchCtx.Err() != nil {
			return nil, fmt.Errorf("fetch timed out after %v: %w", c.config.Timeout, fetchCtx.Err())
		}

		bars, err := c.fetcher.MinuteAggregates(fetchCtx, ticker, from, to)
		if err == nil {
			return bars, nil
		}
		lastErr = err

		if !isTransientError(err) || attempt == c.config.MaxRetries {
			break
		}
		log.WithError(err).WithField("attempt", attempt+1).Debugf("Transient error, retrying in %v", backoff)
		select {
		case <-time.After(backoff):
			backoff = c.calculateNextBackoff(backoff)
		case <-fetchCtx.Done():
			return nil, fmt.Errorf("fetch timed out during backoff: %w", fetchCtx.Err())
		}
	}
	return nil, fmt.Errorf("fetch %s failed after retries: %w", ticker, lastErr)
}

func (c *RetryClient) calculateNextBackoff(currentBackoff time.Duration) time.Duration {
	backoff := time.Duration(float64(currentBackoff) * 1.5)
	if backoff > c.config.MaxBackoff {
		backoff = c.config.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			c.logger.WithError(err).Debug("Failed to generate jitter")
		} else {
			backoff += time.Duration(jitterVal.Int64())
		}
	}
	return backoff
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Permanent()
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"eof",
		"network",
		"dns",
		"tcp",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

var _ AggregatesFetcher = (*RetryClient)(nil)
