package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// FallbackChainSource asks Fallback only when Primary has no data for the day.
type FallbackChainSource struct {
	Primary  ChainSource
	Fallback ChainSource
	Logger   logrus.FieldLogger
}

// LoadDay implements ChainSource.
func (f *FallbackChainSource) LoadDay(ctx context.Context, date time.Time) (Chain, error) {
	chain, err := f.Primary.LoadDay(ctx, date)
	if err == nil || !errors.Is(err, ErrNoData) || f.Fallback == nil {
		return chain, err
	}
	if f.Logger != nil {
		f.Logger.WithField("date", date.Format("2006-01-02")).Info("No option file, using fallback source")
	}
	return f.Fallback.LoadDay(ctx, date)
}
