package backtest

import (
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/zerotheta/internal/config"
	"github.com/eddiefleurent/zerotheta/internal/marketdata"
	"github.com/eddiefleurent/zerotheta/internal/storage"
)

// NewChainSource builds the option chain source described by cfg: day files
// under data.options_dir, optionally backed by the Polygon aggregates API for
// days without a file, behind a bounded cache of loaded days.
func NewChainSource(cfg *config.Config, logger logrus.FieldLogger) storage.ChainSource {
	files := storage.NewFileChainSource(cfg.Data.OptionsDir, cfg.Data.Format, cfg.Data.Underlying, logger)
	files.Scale = cfg.Data.PriceScale
	var source storage.ChainSource = files

	if cfg.Data.APIFallback {
		client := marketdata.NewClient(cfg.Polygon.BaseURL, cfg.Polygon.APIKey, cfg.Polygon.Timeout, logger).
			WithRateLimit(cfg.Polygon.RequestsPerSecond, cfg.Polygon.Burst)
		breaker := marketdata.NewBreakerClient(client, marketdata.DefaultBreakerSettings, logger)
		fetcher := marketdata.NewRetryClient(breaker, logger)
		source = &storage.FallbackChainSource{
			Primary:  source,
			Fallback: marketdata.NewAPIChainSource(fetcher, cfg.Data.Underlying, cfg.Polygon.PriceScale, logger),
			Logger:   logger,
		}
	}

	if cfg.Data.CacheDays > 0 {
		source = storage.NewCachedChainSource(source, cfg.Data.CacheDays)
	}
	return source
}
