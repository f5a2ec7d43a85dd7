// Package spread turns a day's signal rows into synthetic spread price series.
package spread

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/zerotheta/internal/models"
	"github.com/eddiefleurent/zerotheta/internal/options"
	"github.com/eddiefleurent/zerotheta/internal/series"
	"github.com/eddiefleurent/zerotheta/internal/storage"
)

// ErrNoOptionData means the day has no option chain at all. It is distinct
// from an empty Set, which means there were no resolvable signals.
var ErrNoOptionData = errors.New("no option data")

// Bundle is the resolved spread for one entry signal.
type Bundle struct {
	EntryTime time.Time        `json:"entry_time"`
	Spread    models.Spread    `json:"spread"`
	Sold      models.BarSeries `json:"-"`
	Bought    models.BarSeries `json:"-"`
	Value     models.BarSeries `json:"-"`
}

// Set holds a day's bundles keyed by entry timestamp plus availability counters.
type Set struct {
	bundles  map[int64]Bundle
	Flagged  int
	Resolved int
}

// NewSet creates an empty set.
func NewSet() Set {
	return Set{bundles: make(map[int64]Bundle)}
}

// Add stores b under its entry time.
func (s *Set) Add(b Bundle) {
	if s.bundles == nil {
		s.bundles = make(map[int64]Bundle)
	}
	s.bundles[b.EntryTime.UnixNano()] = b
}

// Get returns the bundle for an entry timestamp.
func (s Set) Get(t time.Time) (Bundle, bool) {
	b, ok := s.bundles[t.UnixNano()]
	return b, ok
}

// Len returns the number of resolved bundles.
func (s Set) Len() int { return len(s.bundles) }

// Bundles returns every bundle ordered by entry time.
func (s Set) Bundles() []Bundle {
	out := make([]Bundle, 0, len(s.bundles))
	for _, b := range s.bundles {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryTime.Before(out[j].EntryTime) })
	return out
}

// Availability is Resolved/Flagged, or 0 when nothing was flagged.
func (s Set) Availability() float64 {
	return models.Availability(s.Resolved, s.Flagged)
}

// Config fixes how strikes are chosen and which contracts are looked up.
type Config struct {
	Underlying string
	Width      float64
	Constraint models.StrikeConstraint
	Location   *time.Location
}

// Resolver maps entry signals to spreads using a chain source.
type Resolver struct {
	source storage.ChainSource
	cfg    Config
	logger logrus.FieldLogger
}

// NewResolver validates cfg and returns a resolver.
func NewResolver(source storage.ChainSource, cfg Config, logger logrus.FieldLogger) (*Resolver, error) {
	if source == nil {
		return nil, errors.New("spread resolver needs a chain source")
	}
	if !cfg.Constraint.Valid() {
		return nil, fmt.Errorf("%w %q", models.ErrInvalidConstraint, string(cfg.Constraint))
	}
	if err := options.ValidateWidth(cfg.Width, cfg.Constraint); err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{source: source, cfg: cfg, logger: logger}, nil
}

// Resolve builds a spread for every entry row of signals on date. Rows with an
// exit flag only count towards Flagged. Signals whose legs have no bars inside
// window are skipped.
func (r *Resolver) Resolve(ctx context.Context, signals models.BarSeries, date time.Time, window models.Window) (Set, error) {
	set := NewSet()
	var rows []int
	for i := range signals.Bars {
		if signals.AnyFlag(i, models.SignalFlags...) {
			rows = append(rows, i)
		}
	}
	set.Flagged = len(rows)

	log := r.logger.WithField("date", date.Format("2006-01-02"))
	chain, err := r.source.LoadDay(ctx, date)
	if err != nil {
		if errors.Is(err, storage.ErrNoData) {
			return Set{}, fmt.Errorf("%w: %s", ErrNoOptionData, date.Format("2006-01-02"))
		}
		return Set{}, fmt.Errorf("load option chain: %w", err)
	}

	for _, i := range rows {
		if err := ctx.Err(); err != nil {
			return Set{}, err
		}
		var dir models.Direction
		switch {
		case signals.Flag(models.FlagEntryBullPut, i):
			dir = models.BullPut
		case signals.Flag(models.FlagEntryBearCall, i):
			dir = models.BearCall
		default:
			continue
		}

		row := signals.Bars[i]
		b, ok, err := r.resolveOne(ctx, chain, dir, row, date, window)
		if err != nil {
			return Set{}, err
		}
		if !ok {
			log.WithFields(logrus.Fields{"signal": row.Time, "spread": b.Spread.String()}).Debug("Option legs unavailable, skipping signal")
			continue
		}
		set.Add(b)
	}
	set.Resolved = set.Len()
	log.WithFields(logrus.Fields{"flagged": set.Flagged, "resolved": set.Resolved}).Debug("Resolved spreads")
	return set, nil
}

func (r *Resolver) resolveOne(ctx context.Context, chain storage.Chain, dir models.Direction, row models.Bar,
	date time.Time, window models.Window) (Bundle, bool, error) {
	intent := options.Intent{Direction: dir, ReferencePrice: row.Close, Constraint: r.cfg.Constraint, Width: r.cfg.Width}
	strikes, err := intent.Select()
	if err != nil {
		return Bundle{}, false, err
	}
	soldTicker, boughtTicker := options.Legs(r.cfg.Underlying, date, dir, strikes)
	b := Bundle{
		EntryTime: row.Time,
		Spread: models.Spread{
			Type: dir, Strikes: strikes, SoldTicker: soldTicker, BoughtTicker: boughtTicker, Expiration: date,
		},
	}

	sold, err := r.leg(ctx, chain, soldTicker, window)
	if err != nil {
		return b, false, err
	}
	bought, err := r.leg(ctx, chain, boughtTicker, window)
	if err != nil {
		return b, false, err
	}
	if sold.Empty() || bought.Empty() {
		return b, false, nil
	}

	b.Sold, b.Bought = series.Align(sold, bought)
	b.Value, err = series.Synthesize(b.Bought, b.Sold)
	if err != nil {
		return b, false, err
	}
	return b, true, nil
}

func (r *Resolver) leg(ctx context.Context, chain storage.Chain, ticker string, window models.Window) (models.BarSeries, error) {
	bars, err := chain.Leg(ctx, ticker)
	if err != nil {
		return models.BarSeries{}, fmt.Errorf("leg %s: %w", ticker, err)
	}
	return series.FilterWindow(models.NewBarSeries(bars), window, r.cfg.Location), nil
}
