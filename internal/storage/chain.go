package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// FileChainSource reads option day files laid out as
// <Dir>/<YYYY-MM>/<YYYY-MM-DD>.<format>. Prices are multiplied by Scale when
// it is set.
type FileChainSource struct {
	Dir        string
	Format     Format
	Underlying string
	Scale      float64
	Logger     logrus.FieldLogger
}

// NewFileChainSource creates a source for the given directory.
func NewFileChainSource(dir string, format Format, underlying string, logger logrus.FieldLogger) *FileChainSource {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FileChainSource{Dir: dir, Format: format, Underlying: underlying, Logger: logger}
}

// DayPath returns the file path holding date's chain.
func (s *FileChainSource) DayPath(date time.Time) string {
	return filepath.Join(s.Dir, date.Format("2006-01"), date.Format("2006-01-02")+s.Format.Ext())
}

// LoadDay reads the day file and keeps only contracts on the configured underlying.
func (s *FileChainSource) LoadDay(ctx context.Context, date time.Time) (Chain, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.DayPath(date)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.Logger.WithField("path", path).Info("Option file does not exist")
			return nil, fmt.Errorf("%w: %s", ErrNoData, date.Format("2006-01-02"))
		}
		return nil, err
	}

	recs, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	prefix := "O:" + s.Underlying
	kept := recs[:0]
	for _, r := range recs {
		if s.Underlying == "" || strings.HasPrefix(r.Ticker, prefix) {
			kept = append(kept, r)
		}
	}
	ScaleRecords(kept, s.Scale)
	chain := NewMemoryChain(kept)
	s.Logger.WithFields(logrus.Fields{"path": path, "contracts": chain.Len()}).Debug("Loaded option chain")
	return chain, nil
}
