package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

// MonthPair is a 1-minute index file and its 5-minute counterpart of the same name.
type MonthPair struct {
	Name       string
	OneMinute  string
	FiveMinute string
}

// ListFiles returns the flat files in dir with the given format, sorted by name.
func ListFiles(dir string, format Format) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), format.Ext()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// PairMonthFiles matches every 1-minute file with the 5-minute file sharing its
// name. Files without a counterpart are returned separately so callers can log
// and skip them.
func PairMonthFiles(oneMinDir, fiveMinDir string, format Format) (pairs []MonthPair, unpaired []string, err error) {
	files, err := ListFiles(oneMinDir, format)
	if err != nil {
		return nil, nil, fmt.Errorf("list %s: %w", oneMinDir, err)
	}
	for _, f := range files {
		name := filepath.Base(f)
		five := filepath.Join(fiveMinDir, name)
		if _, err := os.Stat(five); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				unpaired = append(unpaired, f)
				continue
			}
			return nil, nil, err
		}
		pairs = append(pairs, MonthPair{Name: strings.TrimSuffix(name, filepath.Ext(name)), OneMinute: f, FiveMinute: five})
	}
	return pairs, unpaired, nil
}

// LoadIndexSeries reads an index aggregate file into a time-ordered series,
// multiplying prices by scale.
func LoadIndexSeries(path string, scale float64) (models.BarSeries, error) {
	recs, err := ReadFile(path)
	if err != nil {
		return models.BarSeries{}, err
	}
	ScaleRecords(recs, scale)
	bars := BarsOf(recs)
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return models.NewBarSeries(bars), nil
}
