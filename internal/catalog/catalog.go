package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/treefix50/streamit/internal/metrics"
)

const (
	FilmsFile  = "films_data.json"
	SeriesFile = "series_data.json"
)

type Catalog struct {
	fs     afero.Fs
	dir    string
	logger zerolog.Logger

	mu     sync.RWMutex
	films  map[string]*Film
	series map[string]*Series
	// lastLoad is when the catalog last loaded without error.
	lastLoad time.Time
}

// New loads the catalog from dir on fsys. A missing data file yields an empty section.
func New(fsys afero.Fs, dir string, logger zerolog.Logger) (*Catalog, error) {
	c := &Catalog{
		fs:     fsys,
		dir:    dir,
		logger: logger,
		films:  map[string]*Film{},
		series: map[string]*Series{},
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads both data files. On error the previous contents stay in place.
func (c *Catalog) Reload() error {
	var errs []error
	films := map[string]*Film{}
	series := map[string]*Series{}

	filmRecords, err := c.readRecords(FilmsFile)
	if err != nil {
		errs = append(errs, err)
	}
	for key, rec := range filmRecords {
		f := rec.film(key)
		films[f.Title] = f
	}

	seriesRecords, err := c.readRecords(SeriesFile)
	if err != nil {
		errs = append(errs, err)
	}
	for key, rec := range seriesRecords {
		s := rec.series(key)
		series[s.Title] = s
	}

	if len(errs) > 0 {
		metrics.CatalogReloads.WithLabelValues("error").Inc()
		return errors.Join(errs...)
	}

	c.mu.Lock()
	c.films = films
	c.series = series
	c.lastLoad = time.Now()
	c.mu.Unlock()

	metrics.CatalogReloads.WithLabelValues("ok").Inc()
	c.logger.Info().Int("films", len(films)).Int("series", len(series)).Msg("catalog loaded")
	return nil
}

// readRecords accepts both a title-keyed object and a plain list of records.
func (c *Catalog) readRecords(name string) (map[string]rawRecord, error) {
	data, err := afero.ReadFile(c.fs, path.Join(c.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			c.logger.Warn().Str("file", name).Msg("catalog file missing")
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: read %s: %w", name, err)
	}

	var keyed map[string]rawRecord
	if err := json.Unmarshal(data, &keyed); err == nil {
		return keyed, nil
	}
	var list []rawRecord
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", name, err)
	}
	out := make(map[string]rawRecord, len(list))
	for _, rec := range list {
		if strings.TrimSpace(rec.Title) == "" {
			continue
		}
		out[rec.Title] = rec
	}
	return out, nil
}

func (c *Catalog) LastLoad() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastLoad
}

// All returns every item of kind sorted by title. An empty kind returns films then series.
func (c *Catalog) All(kind Kind) []Content {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Content
	if kind == "" || kind == KindFilm {
		films := make([]Content, 0, len(c.films))
		for _, f := range c.films {
			films = append(films, Content{Kind: KindFilm, Film: f})
		}
		sortByTitle(films)
		out = append(out, films...)
	}
	if kind == "" || kind == KindSeries {
		series := make([]Content, 0, len(c.series))
		for _, s := range c.series {
			series = append(series, Content{Kind: KindSeries, Series: s})
		}
		sortByTitle(series)
		out = append(out, series...)
	}
	return out
}

func (c *Catalog) Get(kind Kind, title string) (Content, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch kind {
	case KindFilm:
		if f, ok := c.films[title]; ok {
			return Content{Kind: KindFilm, Film: f}, true
		}
	case KindSeries:
		if s, ok := c.series[title]; ok {
			return Content{Kind: KindSeries, Series: s}, true
		}
	}
	return Content{}, false
}

func (c *Catalog) Film(title string) (*Film, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.films[title]
	return f, ok
}

func (c *Catalog) Series(title string) (*Series, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.series[title]
	return s, ok
}

// Episode looks up an episode by series title, season key and zero-based index.
func (c *Catalog) Episode(series, season string, index int) (Episode, bool) {
	s, ok := c.Series(series)
	if !ok {
		return Episode{}, false
	}
	episodes, ok := s.Seasons[season]
	if !ok || index < 0 || index >= len(episodes) {
		return Episode{}, false
	}
	return episodes[index], true
}

// Latest returns up to n items of kind, newest year first.
func (c *Catalog) Latest(kind Kind, n int) []Content {
	items := c.All(kind)
	Sort(items, SortDateDesc)
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return items
}

// Featured picks the hero item: the first featured film or series, else the most recent one.
func (c *Catalog) Featured() (Content, bool) {
	items := c.All("")
	for _, item := range items {
		if item.Item().Featured {
			return item, true
		}
	}
	Sort(items, SortDateDesc)
	if len(items) == 0 {
		return Content{}, false
	}
	return items[0], true
}

func sortByTitle(items []Content) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Item().Title < items[j].Item().Title })
}
