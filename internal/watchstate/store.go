package watchstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/treefix50/streamit/internal/localstorage"
	"github.com/treefix50/streamit/internal/metrics"
)

const (
	// DefaultKey is the local storage key holding the WatchState blob.
	DefaultKey = "watchedContent"
	// SourcesKey holds resume points of videos played without a film/episode context. Stores
	// using another key keep them under SourcesKeyFor(key).
	SourcesKey = "watchedSources"
)

// SeriesLayout describes the episodes a catalog series has, per season key.
type SeriesLayout interface {
	SeriesTitle() string
	SeasonEpisodeCounts() map[string]int
}

// Store reads and writes the blob through a local storage backend. Every write replaces the
// whole blob; the mutex only orders writers inside this process.
type Store struct {
	mu      sync.Mutex
	backend localstorage.Backend
	key     string
	logger  zerolog.Logger
}

// SourcesKeyFor returns the key of the per-source blob that belongs to the blob under key.
func SourcesKeyFor(key string) string {
	if key == "" || key == DefaultKey {
		return SourcesKey
	}
	return key + ":sources"
}

type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func NewStore(backend localstorage.Backend, opts ...Option) *Store {
	s := &Store{backend: backend, key: DefaultKey, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the persisted state, or an empty one if it is missing or unreadable.
func (s *Store) Load(ctx context.Context) WatchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.read(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("watch state unreadable, using empty state")
		return Empty()
	}
	return state
}

// Save persists the full state, replacing whatever was stored.
func (s *Store) Save(ctx context.Context, state WatchState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, state)
}

// Replace sanitises state through a JSON round trip before saving it.
func (s *Store) Replace(ctx context.Context, state WatchState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("watchstate: encode: %w", err)
	}
	clean, err := Parse(data)
	if err != nil {
		return err
	}
	return s.Save(ctx, clean)
}

func (s *Store) FilmProgress(ctx context.Context, title string) Progress {
	return s.Load(ctx).Films[title]
}

func (s *Store) SetFilmProgress(ctx context.Context, title string, watched bool, seconds float64) error {
	p := Progress{Watched: watched, Time: NormalizeTime(seconds)}
	return s.update(ctx, "film", func(state *WatchState) {
		state.Films[title] = p
	})
}

func (s *Store) EpisodeProgress(ctx context.Context, seriesTitle, season string, episode int) Progress {
	seasons := s.Load(ctx).Series[seriesTitle]
	if seasons == nil {
		return Progress{}
	}
	return seasons[NormalizeSeason(season)][NormalizeEpisode(episode)]
}

func (s *Store) SetEpisodeProgress(ctx context.Context, seriesTitle, season string, episode int, watched bool, seconds float64) error {
	season = NormalizeSeason(season)
	episode = NormalizeEpisode(episode)
	p := Progress{Watched: watched, Time: NormalizeTime(seconds)}
	return s.update(ctx, "episode", func(state *WatchState) {
		seasons := state.Series[seriesTitle]
		if seasons == nil {
			seasons = make(Seasons)
			state.Series[seriesTitle] = seasons
		}
		if seasons[season] == nil {
			seasons[season] = make(map[int]Progress)
		}
		seasons[season][episode] = p
	})
}

// IsSeriesFullyWatched reports whether every episode of every season is watched. A series
// without seasons is never fully watched.
func (s *Store) IsSeriesFullyWatched(ctx context.Context, series SeriesLayout) bool {
	counts := series.SeasonEpisodeCounts()
	if len(counts) == 0 {
		return false
	}
	seasons := s.Load(ctx).Series[series.SeriesTitle()]
	for season, count := range counts {
		episodes := seasons[NormalizeSeason(season)]
		for i := 0; i < count; i++ {
			if !episodes[i].Watched {
				return false
			}
		}
	}
	return true
}

// SourceProgress returns the resume record of a video played without a content context.
func (s *Store) SourceProgress(ctx context.Context, src string) Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	sources, err := s.readSources(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("source progress unreadable")
		return Progress{}
	}
	return sources[src]
}

func (s *Store) SetSourceProgress(ctx context.Context, src string, watched bool, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sources, err := s.readSources(ctx)
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}
	if sources == nil {
		sources = make(map[string]Progress)
	}
	sources[src] = Progress{Watched: watched, Time: NormalizeTime(seconds)}

	data, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("watchstate: encode sources: %w", err)
	}
	if err := s.backend.SetItem(ctx, SourcesKeyFor(s.key), string(data)); err != nil {
		metrics.ProgressWriteErrors.Inc()
		return err
	}
	metrics.ProgressWrites.WithLabelValues("source").Inc()
	return nil
}

// update runs fn over the current state and writes the result back. A corrupt blob is
// replaced; a failing backend aborts so stored progress is never clobbered by a read error.
func (s *Store) update(ctx context.Context, kind string, fn func(*WatchState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read(ctx)
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			return err
		}
		s.logger.Warn().Err(err).Msg("replacing corrupt watch state")
		state = Empty()
	}
	fn(&state)
	if err := s.write(ctx, state); err != nil {
		return err
	}
	metrics.ProgressWrites.WithLabelValues(kind).Inc()
	return nil
}

func (s *Store) read(ctx context.Context) (WatchState, error) {
	raw, ok, err := s.backend.GetItem(ctx, s.key)
	if err != nil {
		return Empty(), fmt.Errorf("watchstate: read: %w", err)
	}
	if !ok {
		return Empty(), nil
	}
	return Parse([]byte(raw))
}

func (s *Store) write(ctx context.Context, state WatchState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("watchstate: encode: %w", err)
	}
	if err := s.backend.SetItem(ctx, s.key, string(data)); err != nil {
		metrics.ProgressWriteErrors.Inc()
		return fmt.Errorf("watchstate: write: %w", err)
	}
	return nil
}

func (s *Store) readSources(ctx context.Context) (map[string]Progress, error) {
	raw, ok, err := s.backend.GetItem(ctx, SourcesKeyFor(s.key))
	if err != nil {
		return nil, fmt.Errorf("watchstate: read sources: %w", err)
	}
	if !ok {
		return map[string]Progress{}, nil
	}
	var top any
	if err := json.Unmarshal([]byte(raw), &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	sources := make(map[string]Progress)
	if obj, ok := top.(map[string]any); ok {
		for src, v := range obj {
			if p, ok := progressFrom(v); ok {
				sources[src] = p
			}
		}
	}
	return sources, nil
}
