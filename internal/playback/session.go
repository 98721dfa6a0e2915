// Package playback binds a media element to a film or episode and keeps its watch progress.
package playback

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/treefix50/streamit/internal/metrics"
	"github.com/treefix50/streamit/internal/resume"
	"github.com/treefix50/streamit/internal/watchstate"
)

// ErrVideoUnavailable is returned by Play when there is no source to play.
var ErrVideoUnavailable = errors.New("video unavailable")

// Notifier shows user-facing notices such as "video unavailable".
type Notifier interface {
	Notify(message string)
}

type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

type binding struct {
	src     string
	content *Context // nil when playing a bare source
}

// Session drives one player. All methods are safe for concurrent use; they are serialised the
// way media element callbacks are on a single UI thread.
type Session struct {
	mu         sync.Mutex
	media      Media
	store      *watchstate.Store
	notifier   Notifier
	logger     zerolog.Logger
	generation uint64
	current    *binding
	label      string
	// pendingResume is the stored offset still waiting for metadata before it can be applied.
	pendingResume int64
}

type SessionOption func(*Session)

func WithNotifier(n Notifier) SessionOption {
	return func(s *Session) { s.notifier = n }
}

func WithSessionLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

func NewSession(media Media, store *watchstate.Store, opts ...SessionOption) *Session {
	s := &Session{
		media:    media,
		store:    store,
		notifier: NotifierFunc(func(string) {}),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Play binds src to content (nil for a bare source), loads it and starts playback. The returned
// generation identifies this play for the media callbacks. An empty src notifies the user and
// leaves the current binding untouched.
func (s *Session) Play(ctx context.Context, src string, content *Context) (uint64, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		s.notifier.Notify(ErrVideoUnavailable.Error())
		return 0, ErrVideoUnavailable
	}

	var bound *Context
	if content != nil {
		if err := content.Validate(); err != nil {
			return 0, err
		}
		n := content.normalized()
		bound = &n
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.persistLocked(ctx, false)
	}

	s.generation++
	s.current = &binding{src: src, content: bound}
	s.pendingResume = s.storedProgressLocked(ctx).Time
	s.label = labelFor(s.current)

	s.media.Load(src)
	if err := s.media.Play(); err != nil {
		// autoplay refusals leave the source loaded for a manual start
		s.logger.Warn().Err(err).Str("src", src).Msg("media refused to start")
	}

	s.logger.Debug().
		Str("src", src).
		Uint64("generation", s.generation).
		Int64("resume_at", s.pendingResume).
		Msg("playback started")
	return s.generation, nil
}

// OnLoadedMetadata applies the pending resume seek. It reports false and does nothing when
// generation belongs to a play that has since been superseded or closed.
func (s *Session) OnLoadedMetadata(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentLocked(generation) {
		return false
	}
	if s.pendingResume > 0 {
		s.media.Seek(resume.ResumeOffset(s.pendingResume, s.media.Duration()))
	}
	s.pendingResume = 0
	return true
}

// Observe runs report, which updates the media from a player sample, only while generation is
// the bound play. Samples from a superseded play are dropped and false is returned.
func (s *Session) Observe(generation uint64, report func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(generation) {
		return false
	}
	report()
	return true
}

// OnTimeUpdate persists the current position. Called on every playback tick; ticks from a
// superseded play report false and save nothing.
func (s *Session) OnTimeUpdate(ctx context.Context, generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(generation) {
		return false
	}
	s.persistLocked(ctx, false)
	return true
}

// OnPause forces a save at the paused position.
func (s *Session) OnPause(ctx context.Context, generation uint64) bool {
	return s.OnTimeUpdate(ctx, generation)
}

// OnEnded marks the bound content watched regardless of thresholds and clears the binding.
func (s *Session) OnEnded(ctx context.Context, generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(generation) {
		return false
	}
	s.persistLocked(ctx, true)
	s.current = nil
	s.pendingResume = 0
	return true
}

// Close saves the position, stops and unloads the media, and clears the binding. It returns
// the content that was bound, if any, so callers can reopen its details. Closing twice is safe.
func (s *Session) Close(ctx context.Context) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	var closed *Context
	if s.current != nil {
		s.persistLocked(ctx, false)
		closed = s.current.content
	}
	s.media.Pause()
	s.media.Unload()
	s.current = nil
	s.pendingResume = 0
	s.label = ""
	s.generation++
	return closed
}

// Label is the title shown over the player.
func (s *Session) Label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.label
}

// Active returns the bound source and content; ok is false when nothing is bound.
func (s *Session) Active() (src string, content *Context, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return "", nil, false
	}
	if s.current.content != nil {
		c := *s.current.content
		content = &c
	}
	return s.current.src, content, true
}

// Generation identifies the latest play or close.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) currentLocked(generation uint64) bool {
	if s.current == nil || generation != s.generation {
		metrics.StaleCallbacks.Inc()
		return false
	}
	return true
}

func (s *Session) storedProgressLocked(ctx context.Context) watchstate.Progress {
	b := s.current
	switch {
	case b.content == nil:
		return s.store.SourceProgress(ctx, b.src)
	case b.content.Kind == KindFilm:
		return s.store.FilmProgress(ctx, b.content.Title)
	default:
		return s.store.EpisodeProgress(ctx, b.content.Title, b.content.Season, b.content.EpisodeIndex)
	}
}

func (s *Session) persistLocked(ctx context.Context, ended bool) {
	// until the resume seek lands the element sits at 0; saving now would erase the resume point
	if s.pendingResume > 0 && !ended {
		return
	}

	d := resume.Classify(s.media.CurrentTime(), s.media.Duration(), ended)
	seconds := float64(d.TimeToPersist)

	b := s.current
	var err error
	switch {
	case b.content == nil:
		err = s.store.SetSourceProgress(ctx, b.src, d.Watched, seconds)
	case b.content.Kind == KindFilm:
		err = s.store.SetFilmProgress(ctx, b.content.Title, d.Watched, seconds)
	default:
		err = s.store.SetEpisodeProgress(ctx, b.content.Title, b.content.Season, b.content.EpisodeIndex, d.Watched, seconds)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("src", b.src).Msg("persist watch progress failed")
		return
	}

	if d.Watched {
		trigger := "threshold"
		if ended {
			trigger = "ended"
		}
		metrics.WatchedMarks.WithLabelValues(trigger).Inc()
	}
}

func labelFor(b *binding) string {
	if b.content == nil {
		return b.src
	}
	return b.content.Label()
}
