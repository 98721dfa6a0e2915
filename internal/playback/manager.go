package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/treefix50/streamit/internal/metrics"
	"github.com/treefix50/streamit/internal/watchstate"
)

var ErrSessionNotFound = errors.New("playback: session not found")

type managed struct {
	session  *Session
	media    *RemoteMedia
	lastSeen time.Time
}

// Manager keeps one Session per open remote player and closes the ones that went quiet.
type Manager struct {
	mu          sync.Mutex
	store       *watchstate.Store
	logger      zerolog.Logger
	sessions    map[string]*managed
	idleTimeout time.Duration
	now         func() time.Time

	sweepTicker *time.Ticker
	sweepStop   chan struct{}
	sweepDone   chan struct{}
}

type ManagerOptions struct {
	// IdleTimeout closes sessions with no activity for this long. Zero disables the sweeper.
	IdleTimeout time.Duration
	Logger      zerolog.Logger
}

func NewManager(store *watchstate.Store, opts ManagerOptions) *Manager {
	m := &Manager{
		store:       store,
		logger:      opts.Logger,
		sessions:    make(map[string]*managed),
		idleTimeout: opts.IdleTimeout,
		now:         time.Now,
	}
	if m.idleTimeout > 0 {
		interval := m.idleTimeout / 2
		if interval < time.Second {
			interval = time.Second
		}
		m.sweepTicker = time.NewTicker(interval)
		m.sweepStop = make(chan struct{})
		m.sweepDone = make(chan struct{})
		go m.runSweeper()
	}
	return m
}

// Open creates a new session bound to a fresh remote media element.
func (m *Manager) Open() (string, *Session, *RemoteMedia) {
	id := uuid.NewString()
	media := NewRemoteMedia()
	logger := m.logger.With().Str("session_id", id).Logger()
	session := NewSession(media, m.store,
		WithSessionLogger(logger),
		WithNotifier(NotifierFunc(func(message string) {
			logger.Info().Str("notice", message).Msg("playback notice")
		})),
	)

	m.mu.Lock()
	m.sessions[id] = &managed{session: session, media: media, lastSeen: m.now()}
	count := len(m.sessions)
	m.mu.Unlock()

	metrics.PlaybackSessions.Set(float64(count))
	return id, session, media
}

// Get returns the session and its media and marks it active.
func (m *Manager) Get(id string) (*Session, *RemoteMedia, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	entry.lastSeen = m.now()
	return entry.session, entry.media, nil
}

// Remove closes and forgets a session. Removing an unknown session is a no-op.
func (m *Manager) Remove(ctx context.Context, id string) *Context {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	metrics.PlaybackSessions.Set(float64(count))
	return entry.session.Close(ctx)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the idle timeout and returns how many it closed.
func (m *Manager) Sweep(ctx context.Context) int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.Lock()
	var idle []*managed
	for id, entry := range m.sessions {
		if entry.lastSeen.Before(cutoff) {
			idle = append(idle, entry)
			delete(m.sessions, id)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	for _, entry := range idle {
		entry.session.Close(ctx)
	}
	if len(idle) > 0 {
		metrics.PlaybackSessions.Set(float64(count))
		m.logger.Info().Int("closed", len(idle)).Msg("closed idle playback sessions")
	}
	return len(idle)
}

// Close stops the sweeper and closes every session.
func (m *Manager) Close(ctx context.Context) {
	m.stopSweeper()

	m.mu.Lock()
	entries := m.sessions
	m.sessions = make(map[string]*managed)
	m.mu.Unlock()

	for _, entry := range entries {
		entry.session.Close(ctx)
	}
	metrics.PlaybackSessions.Set(0)
}

func (m *Manager) runSweeper() {
	defer close(m.sweepDone)
	for {
		select {
		case <-m.sweepTicker.C:
			m.Sweep(context.Background())
		case <-m.sweepStop:
			m.sweepTicker.Stop()
			return
		}
	}
}

func (m *Manager) stopSweeper() {
	m.mu.Lock()
	stop, done := m.sweepStop, m.sweepDone
	m.sweepStop = nil
	m.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
