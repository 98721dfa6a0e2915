package playback

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/treefix50/streamit/internal/localstorage"
	"github.com/treefix50/streamit/internal/watchstate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestManagerOpenGetRemove(t *testing.T) {
	store := watchstate.NewStore(localstorage.NewMemory())
	manager := NewManager(store, ManagerOptions{})
	defer manager.Close(context.Background())
	ctx := context.Background()

	id, session, media := manager.Open()
	require.NotEmpty(t, id)
	assert.Equal(t, 1, manager.Len())

	got, gotMedia, err := manager.Get(id)
	require.NoError(t, err)
	assert.Same(t, session, got)
	assert.Same(t, media, gotMedia)

	_, err = session.Play(ctx, "film.mp4", Film("F"))
	require.NoError(t, err)
	media.Report(700, 5400)

	closed := manager.Remove(ctx, id)
	require.NotNil(t, closed)
	assert.Equal(t, watchstate.Progress{Time: 700}, store.FilmProgress(ctx, "F"))

	_, _, err = manager.Get(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Nil(t, manager.Remove(ctx, id))
}

func TestManagerSweepClosesIdleSessions(t *testing.T) {
	store := watchstate.NewStore(localstorage.NewMemory())
	manager := NewManager(store, ManagerOptions{})
	defer manager.Close(context.Background())
	ctx := context.Background()

	now := time.Unix(1700000000, 0)
	manager.now = func() time.Time { return now }
	manager.idleTimeout = time.Minute

	idleID, idle, idleMedia := manager.Open()
	_, err := idle.Play(ctx, "a.mp4", Film("A"))
	require.NoError(t, err)
	idleMedia.Report(120, 4000)

	now = now.Add(45 * time.Second)
	activeID, _, _ := manager.Open()

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, manager.Sweep(ctx))

	_, _, err = manager.Get(idleID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, _, err = manager.Get(activeID)
	assert.NoError(t, err)
	assert.Equal(t, int64(120), store.FilmProgress(ctx, "A").Time)
}

func TestManagerSweeperStopsOnClose(t *testing.T) {
	store := watchstate.NewStore(localstorage.NewMemory())
	manager := NewManager(store, ManagerOptions{IdleTimeout: time.Hour})
	manager.Open()
	manager.Close(context.Background())
	manager.Close(context.Background())
	assert.Equal(t, 0, manager.Len())
}

func TestRemoteMediaDirectives(t *testing.T) {
	media := NewRemoteMedia()
	assert.True(t, math.IsNaN(media.Duration()))

	media.Load("a.mp4")
	require.NoError(t, media.Play())
	media.Seek(42)

	d := media.TakeDirectives()
	assert.Equal(t, "a.mp4", d.Src)
	assert.True(t, d.Playing)
	require.NotNil(t, d.SeekTo)
	assert.Equal(t, 42.0, *d.SeekTo)

	// seek is one-shot
	assert.Nil(t, media.TakeDirectives().SeekTo)

	media.Report(50, 3000)
	assert.Equal(t, 50.0, media.CurrentTime())
	assert.Equal(t, 3000.0, media.Duration())

	media.Report(math.NaN(), 3000)
	assert.Equal(t, 50.0, media.CurrentTime())

	media.Unload()
	d = media.TakeDirectives()
	assert.True(t, d.Unload)
	assert.False(t, d.Playing)
	assert.Empty(t, d.Src)
}
