package watchstate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treefix50/streamit/internal/localstorage"
)

type layout struct {
	title  string
	counts map[string]int
}

func (l layout) SeriesTitle() string                 { return l.title }
func (l layout) SeasonEpisodeCounts() map[string]int { return l.counts }

type failingBackend struct {
	*localstorage.Memory
	readErr error
}

func (f failingBackend) GetItem(ctx context.Context, key string) (string, bool, error) {
	if f.readErr != nil {
		return "", false, f.readErr
	}
	return f.Memory.GetItem(ctx, key)
}

func newStore(t *testing.T) (*Store, *localstorage.Memory) {
	t.Helper()
	backend := localstorage.NewMemory()
	return NewStore(backend), backend
}

func TestLoadDefaultsOnEmptyStore(t *testing.T) {
	store, _ := newStore(t)

	state := store.Load(context.Background())
	if diff := cmp.Diff(Empty(), state); diff != "" {
		t.Fatalf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRecoversFromCorruptBlob(t *testing.T) {
	store, backend := newStore(t)
	ctx := context.Background()
	require.NoError(t, backend.SetItem(ctx, DefaultKey, "{not json"))

	assert.Equal(t, Empty(), store.Load(ctx))

	// the next write replaces the corrupt blob
	require.NoError(t, store.SetFilmProgress(ctx, "X", false, 12))
	assert.Equal(t, Progress{Time: 12}, store.FilmProgress(ctx, "X"))
}

func TestFilmProgressRoundTrip(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	assert.Equal(t, Progress{}, store.FilmProgress(ctx, "X"))

	require.NoError(t, store.SetFilmProgress(ctx, "X", false, 42))
	assert.Equal(t, Progress{Watched: false, Time: 42}, store.FilmProgress(ctx, "X"))

	require.NoError(t, store.SetFilmProgress(ctx, "X", false, 42.9))
	assert.Equal(t, int64(42), store.FilmProgress(ctx, "X").Time)

	require.NoError(t, store.SetFilmProgress(ctx, "X", false, -5))
	assert.Equal(t, int64(0), store.FilmProgress(ctx, "X").Time)
}

func TestSeasonNormalization(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetEpisodeProgress(ctx, "S", "", 0, false, 30))

	assert.Equal(t, Progress{Time: 30}, store.EpisodeProgress(ctx, "S", "1", 0))
	assert.Equal(t, Progress{Time: 30}, store.EpisodeProgress(ctx, "S", "", 0))
	assert.Equal(t, Progress{Time: 30}, store.EpisodeProgress(ctx, "S", "  ", 0))
}

func TestNegativeEpisodeIndex(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetEpisodeProgress(ctx, "S", "1", -3, false, 77))

	assert.Equal(t, Progress{Time: 77}, store.EpisodeProgress(ctx, "S", "1", 0))
	assert.Equal(t, store.EpisodeProgress(ctx, "S", "1", -3), store.EpisodeProgress(ctx, "S", "1", 0))
	assert.Equal(t, 0, ParseEpisode("abc"))
	assert.Equal(t, 0, ParseEpisode("1.5"))
	assert.Equal(t, 4, ParseEpisode(" 4 "))
}

func TestSetEpisodeProgressCreatesIntermediateMaps(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetEpisodeProgress(ctx, "Dark", "2", 3, true, 0))
	require.NoError(t, store.SetEpisodeProgress(ctx, "Dark", "2", 4, false, 61))

	want := Seasons{"2": {3: {Watched: true}, 4: {Time: 61}}}
	if diff := cmp.Diff(want, store.Load(ctx).Series["Dark"]); diff != "" {
		t.Fatalf("series state mismatch (-want +got):\n%s", diff)
	}
}

func TestIsSeriesFullyWatched(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	noSeasons := layout{title: "Empty", counts: map[string]int{}}
	assert.False(t, store.IsSeriesFullyWatched(ctx, noSeasons))

	series := layout{title: "S", counts: map[string]int{"1": 2, "2": 1}}
	assert.False(t, store.IsSeriesFullyWatched(ctx, series))

	require.NoError(t, store.SetEpisodeProgress(ctx, "S", "1", 0, true, 0))
	require.NoError(t, store.SetEpisodeProgress(ctx, "S", "1", 1, true, 0))
	require.NoError(t, store.SetEpisodeProgress(ctx, "S", "2", 0, false, 100))
	assert.False(t, store.IsSeriesFullyWatched(ctx, series))

	require.NoError(t, store.SetEpisodeProgress(ctx, "S", "2", 0, true, 0))
	assert.True(t, store.IsSeriesFullyWatched(ctx, series))
}

func TestUpdateAbortsOnBackendReadError(t *testing.T) {
	backend := failingBackend{Memory: localstorage.NewMemory()}
	ctx := context.Background()
	require.NoError(t, backend.SetItem(ctx, DefaultKey, `{"films":{"A":{"watched":true,"time":0}},"series":{}}`))

	backend.readErr = errors.New("backend down")
	store := NewStore(backend)

	require.Error(t, store.SetFilmProgress(ctx, "B", false, 3))

	raw, _, err := backend.Memory.GetItem(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Contains(t, raw, `"A"`)
	assert.Equal(t, Empty(), store.Load(ctx))
}

func TestSourceProgress(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	assert.Equal(t, Progress{}, store.SourceProgress(ctx, "videos/a.mp4"))
	require.NoError(t, store.SetSourceProgress(ctx, "videos/a.mp4", false, 95.5))
	assert.Equal(t, Progress{Time: 95}, store.SourceProgress(ctx, "videos/a.mp4"))

	// the main blob is untouched by source progress
	assert.Equal(t, Empty(), store.Load(ctx))
}

func TestWithKey(t *testing.T) {
	backend := localstorage.NewMemory()
	store := NewStore(backend, WithKey("custom"))
	ctx := context.Background()

	require.NoError(t, store.SetFilmProgress(ctx, "X", false, 1))
	_, ok, err := backend.GetItem(ctx, "custom")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSourcesFollowKey(t *testing.T) {
	backend := localstorage.NewMemory()
	ctx := context.Background()
	first := NewStore(backend)
	second := NewStore(backend, WithKey("profile2"))

	require.NoError(t, first.SetSourceProgress(ctx, "clip.mp4", false, 40))
	require.NoError(t, second.SetSourceProgress(ctx, "clip.mp4", false, 70))

	assert.Equal(t, Progress{Time: 40}, first.SourceProgress(ctx, "clip.mp4"))
	assert.Equal(t, Progress{Time: 70}, second.SourceProgress(ctx, "clip.mp4"))

	_, ok, err := backend.GetItem(ctx, SourcesKey)
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = backend.GetItem(ctx, "profile2:sources")
	require.NoError(t, err)
	assert.True(t, ok)
}
