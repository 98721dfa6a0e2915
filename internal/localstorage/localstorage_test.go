package localstorage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, &Redis{client: client, prefix: "streamit:", logger: zerolog.Nop()}
}

func exerciseBackend(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := backend.GetItem(ctx, "watchedContent")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, backend.SetItem(ctx, "watchedContent", `{"films":{}}`))
	require.NoError(t, backend.SetItem(ctx, "watchedContent", `{"films":{"A":{}}}`))

	got, ok, err := backend.GetItem(ctx, "watchedContent")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"films":{"A":{}}}`, got)

	require.NoError(t, backend.RemoveItem(ctx, "watchedContent"))
	require.NoError(t, backend.RemoveItem(ctx, "watchedContent"))

	_, ok, err = backend.GetItem(ctx, "watchedContent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemory())
}

func TestFileBackend(t *testing.T) {
	backend, err := NewFile(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	exerciseBackend(t, backend)
}

func TestFileBackendEscapesKeys(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFile(dir)
	require.NoError(t, err)

	require.NoError(t, backend.SetItem(context.Background(), "../escape", "x"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "/")
}

func TestRedisBackend(t *testing.T) {
	mr, backend := setupMiniRedis(t)
	exerciseBackend(t, backend)

	require.NoError(t, backend.SetItem(context.Background(), "k", "v"))
	got, err := mr.Get("streamit:k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisFailsWithoutServer(t *testing.T) {
	_, err := NewRedis(context.Background(), RedisConfig{Addr: "127.0.0.1:1"}, zerolog.Nop())
	require.Error(t, err)
}
