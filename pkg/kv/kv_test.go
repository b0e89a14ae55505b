package kv_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/stamprally/pkg/kv"
)

func backends(t *testing.T) map[string]kv.Store {
	t.Helper()

	ctx := context.Background()
	dir := t.TempDir()

	file, err := kv.Open(ctx, kv.Options{Backend: kv.BackendFile, Dir: filepath.Join(dir, "files")})
	require.NoError(t, err)

	sqlStore, err := kv.Open(ctx, kv.Options{Backend: kv.BackendSQLite, SQLitePath: filepath.Join(dir, "kv.db")})
	require.NoError(t, err)

	mr := miniredis.RunT(t)

	redisStore, err := kv.Open(ctx, kv.Options{Backend: kv.BackendRedis, Redis: kv.RedisOptions{Addr: mr.Addr()}})
	require.NoError(t, err)

	stores := map[string]kv.Store{
		"memory": kv.NewMemory(),
		"file":   file,
		"sqlite": sqlStore,
		"redis":  redisStore,
	}

	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})

	return stores
}

func TestStore_Contract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "userProgress")
			require.ErrorIs(t, err, kv.ErrNotFound)

			require.NoError(t, store.Set(ctx, "userProgress", []byte(`{"version":1}`)))

			got, err := store.Get(ctx, "userProgress")
			require.NoError(t, err)
			assert.JSONEq(t, `{"version":1}`, string(got))

			require.NoError(t, store.Set(ctx, "userProgress", []byte(`{"version":2}`)))

			got, err = store.Get(ctx, "userProgress")
			require.NoError(t, err)
			assert.JSONEq(t, `{"version":2}`, string(got))

			require.NoError(t, store.Delete(ctx, "userProgress"))
			require.NoError(t, store.Delete(ctx, "userProgress"))

			_, err = store.Get(ctx, "userProgress")
			require.ErrorIs(t, err, kv.ErrNotFound)

			require.ErrorIs(t, store.Set(ctx, "../escape", []byte("x")), kv.ErrInvalidKey)
		})
	}
}

func TestMemory_CopiesValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := kv.NewMemory()
	value := []byte("abc")

	require.NoError(t, m.Set(ctx, "k", value))

	value[0] = 'z'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'z'

	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemory_Closed(t *testing.T) {
	t.Parallel()

	m := kv.NewMemory()
	require.NoError(t, m.Close())

	_, err := m.Get(context.Background(), "k")
	require.ErrorIs(t, err, kv.ErrClosed)
}

func TestFile_LeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	store, err := kv.NewFile(dir)
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, store.Set(context.Background(), "scanHistory", []byte("data")))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "scanHistory.dat", entries[0].Name())
}

func TestFile_RespectsCancelledContext(t *testing.T) {
	t.Parallel()

	store, err := kv.NewFile(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.Set(ctx, "k", []byte("v")), context.Canceled)
}

func TestRedis_UsesPrefix(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	store, err := kv.NewRedis(context.Background(), kv.RedisOptions{Addr: mr.Addr(), Prefix: "venue-a:"})
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Set(context.Background(), "userProgress", []byte("v")))

	raw, err := mr.Get("venue-a:userProgress")
	require.NoError(t, err)
	assert.Equal(t, "v", raw)
}

func TestRedis_PingFailure(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := kv.NewRedis(context.Background(), kv.RedisOptions{Addr: addr})
	require.Error(t, err)
}

func TestOpen_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := kv.Open(context.Background(), kv.Options{Backend: "etcd"})
	require.ErrorIs(t, err, kv.ErrUnknownBackend)
}
