package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAll(t *testing.T) map[string]Backend {
	t.Helper()
	backends := map[string]Backend{}
	for _, engine := range []string{EngineMemory, EnginePebble, EngineBolt, EngineLog} {
		b, err := Open(Options{Engine: engine, DataDir: t.TempDir()})
		require.NoError(t, err, engine)
		t.Cleanup(func() { _ = b.Close() })
		backends[engine] = b
	}
	return backends
}

func TestBackends_CRUD(t *testing.T) {
	for engine, b := range openAll(t) {
		t.Run(engine, func(t *testing.T) {
			_, err := b.Get([]byte("missing"))
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.Put([]byte("k1"), []byte("v1")))
			got, err := b.Get([]byte("k1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), got)

			require.NoError(t, b.Put([]byte("k1"), []byte("v2")))
			got, err = b.Get([]byte("k1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)

			require.NoError(t, b.Delete([]byte("k1")))
			_, err = b.Get([]byte("k1"))
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, b.Delete([]byte("never-written")))
		})
	}
}

func TestBackends_Scan(t *testing.T) {
	for engine, b := range openAll(t) {
		t.Run(engine, func(t *testing.T) {
			for _, k := range []string{"user:2", "user:1", "order:1", "user:3", "users"} {
				require.NoError(t, b.Put([]byte(k), []byte("v-"+k)))
			}

			var keys []string
			err := b.Scan([]byte("user:"), func(key, value []byte) error {
				keys = append(keys, string(key))
				assert.Equal(t, "v-"+string(key), string(value))
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"user:1", "user:2", "user:3"}, keys)

			var all int
			require.NoError(t, b.Scan(nil, func(key, value []byte) error {
				all++
				return nil
			}))
			assert.Equal(t, 5, all)

			stop := assert.AnError
			calls := 0
			err = b.Scan([]byte("user:"), func(key, value []byte) error {
				calls++
				return stop
			})
			assert.ErrorIs(t, err, stop)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestOpen_UnknownEngine(t *testing.T) {
	_, err := Open(Options{Engine: "floppy", DataDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrUnknownEngine)
}

func TestPrefixUpperBound(t *testing.T) {
	tests := []struct {
		name   string
		prefix []byte
		want   []byte
	}{
		{"simple", []byte("ab"), []byte("ac")},
		{"carry", []byte{'a', 0xff}, []byte("b")},
		{"all ff", []byte{0xff, 0xff}, nil},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, prefixUpperBound(tt.prefix))
		})
	}
}

func TestLogBackend_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "active.data")

	b, res, err := NewLogBackend(LogOptions{FilePath: path, SyncWrites: true})
	require.NoError(t, err)
	assert.Zero(t, res.RecordsValidated)

	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	require.NoError(t, b.Put([]byte("b"), []byte("2")))
	require.NoError(t, b.Put([]byte("a"), []byte("3")))
	require.NoError(t, b.Delete([]byte("b")))
	size := b.Size()
	require.NoError(t, b.Close())

	_, err = b.Get([]byte("a"))
	assert.ErrorIs(t, err, ErrClosed)

	b, res, err = NewLogBackend(LogOptions{FilePath: path})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, int64(4), res.RecordsValidated)
	assert.Zero(t, res.RecordsTruncated)
	assert.Equal(t, size, res.FileSizeAfter)

	got, err := b.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)
	_, err = b.Get([]byte("b"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogBackend_TruncatesCorruptTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "active.data")

	b, _, err := NewLogBackend(LogOptions{FilePath: path})
	require.NoError(t, err)
	require.NoError(t, b.Put([]byte("keep"), []byte("yes")))
	good := b.Size()
	require.NoError(t, b.Put([]byte("torn"), []byte("no")))
	require.NoError(t, b.Close())

	// Chop the second frame in half to simulate a crash mid-write.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, good+(info.Size()-good)/2))

	b, res, err := NewLogBackend(LogOptions{FilePath: path})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, int64(1), res.RecordsValidated)
	assert.Equal(t, int64(1), res.RecordsTruncated)
	assert.Equal(t, good, res.FileSizeAfter)

	got, err := b.Get([]byte("keep"))
	require.NoError(t, err)
	assert.Equal(t, []byte("yes"), got)
	_, err = b.Get([]byte("torn"))
	assert.ErrorIs(t, err, ErrNotFound)

	// New writes land after the truncation point and survive a reopen.
	require.NoError(t, b.Put([]byte("after"), []byte("ok")))
	require.NoError(t, b.Close())
	b, res, err = NewLogBackend(LogOptions{FilePath: path})
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, int64(2), res.RecordsValidated)
}

func TestLogBackend_CorruptByteFlip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "active.data")

	b, _, err := NewLogBackend(LogOptions{FilePath: path})
	require.NoError(t, err)
	require.NoError(t, b.Put([]byte("k"), []byte("value")))
	require.NoError(t, b.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0600))

	b, res, err := NewLogBackend(LogOptions{FilePath: path})
	require.NoError(t, err)
	defer b.Close()
	assert.Zero(t, res.RecordsValidated)
	assert.Equal(t, int64(1), res.RecordsTruncated)
	assert.Zero(t, res.FileSizeAfter)
}
