// Package storage holds the byte-level key/value engines that tables
// persist encoded beans into.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
)

var (
	ErrNotFound      = errors.New("key not found")
	ErrClosed        = errors.New("storage is closed")
	ErrUnknownEngine = errors.New("unknown storage engine")
)

// Engine names accepted by Open.
const (
	EnginePebble = "pebble"
	EngineBolt   = "bolt"
	EngineLog    = "log"
	EngineMemory = "memory"
)

// Backend is an ordered byte key/value store. Values returned by Get are
// owned by the caller.
type Backend interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Scan calls fn for every key with the given prefix in ascending key order.
	Scan(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

type Options struct {
	Engine     string
	DataDir    string
	SyncWrites bool
	Logger     *slog.Logger
}

// Open creates the engine named by opts.Engine under opts.DataDir.
func Open(opts Options) (Backend, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch opts.Engine {
	case EnginePebble, "":
		return NewPebbleBackend(filepath.Join(opts.DataDir, "pebble"), opts.SyncWrites)
	case EngineBolt:
		return NewBoltBackend(filepath.Join(opts.DataDir, "beans.bolt"))
	case EngineLog:
		b, res, err := NewLogBackend(LogOptions{
			FilePath:   filepath.Join(opts.DataDir, "active.data"),
			SyncWrites: opts.SyncWrites,
		})
		if err != nil {
			return nil, err
		}
		if res.RecordsTruncated > 0 {
			logger.Warn("log storage truncated corrupt tail",
				"validated", res.RecordsValidated, "size_before", res.FileSizeBefore, "size_after", res.FileSizeAfter)
		}
		return b, nil
	case EngineMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, opts.Engine)
	}
}
