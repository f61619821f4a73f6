package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/ssargent/beanstore/pkg/codec"
)

const (
	opPut    byte = 1
	opDelete byte = 2
)

// LogOptions configures the append-only log engine.
type LogOptions struct {
	FilePath   string
	SyncWrites bool // fsync after every write
}

// RecoveryResult describes what opening a log file found on disk.
type RecoveryResult struct {
	RecordsValidated int64
	RecordsTruncated int64
	FileSizeBefore   int64
	FileSizeAfter    int64
	RecoveryTime     time.Duration
}

type logEntry struct {
	offset int64
	size   int
}

// LogBackend keeps every write as a checksummed frame appended to a single
// file. An in-memory index maps each live key to its latest frame.
type LogBackend struct {
	mu     sync.RWMutex
	file   *os.File
	opts   LogOptions
	index  map[string]logEntry
	offset int64
	closed bool
}

// NewLogBackend opens or creates the log at opts.FilePath. A torn or corrupt
// tail is truncated away before the index is rebuilt.
func NewLogBackend(opts LogOptions) (*LogBackend, *RecoveryResult, error) {
	if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0750); err != nil {
		return nil, nil, err
	}

	b := &LogBackend{opts: opts, index: make(map[string]logEntry)}
	res, err := b.recover()
	if err != nil {
		return nil, nil, err
	}

	file, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, nil, err
	}
	b.file = file
	b.offset = res.FileSizeAfter
	return b, res, nil
}

// recover replays the log into the index, stopping at the first frame that
// does not decode.
func (b *LogBackend) recover() (*RecoveryResult, error) {
	start := time.Now()
	data, err := os.ReadFile(b.opts.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return &RecoveryResult{RecoveryTime: time.Since(start)}, nil
	}
	if err != nil {
		return nil, err
	}

	res := &RecoveryResult{FileSizeBefore: int64(len(data))}
	off := 0
	for off < len(data) {
		frame, err := codec.DecodeFrame(data[off:])
		if err != nil {
			break
		}
		op, key, _, err := decodeLogBody(frame.Body)
		if err != nil {
			break
		}
		b.apply(op, key, logEntry{offset: int64(off), size: frame.Size()})
		res.RecordsValidated++
		off += frame.Size()
	}

	res.FileSizeAfter = int64(off)
	if off < len(data) {
		if err := os.Truncate(b.opts.FilePath, int64(off)); err != nil {
			return nil, err
		}
		res.RecordsTruncated = 1
	}
	res.RecoveryTime = time.Since(start)
	return res, nil
}

func (b *LogBackend) apply(op byte, key []byte, e logEntry) {
	if op == opDelete {
		delete(b.index, string(key))
		return
	}
	b.index[string(key)] = e
}

func encodeLogBody(op byte, key, value []byte) []byte {
	w := codec.NewWriter(len(key) + len(value) + 12)
	w.Byte(op)
	w.Octets(key)
	if op == opPut {
		w.Octets(value)
	}
	return w.Bytes()
}

func decodeLogBody(body []byte) (op byte, key, value []byte, err error) {
	r := codec.NewReader(body)
	if op, err = r.Byte(); err != nil {
		return 0, nil, nil, err
	}
	if key, err = r.Octets(); err != nil {
		return 0, nil, nil, err
	}
	switch op {
	case opPut:
		value, err = r.Octets()
	case opDelete:
	default:
		err = fmt.Errorf("%w: unknown log op %d", codec.ErrMalformedEncoding, op)
	}
	return op, key, value, err
}

func (b *LogBackend) Get(key []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	e, ok := b.index[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return b.readValue(e)
}

func (b *LogBackend) readValue(e logEntry) ([]byte, error) {
	buf := make([]byte, e.size)
	if _, err := b.file.ReadAt(buf, e.offset); err != nil {
		return nil, err
	}
	frame, err := codec.DecodeFrame(buf)
	if err != nil {
		return nil, err
	}
	_, _, value, err := decodeLogBody(frame.Body)
	return value, err
}

func (b *LogBackend) Put(key, value []byte) error {
	return b.append(opPut, key, value)
}

func (b *LogBackend) Delete(key []byte) error {
	return b.append(opDelete, key, nil)
}

func (b *LogBackend) append(op byte, key, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if op == opDelete {
		if _, ok := b.index[string(key)]; !ok {
			return nil
		}
	}

	data := codec.EncodeFrame(encodeLogBody(op, key, value))
	if _, err := b.file.WriteAt(data, b.offset); err != nil {
		return err
	}
	if b.opts.SyncWrites {
		if err := b.file.Sync(); err != nil {
			return err
		}
	}
	b.apply(op, key, logEntry{offset: b.offset, size: len(data)})
	b.offset += int64(len(data))
	return nil
}

func (b *LogBackend) Scan(prefix []byte, fn func(key, value []byte) error) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	keys := make([]string, 0, len(b.index))
	for k := range b.index {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	type kv struct{ key, value []byte }
	pairs := make([]kv, 0, len(keys))
	for _, k := range keys {
		v, err := b.readValue(b.index[k])
		if err != nil {
			b.mu.RUnlock()
			return err
		}
		pairs = append(pairs, kv{[]byte(k), v})
	}
	b.mu.RUnlock()

	for _, p := range pairs {
		if err := fn(p.key, p.value); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the number of bytes written to the log, dead frames included.
func (b *LogBackend) Size() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.offset
}

func (b *LogBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.file.Sync(); err != nil {
		_ = b.file.Close()
		return err
	}
	return b.file.Close()
}
