// Package store keeps beans of one layout in a storage backend and hands
// them out as transactional Safe handles.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/beanstore/pkg/bean"
	"github.com/ssargent/beanstore/pkg/codec"
	"github.com/ssargent/beanstore/pkg/storage"
	"github.com/ssargent/beanstore/pkg/txn"
)

// NewKey returns a fresh, time-sortable record key.
func NewKey() string {
	return ksuid.New().String()
}

// Table maps string keys to records of one layout. Each record is stored as
// a checksummed frame around its encoded body, under "<table>:<key>".
type Table[R any] struct {
	name    string
	layout  *bean.Layout[R]
	backend storage.Backend
	prefix  string
	logger  *slog.Logger
	metrics *metrics
}

func NewTable[R any](name string, layout *bean.Layout[R], backend storage.Backend, opts TableOptions) *Table[R] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Table[R]{
		name:    name,
		layout:  layout,
		backend: backend,
		prefix:  name + string(KeySeparator),
		logger:  logger.With("table", name),
		metrics: newMetrics(opts.Registerer),
	}
}

func (t *Table[R]) Name() string {
	return t.name
}

func (t *Table[R]) Layout() *bean.Layout[R] {
	return t.layout
}

// LockID names the lock that serializes procedures touching key.
func (t *Table[R]) LockID(key string) string {
	return t.prefix + key
}

func (t *Table[R]) storageKey(key string) []byte {
	return []byte(t.prefix + key)
}

// row is the per-transaction state of one key.
type row[R any] struct {
	key     string
	safe    *txn.Safe[R]
	stored  bool // the backend held a value when the row was attached
	deleted bool // absent from the table as seen by this transaction
}

// attach returns the row for key in tx, loading it from the backend on
// first use. Rows are flushed by a BeforeCommit hook.
func (t *Table[R]) attach(tx *txn.Txn, key string) (*row[R], error) {
	if !tx.Live() {
		return nil, txn.ErrNotLocked
	}
	if key == "" {
		return nil, ErrInvalidKey
	}
	if v, ok := tx.Attached(t, key); ok {
		return v.(*row[R]), nil
	}

	r := &row[R]{key: key}
	var rec *R
	loaded, err := t.load(key)
	switch {
	case err == nil:
		r.stored = true
		rec = loaded.Record
	case errors.Is(err, ErrRecordNotFound):
		rec = t.layout.New()
		r.deleted = true
	default:
		return nil, err
	}
	r.safe = txn.Wrap(tx, t.layout, rec)

	if err := tx.Attach(t, key, r); err != nil {
		return nil, err
	}
	if err := tx.BeforeCommit(t.flush(tx, r)); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the record stored under key, attached to tx.
func (t *Table[R]) Get(tx *txn.Txn, key string) (*txn.Safe[R], error) {
	r, err := t.attach(tx, key)
	if err != nil {
		return nil, err
	}
	if r.deleted {
		return nil, fmt.Errorf("%s %q: %w", t.name, key, ErrRecordNotFound)
	}
	return r.safe, nil
}

// Insert stores a copy of rec under key, failing if key is taken. A nil rec
// inserts a default record.
func (t *Table[R]) Insert(tx *txn.Txn, key string, rec *R) (*txn.Safe[R], error) {
	r, err := t.attach(tx, key)
	if err != nil {
		return nil, err
	}
	if !r.deleted {
		return nil, fmt.Errorf("%s %q: %w", t.name, key, ErrRecordExists)
	}
	return t.write(tx, r, rec)
}

// Put stores a copy of rec under key, replacing any existing record.
func (t *Table[R]) Put(tx *txn.Txn, key string, rec *R) (*txn.Safe[R], error) {
	r, err := t.attach(tx, key)
	if err != nil {
		return nil, err
	}
	return t.write(tx, r, rec)
}

func (t *Table[R]) write(tx *txn.Txn, r *row[R], rec *R) (*txn.Safe[R], error) {
	if r.deleted {
		if err := t.setDeleted(tx, r, false); err != nil {
			return nil, err
		}
	}
	var err error
	if rec == nil {
		err = r.safe.Reset()
	} else {
		err = r.safe.Assign(rec)
	}
	if err != nil {
		return nil, err
	}
	return r.safe, nil
}

// Delete removes key from the table when tx commits.
func (t *Table[R]) Delete(tx *txn.Txn, key string) error {
	r, err := t.attach(tx, key)
	if err != nil {
		return err
	}
	if r.deleted {
		return fmt.Errorf("%s %q: %w", t.name, key, ErrRecordNotFound)
	}
	return t.setDeleted(tx, r, true)
}

func (t *Table[R]) setDeleted(tx *txn.Txn, r *row[R], deleted bool) error {
	prev := r.deleted
	if err := tx.OnRollback(func() error {
		r.deleted = prev
		return nil
	}); err != nil {
		return err
	}
	r.deleted = deleted
	return nil
}

// flush writes r to the backend if the transaction changed it. The old
// bytes are put back if the transaction rolls back after the write.
func (t *Table[R]) flush(tx *txn.Txn, r *row[R]) func() error {
	return func() error {
		bkey := t.storageKey(r.key)

		var data []byte
		switch {
		case r.deleted && r.stored:
		case !r.deleted && r.safe.Dirty():
			body, err := r.safe.Encode()
			if err != nil {
				return err
			}
			data = codec.EncodeFrame(body)
		default:
			return nil
		}

		prev, err := t.backend.Get(bkey)
		if errors.Is(err, storage.ErrNotFound) {
			prev = nil
		} else if err != nil {
			return fmt.Errorf("%s %q: %w", t.name, r.key, err)
		}

		if data == nil {
			err = t.backend.Delete(bkey)
			t.metrics.inc(t.name, opDelete)
		} else {
			err = t.backend.Put(bkey, data)
			t.metrics.inc(t.name, opWrite)
		}
		if err != nil {
			return fmt.Errorf("%s %q: %w", t.name, r.key, err)
		}
		t.logger.Debug("flushed record", "txn", tx.ID(), "key", r.key, "deleted", data == nil)

		return tx.OnRollback(func() error {
			t.metrics.inc(t.name, opRestore)
			if prev == nil {
				return t.backend.Delete(bkey)
			}
			return t.backend.Put(bkey, prev)
		})
	}
}

// Load reads key outside of any transaction. The record is a private copy.
// Rows are flushed before a commit completes, so a reader that does not hold
// the key's procedure lock may see a write that is later rolled back.
func (t *Table[R]) Load(key string) (*Row[R], error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	return t.load(key)
}

func (t *Table[R]) load(key string) (*Row[R], error) {
	data, err := t.backend.Get(t.storageKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s %q: %w", t.name, key, ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	t.metrics.inc(t.name, opLoad)
	return t.decodeRow(key, data)
}

func (t *Table[R]) decodeRow(key string, data []byte) (*Row[R], error) {
	frame, err := codec.DecodeFrame(data)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", t.name, key, err)
	}
	rec := t.layout.New()
	if _, err := t.layout.Decode(frame.Body, rec); err != nil {
		return nil, fmt.Errorf("%s %q: %w", t.name, key, err)
	}
	return &Row[R]{Key: key, Record: rec, Modified: frame.Time()}, nil
}

// Scan calls fn for every record whose key starts with prefix, in key
// order, outside of any transaction. Like Load it takes no locks.
func (t *Table[R]) Scan(prefix string, fn func(*Row[R]) error) error {
	return t.backend.Scan(t.storageKey(prefix), func(k, v []byte) error {
		key := strings.TrimPrefix(string(k), t.prefix)
		row, err := t.decodeRow(key, v)
		if err != nil {
			return err
		}
		return fn(row)
	})
}

// List returns up to limit records whose key starts with prefix. A limit
// of 0 returns all of them.
func (t *Table[R]) List(prefix string, limit int) ([]*Row[R], error) {
	var rows []*Row[R]
	errLimit := errors.New("limit reached")
	err := t.Scan(prefix, func(r *Row[R]) error {
		rows = append(rows, r)
		if limit > 0 && len(rows) >= limit {
			return errLimit
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return nil, err
	}
	return rows, nil
}

// Stats walks the table and reports its size.
func (t *Table[R]) Stats() (*TableStats, error) {
	st := &TableStats{Table: t.name}
	err := t.backend.Scan(t.storageKey(""), func(k, v []byte) error {
		frame, err := codec.DecodeFrame(v)
		if err != nil {
			return fmt.Errorf("%s %q: %w", t.name, k, err)
		}
		st.Records++
		st.BodyBytes += int64(frame.BodySize)
		st.FrameBytes += int64(frame.Size())
		ts := frame.Time()
		if st.Oldest.IsZero() || ts.Before(st.Oldest) {
			st.Oldest = ts
		}
		if ts.After(st.Newest) {
			st.Newest = ts
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}
