package storage

import (
	"bytes"
	"errors"

	"github.com/cockroachdb/pebble"
)

// PebbleBackend stores beans in a pebble LSM tree.
type PebbleBackend struct {
	db   *pebble.DB
	sync *pebble.WriteOptions
}

func NewPebbleBackend(path string, syncWrites bool) (*PebbleBackend, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	wo := pebble.NoSync
	if syncWrites {
		wo = pebble.Sync
	}
	return &PebbleBackend{db: db, sync: wo}, nil
}

func (s *PebbleBackend) Get(key []byte) ([]byte, error) {
	data, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return bytes.Clone(data), nil
}

func (s *PebbleBackend) Put(key, value []byte) error {
	return s.db.Set(key, value, s.sync)
}

func (s *PebbleBackend) Delete(key []byte) error {
	return s.db.Delete(key, s.sync)
}

func (s *PebbleBackend) Scan(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(bytes.Clone(iter.Key()), bytes.Clone(iter.Value())); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *PebbleBackend) Close() error {
	return s.db.Close()
}

// prefixUpperBound returns the smallest key greater than every key with
// prefix, or nil if there is none.
func prefixUpperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
