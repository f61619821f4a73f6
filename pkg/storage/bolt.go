package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var beansBucket = []byte("beans")

// BoltBackend stores beans in a single bbolt bucket.
type BoltBackend struct {
	db *bbolt.DB
}

func NewBoltBackend(path string) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}

	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	bopt.FreelistType = bbolt.FreelistMapType

	db, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(beansBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltBackend{db: db}, nil
}

func (s *BoltBackend) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(beansBucket).Get(key)
		if v == nil {
			return ErrNotFound
		}
		value = bytes.Clone(v)
		return nil
	})
	return value, mapBoltErr(err)
}

func (s *BoltBackend) Put(key, value []byte) error {
	return mapBoltErr(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(beansBucket).Put(key, value)
	}))
}

func (s *BoltBackend) Delete(key []byte) error {
	return mapBoltErr(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(beansBucket).Delete(key)
	}))
}

func (s *BoltBackend) Scan(prefix []byte, fn func(key, value []byte) error) error {
	return mapBoltErr(s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(beansBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if err := fn(bytes.Clone(k), bytes.Clone(v)); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (s *BoltBackend) Close() error {
	return s.db.Close()
}

func mapBoltErr(err error) error {
	if err == bbolt.ErrDatabaseNotOpen {
		return ErrClosed
	}
	return err
}
