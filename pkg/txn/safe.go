package txn

import (
	"github.com/ssargent/beanstore/pkg/bean"
)

// Safe is the gated handle to one record inside one transaction.
type Safe[R any] struct {
	txn     *Txn
	layout  *bean.Layout[R]
	rec     *R
	dirty   bool
	onDirty func()
}

// Wrap attaches rec to t. The handle is usable only while t is live.
func Wrap[R any](t *Txn, l *bean.Layout[R], rec *R) *Safe[R] {
	return &Safe[R]{txn: t, layout: l, rec: rec}
}

func (s *Safe[R]) Txn() *Txn {
	return s.txn
}

func (s *Safe[R]) Layout() *bean.Layout[R] {
	return s.layout
}

func (s *Safe[R]) check() error {
	if s == nil {
		return ErrNotLocked
	}
	return s.txn.check()
}

// Dirty reports whether the record was written through this handle.
func (s *Safe[R]) Dirty() bool {
	return s.dirty
}

// DirtyAndClear reports and resets the dirty flag.
func (s *Safe[R]) DirtyAndClear() bool {
	d := s.dirty
	s.dirty = false
	return d
}

// OnDirty sets fn to run the first time the record becomes dirty.
func (s *Safe[R]) OnDirty(fn func()) {
	s.onDirty = fn
}

func (s *Safe[R]) markDirty() {
	s.dirty = true
	if fn := s.onDirty; fn != nil {
		s.onDirty = nil
		fn()
	}
}

// Get reads field f. The value is a copy; mutating it does not touch the
// record.
func Get[R, V any](s *Safe[R], f *bean.Field[R, V]) (V, error) {
	if err := s.check(); err != nil {
		var zero V
		return zero, err
	}
	return f.Codec().Clone(f.Get(s.rec)), nil
}

// Set writes field f. The first write to f in the transaction journals the
// previous value; later writes to f do not.
func Set[R, V any](s *Safe[R], f *bean.Field[R, V], v V) error {
	if err := s.check(); err != nil {
		return err
	}
	err := s.txn.journalField(s.rec, s.layout, f.Ordinal(), func() (any, error) {
		return s.layout.Snapshot(s.rec, f.Ordinal())
	})
	if err != nil {
		return err
	}
	f.Set(s.rec, v)
	s.markDirty()
	return nil
}

// Modify applies fn to a copy of field f and stores the result, journaling
// like Set. Use it to change collections and nested records in place.
func Modify[R, V any](s *Safe[R], f *bean.Field[R, V], fn func(v *V)) error {
	if err := s.check(); err != nil {
		return err
	}
	v := f.Codec().Clone(f.Get(s.rec))
	fn(&v)
	return Set(s, f, v)
}

// Reset sets every field to its default, journaling the whole record.
func (s *Safe[R]) Reset() error {
	if err := s.check(); err != nil {
		return err
	}
	s.fullUndo()
	s.layout.Reset(s.rec)
	s.markDirty()
	return nil
}

// Assign replaces every field with a deep copy of src.
func (s *Safe[R]) Assign(src *R) error {
	if err := s.check(); err != nil {
		return err
	}
	if src == s.rec {
		return nil
	}
	s.fullUndo()
	if src == nil {
		s.layout.Reset(s.rec)
	} else {
		s.layout.CopyTo(s.rec, src)
	}
	s.markDirty()
	return nil
}

// Decode replaces the record with the body in data.
func (s *Safe[R]) Decode(data []byte) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	s.fullUndo()
	s.markDirty()
	return s.layout.Decode(data, s.rec)
}

func (s *Safe[R]) Encode() ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.layout.Encode(s.rec), nil
}

// Clone returns a detached deep copy of the record.
func (s *Safe[R]) Clone() (*R, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.layout.Clone(s.rec), nil
}

func (s *Safe[R]) String() string {
	if err := s.check(); err != nil {
		return "<" + err.Error() + ">"
	}
	return s.layout.String(s.rec)
}

func (s *Safe[R]) fullUndo() {
	s.txn.journalRecord(s.rec, s.layout, func() any {
		return s.layout.Clone(s.rec)
	})
}

// Unsafe returns the record without any check. Callers must not write
// through it inside a transaction.
func (s *Safe[R]) Unsafe() *R {
	return s.rec
}
