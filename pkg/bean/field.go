package bean

import (
	"github.com/ssargent/beanstore/pkg/codec"
)

// Slot is a type-erased field of records of type R. Only *Field implements it.
type Slot[R any] interface {
	Ordinal() int
	Name() string
	Kind() Kind

	isDefault(rec *R) bool
	encode(w *codec.Writer, rec *R)
	decode(r *codec.Reader, hint int, rec *R) error
	reset(rec *R)
	copyTo(dst, src *R)
	equal(a, b *R) bool
	compare(a, b *R) int
	export(rec *R) any
	snapshot(rec *R) any
	restore(rec *R, prev any) error
}

// Field addresses one slot of R through a getter/setter pair.
type Field[R any, V any] struct {
	ordinal int
	name    string
	codec   Codec[V]
	get     func(*R) V
	set     func(*R, V)
}

// NewField describes the slot at ordinal. get and set must touch only that slot.
func NewField[R any, V any](ordinal int, name string, c Codec[V], get func(*R) V, set func(*R, V)) *Field[R, V] {
	return &Field[R, V]{ordinal: ordinal, name: name, codec: c, get: get, set: set}
}

func (f *Field[R, V]) Ordinal() int    { return f.ordinal }
func (f *Field[R, V]) Name() string    { return f.name }
func (f *Field[R, V]) Kind() Kind      { return f.codec.Kind() }
func (f *Field[R, V]) Codec() Codec[V] { return f.codec }

// Get returns the current value without copying.
func (f *Field[R, V]) Get(rec *R) V {
	return f.get(rec)
}

func (f *Field[R, V]) Set(rec *R, v V) {
	f.set(rec, v)
}

func (f *Field[R, V]) isDefault(rec *R) bool {
	return f.codec.IsZero(f.get(rec))
}

func (f *Field[R, V]) encode(w *codec.Writer, rec *R) {
	v := f.get(rec)
	if f.codec.IsZero(v) {
		return
	}
	w.Tag(f.ordinal, f.codec.Hint())
	f.codec.Put(w, v)
}

func (f *Field[R, V]) decode(r *codec.Reader, hint int, rec *R) error {
	v, err := f.codec.Get(r, hint)
	if err != nil {
		return err
	}
	f.set(rec, v)
	return nil
}

func (f *Field[R, V]) reset(rec *R) {
	f.set(rec, f.codec.Zero())
}

func (f *Field[R, V]) copyTo(dst, src *R) {
	f.set(dst, f.codec.Clone(f.get(src)))
}

func (f *Field[R, V]) equal(a, b *R) bool {
	return f.codec.Equal(f.get(a), f.get(b))
}

func (f *Field[R, V]) compare(a, b *R) int {
	return f.codec.Compare(f.get(a), f.get(b))
}

func (f *Field[R, V]) export(rec *R) any {
	return f.codec.Export(f.get(rec))
}

func (f *Field[R, V]) snapshot(rec *R) any {
	return f.codec.Clone(f.get(rec))
}

func (f *Field[R, V]) restore(rec *R, prev any) error {
	v, ok := prev.(V)
	if !ok {
		return kindMismatch(f.codec.Kind(), prev)
	}
	f.set(rec, v)
	return nil
}
