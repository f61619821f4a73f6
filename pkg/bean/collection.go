package bean

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/ssargent/beanstore/pkg/codec"
)

type recordCodec[C any] struct {
	layout *Layout[C]
}

// Record nests a bean of layout l. The nested body carries its own
// terminator, so it needs no length prefix.
func Record[C any](l *Layout[C]) Codec[C] {
	return recordCodec[C]{layout: l}
}

func (recordCodec[C]) Kind() Kind { return KindRecord }
func (recordCodec[C]) Hint() int  { return codec.HintBean }
func (recordCodec[C]) KV() int    { return codec.KVBean }

func (c recordCodec[C]) Zero() C {
	var v C
	c.layout.Reset(&v)
	return v
}

func (c recordCodec[C]) IsZero(v C) bool {
	return c.layout.IsDefault(&v)
}

func (c recordCodec[C]) Put(w *codec.Writer, v C) {
	c.layout.EncodeTo(w, &v)
}

func (c recordCodec[C]) PutKV(w *codec.Writer, v C) {
	c.layout.EncodeTo(w, &v)
}

func (c recordCodec[C]) Get(r *codec.Reader, hint int) (C, error) {
	v := c.Zero()
	if hint != codec.HintBean {
		return v, r.SkipVar(hint)
	}
	err := c.layout.DecodeFrom(r, &v)
	return v, err
}

func (c recordCodec[C]) GetKV(r *codec.Reader, kv int) (C, error) {
	v := c.Zero()
	if kv != codec.KVBean {
		return v, r.SkipKV(kv)
	}
	err := c.layout.DecodeFrom(r, &v)
	return v, err
}

func (c recordCodec[C]) Clone(v C) C {
	var out C
	c.layout.CopyTo(&out, &v)
	return out
}

func (c recordCodec[C]) Equal(a, b C) bool  { return c.layout.Equal(&a, &b) }
func (c recordCodec[C]) Compare(a, b C) int { return c.layout.Compare(&a, &b) }
func (c recordCodec[C]) Export(v C) any     { return c.layout.Export(&v) }

type listCodec[E any] struct {
	elem Codec[E]
}

// List is an ordered collection. Elements must be scalars or records.
func List[E any](elem Codec[E]) Codec[[]E] {
	mustElement(elem)
	return listCodec[E]{elem: elem}
}

func mustElement[E any](c Codec[E]) {
	if c.KV() < 0 {
		panic(fmt.Sprintf("bean: %v cannot be a collection element", c.Kind()))
	}
}

func (listCodec[E]) Kind() Kind        { return KindList }
func (listCodec[E]) Hint() int         { return codec.HintSub }
func (listCodec[E]) KV() int           { return -1 }
func (listCodec[E]) Zero() []E         { return nil }
func (listCodec[E]) IsZero(v []E) bool { return len(v) == 0 }

func (c listCodec[E]) Put(w *codec.Writer, v []E) {
	w.Byte(byte(c.elem.KV()))
	w.UInt(len(v))
	for _, e := range v {
		c.elem.PutKV(w, e)
	}
}

func (c listCodec[E]) PutKV(w *codec.Writer, v []E) {
	panic("bean: list cannot be a collection element")
}

func (c listCodec[E]) Get(r *codec.Reader, hint int) ([]E, error) {
	kv, n, ok, err := readCollectionHeader(r, hint)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]E, 0, min(n, 1024))
	for ; n > 0; n-- {
		e, err := c.elem.GetKV(r, kv)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (c listCodec[E]) GetKV(r *codec.Reader, kv int) ([]E, error) {
	return nil, r.SkipKV(kv)
}

func (c listCodec[E]) Clone(v []E) []E {
	if len(v) == 0 {
		return nil
	}
	out := make([]E, len(v))
	for i, e := range v {
		out[i] = c.elem.Clone(e)
	}
	return out
}

func (c listCodec[E]) Equal(a, b []E) bool {
	return slices.EqualFunc(a, b, c.elem.Equal)
}

func (c listCodec[E]) Compare(a, b []E) int {
	return slices.CompareFunc(a, b, c.elem.Compare)
}

func (c listCodec[E]) Export(v []E) any {
	out := make([]any, len(v))
	for i, e := range v {
		out[i] = c.elem.Export(e)
	}
	return out
}

// readCollectionHeader reads the subtype and count of a collection. ok is
// false when the value was something else and has been skipped.
func readCollectionHeader(r *codec.Reader, hint int) (kv int, n int, ok bool, err error) {
	if hint != codec.HintSub {
		return 0, 0, false, r.SkipVar(hint)
	}
	sub, err := r.Byte()
	if err != nil {
		return 0, 0, false, err
	}
	if sub >= 8 {
		return 0, 0, false, r.SkipSub(int(sub))
	}
	n, err = r.UInt()
	if err != nil {
		return 0, 0, false, err
	}
	return int(sub & 7), n, true, nil
}

type setCodec[E comparable] struct {
	elem Codec[E]
}

// Set is an unordered collection of distinct elements. Elements are
// written in ascending order of their encoded bytes.
func Set[E comparable](elem Codec[E]) Codec[map[E]struct{}] {
	mustElement(elem)
	return setCodec[E]{elem: elem}
}

func (setCodec[E]) Kind() Kind                   { return KindSet }
func (setCodec[E]) Hint() int                    { return codec.HintSub }
func (setCodec[E]) KV() int                      { return -1 }
func (setCodec[E]) Zero() map[E]struct{}         { return nil }
func (setCodec[E]) IsZero(v map[E]struct{}) bool { return len(v) == 0 }

func (c setCodec[E]) sorted(v map[E]struct{}) []sortedEntry[E, struct{}] {
	out := make([]sortedEntry[E, struct{}], 0, len(v))
	for e := range v {
		w := codec.NewWriter(8)
		c.elem.PutKV(w, e)
		out = append(out, sortedEntry[E, struct{}]{key: e, enc: w.Bytes()})
	}
	slices.SortFunc(out, func(a, b sortedEntry[E, struct{}]) int { return bytes.Compare(a.enc, b.enc) })
	return out
}

func (c setCodec[E]) Put(w *codec.Writer, v map[E]struct{}) {
	w.Byte(byte(c.elem.KV()))
	w.UInt(len(v))
	for _, e := range c.sorted(v) {
		w.Raw(e.enc)
	}
}

func (c setCodec[E]) PutKV(w *codec.Writer, v map[E]struct{}) {
	panic("bean: set cannot be a collection element")
}

func (c setCodec[E]) Get(r *codec.Reader, hint int) (map[E]struct{}, error) {
	kv, n, ok, err := readCollectionHeader(r, hint)
	if err != nil || !ok || n == 0 {
		return nil, err
	}
	out := make(map[E]struct{}, min(n, 1024))
	for ; n > 0; n-- {
		e, err := c.elem.GetKV(r, kv)
		if err != nil {
			return nil, err
		}
		out[e] = struct{}{}
	}
	return out, nil
}

func (c setCodec[E]) GetKV(r *codec.Reader, kv int) (map[E]struct{}, error) {
	return nil, r.SkipKV(kv)
}

func (c setCodec[E]) Clone(v map[E]struct{}) map[E]struct{} {
	if len(v) == 0 {
		return nil
	}
	out := make(map[E]struct{}, len(v))
	for e := range v {
		out[c.elem.Clone(e)] = struct{}{}
	}
	return out
}

func (c setCodec[E]) Equal(a, b map[E]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for e := range a {
		if _, ok := b[e]; !ok {
			return false
		}
	}
	return true
}

func (c setCodec[E]) Compare(a, b map[E]struct{}) int {
	sa, sb := c.sorted(a), c.sorted(b)
	return slices.CompareFunc(sa, sb, func(x, y sortedEntry[E, struct{}]) int { return bytes.Compare(x.enc, y.enc) })
}

func (c setCodec[E]) Export(v map[E]struct{}) any {
	out := make([]any, 0, len(v))
	for _, e := range c.sorted(v) {
		out = append(out, c.elem.Export(e.key))
	}
	return out
}

type sortedEntry[K any, V any] struct {
	key K
	val V
	enc []byte
}

type mapCodec[K comparable, V any] struct {
	key Codec[K]
	val Codec[V]
}

// Map is a keyed collection. Entries are written in ascending order of
// their encoded keys.
func Map[K comparable, V any](key Codec[K], val Codec[V]) Codec[map[K]V] {
	mustElement(key)
	mustElement(val)
	return mapCodec[K, V]{key: key, val: val}
}

func (mapCodec[K, V]) Kind() Kind            { return KindMap }
func (mapCodec[K, V]) Hint() int             { return codec.HintSub }
func (mapCodec[K, V]) KV() int               { return -1 }
func (mapCodec[K, V]) Zero() map[K]V         { return nil }
func (mapCodec[K, V]) IsZero(v map[K]V) bool { return len(v) == 0 }

func (c mapCodec[K, V]) sorted(v map[K]V) []sortedEntry[K, V] {
	out := make([]sortedEntry[K, V], 0, len(v))
	for k, val := range v {
		w := codec.NewWriter(8)
		c.key.PutKV(w, k)
		out = append(out, sortedEntry[K, V]{key: k, val: val, enc: w.Bytes()})
	}
	slices.SortFunc(out, func(a, b sortedEntry[K, V]) int { return bytes.Compare(a.enc, b.enc) })
	return out
}

func (c mapCodec[K, V]) Put(w *codec.Writer, v map[K]V) {
	w.Byte(byte(codec.SubMap | c.key.KV()<<3 | c.val.KV()))
	w.UInt(len(v))
	for _, e := range c.sorted(v) {
		w.Raw(e.enc)
		c.val.PutKV(w, e.val)
	}
}

func (c mapCodec[K, V]) PutKV(w *codec.Writer, v map[K]V) {
	panic("bean: map cannot be a collection element")
}

func (c mapCodec[K, V]) Get(r *codec.Reader, hint int) (map[K]V, error) {
	if hint != codec.HintSub {
		return nil, r.SkipVar(hint)
	}
	sub, err := r.Byte()
	if err != nil {
		return nil, err
	}
	if sub&codec.SubMap == 0 || sub >= 0x80 {
		return nil, r.SkipSub(int(sub))
	}
	kt, vt := int(sub>>3)&7, int(sub)&7
	n, err := r.UInt()
	if err != nil || n == 0 {
		return nil, err
	}
	out := make(map[K]V, min(n, 1024))
	for ; n > 0; n-- {
		k, err := c.key.GetKV(r, kt)
		if err != nil {
			return nil, err
		}
		v, err := c.val.GetKV(r, vt)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (c mapCodec[K, V]) GetKV(r *codec.Reader, kv int) (map[K]V, error) {
	return nil, r.SkipKV(kv)
}

func (c mapCodec[K, V]) Clone(v map[K]V) map[K]V {
	if len(v) == 0 {
		return nil
	}
	out := make(map[K]V, len(v))
	for k, val := range v {
		out[c.key.Clone(k)] = c.val.Clone(val)
	}
	return out
}

func (c mapCodec[K, V]) Equal(a, b map[K]V) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !c.val.Equal(av, bv) {
			return false
		}
	}
	return true
}

func (c mapCodec[K, V]) Compare(a, b map[K]V) int {
	sa, sb := c.sorted(a), c.sorted(b)
	return slices.CompareFunc(sa, sb, func(x, y sortedEntry[K, V]) int {
		if r := bytes.Compare(x.enc, y.enc); r != 0 {
			return r
		}
		return c.val.Compare(x.val, y.val)
	})
}

func (c mapCodec[K, V]) Export(v map[K]V) any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[fmt.Sprint(c.key.Export(k))] = c.val.Export(val)
	}
	return out
}
