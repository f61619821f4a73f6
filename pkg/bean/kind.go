package bean

import (
	"bytes"
	"cmp"
	"fmt"
	"strconv"

	"github.com/ssargent/beanstore/pkg/codec"
)

// Kind is the declared type of a field.
type Kind int

const (
	KindBool Kind = iota + 1
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindBytes
	KindString
	KindRecord
	KindList
	KindSet
	KindMap
)

var kindNames = map[Kind]string{
	KindBool:    "bool",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindBytes:   "bytes",
	KindString:  "string",
	KindRecord:  "record",
	KindList:    "list",
	KindSet:     "set",
	KindMap:     "map",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Codec reads and writes values of one kind. Implementations are the
// constructors in this package; the set is closed.
type Codec[V any] interface {
	Kind() Kind
	// Hint is the tag hint used when the value is a field.
	Hint() int
	// KV is the element type used when the value sits inside a collection,
	// or -1 if it cannot.
	KV() int
	Zero() V
	IsZero(v V) bool
	// Put writes the value that follows a tag.
	Put(w *codec.Writer, v V)
	// PutKV writes the value as a collection element.
	PutKV(w *codec.Writer, v V)
	// Get reads a value framed by hint. Values of a compatible kind are
	// converted; others are skipped and yield Zero.
	Get(r *codec.Reader, hint int) (V, error)
	GetKV(r *codec.Reader, kv int) (V, error)
	Clone(v V) V
	Equal(a, b V) bool
	Compare(a, b V) int
	// Export returns a plain value suitable for JSON or YAML output.
	Export(v V) any
}

type boolCodec struct{}

// Bool encodes as the integer 0 or 1.
func Bool() Codec[bool] { return boolCodec{} }

func (boolCodec) Kind() Kind                    { return KindBool }
func (boolCodec) Hint() int                     { return codec.HintInt }
func (boolCodec) KV() int                       { return codec.KVInt }
func (boolCodec) Zero() bool                    { return false }
func (boolCodec) IsZero(v bool) bool            { return !v }
func (boolCodec) Clone(v bool) bool             { return v }
func (boolCodec) Equal(a, b bool) bool          { return a == b }
func (boolCodec) Export(v bool) any             { return v }
func (boolCodec) Put(w *codec.Writer, v bool)   { w.Bool(v) }
func (boolCodec) PutKV(w *codec.Writer, v bool) { w.Bool(v) }

func (boolCodec) Compare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

func (boolCodec) Get(r *codec.Reader, hint int) (bool, error) {
	v, err := getNumber(r, hint)
	return v != 0, err
}

func (boolCodec) GetKV(r *codec.Reader, kv int) (bool, error) {
	v, err := getNumberKV(r, kv)
	return v != 0, err
}

type integer interface {
	~int32 | ~int64
}

type intCodec[T integer] struct {
	kind Kind
}

func Int32() Codec[int32] { return intCodec[int32]{kind: KindInt32} }
func Int64() Codec[int64] { return intCodec[int64]{kind: KindInt64} }

func (c intCodec[T]) Kind() Kind               { return c.kind }
func (intCodec[T]) Hint() int                  { return codec.HintInt }
func (intCodec[T]) KV() int                    { return codec.KVInt }
func (intCodec[T]) Zero() T                    { return 0 }
func (intCodec[T]) IsZero(v T) bool            { return v == 0 }
func (intCodec[T]) Clone(v T) T                { return v }
func (intCodec[T]) Equal(a, b T) bool          { return a == b }
func (intCodec[T]) Compare(a, b T) int         { return cmp.Compare(a, b) }
func (intCodec[T]) Export(v T) any             { return v }
func (intCodec[T]) Put(w *codec.Writer, v T)   { w.Long(int64(v)) }
func (intCodec[T]) PutKV(w *codec.Writer, v T) { w.Long(int64(v)) }

func (intCodec[T]) Get(r *codec.Reader, hint int) (T, error) {
	v, err := getNumber(r, hint)
	return T(v), err
}

func (intCodec[T]) GetKV(r *codec.Reader, kv int) (T, error) {
	v, err := getNumberKV(r, kv)
	return T(v), err
}

// getNumber reads an integer field, truncating float and double values.
func getNumber(r *codec.Reader, hint int) (int64, error) {
	switch hint {
	case codec.HintInt:
		return r.Long()
	case codec.HintSub:
		sub, err := r.Byte()
		if err != nil {
			return 0, err
		}
		switch sub {
		case codec.SubFloat:
			f, err := r.Float32()
			return int64(f), err
		case codec.SubDouble:
			d, err := r.Float64()
			return int64(d), err
		}
		return 0, r.SkipSub(int(sub))
	}
	return 0, r.SkipVar(hint)
}

func getNumberKV(r *codec.Reader, kv int) (int64, error) {
	switch kv {
	case codec.KVInt:
		return r.Long()
	case codec.KVFloat:
		f, err := r.Float32()
		return int64(f), err
	case codec.KVDouble:
		d, err := r.Float64()
		return int64(d), err
	}
	return 0, r.SkipKV(kv)
}

type float32Codec struct{}

func Float32() Codec[float32] { return float32Codec{} }

func (float32Codec) Kind() Kind                       { return KindFloat32 }
func (float32Codec) Hint() int                        { return codec.HintSub }
func (float32Codec) KV() int                          { return codec.KVFloat }
func (float32Codec) Zero() float32                    { return 0 }
func (float32Codec) IsZero(v float32) bool            { return v == 0 }
func (float32Codec) Clone(v float32) float32          { return v }
func (float32Codec) Equal(a, b float32) bool          { return a == b }
func (float32Codec) Compare(a, b float32) int         { return cmp.Compare(a, b) }
func (float32Codec) Export(v float32) any             { return v }
func (float32Codec) PutKV(w *codec.Writer, v float32) { w.Float32(v) }

func (float32Codec) Put(w *codec.Writer, v float32) {
	w.Byte(codec.SubFloat)
	w.Float32(v)
}

func (float32Codec) Get(r *codec.Reader, hint int) (float32, error) {
	v, err := getReal(r, hint)
	return float32(v), err
}

func (float32Codec) GetKV(r *codec.Reader, kv int) (float32, error) {
	v, err := getRealKV(r, kv)
	return float32(v), err
}

type float64Codec struct{}

func Float64() Codec[float64] { return float64Codec{} }

func (float64Codec) Kind() Kind                       { return KindFloat64 }
func (float64Codec) Hint() int                        { return codec.HintSub }
func (float64Codec) KV() int                          { return codec.KVDouble }
func (float64Codec) Zero() float64                    { return 0 }
func (float64Codec) IsZero(v float64) bool            { return v == 0 }
func (float64Codec) Clone(v float64) float64          { return v }
func (float64Codec) Equal(a, b float64) bool          { return a == b }
func (float64Codec) Compare(a, b float64) int         { return cmp.Compare(a, b) }
func (float64Codec) Export(v float64) any             { return v }
func (float64Codec) PutKV(w *codec.Writer, v float64) { w.Float64(v) }

func (float64Codec) Put(w *codec.Writer, v float64) {
	w.Byte(codec.SubDouble)
	w.Float64(v)
}

func (float64Codec) Get(r *codec.Reader, hint int) (float64, error) {
	return getReal(r, hint)
}

func (float64Codec) GetKV(r *codec.Reader, kv int) (float64, error) {
	return getRealKV(r, kv)
}

// getReal reads a float or double field, widening integers.
func getReal(r *codec.Reader, hint int) (float64, error) {
	switch hint {
	case codec.HintSub:
		sub, err := r.Byte()
		if err != nil {
			return 0, err
		}
		switch sub {
		case codec.SubFloat:
			f, err := r.Float32()
			return float64(f), err
		case codec.SubDouble:
			return r.Float64()
		}
		return 0, r.SkipSub(int(sub))
	case codec.HintInt:
		v, err := r.Long()
		return float64(v), err
	}
	return 0, r.SkipVar(hint)
}

func getRealKV(r *codec.Reader, kv int) (float64, error) {
	switch kv {
	case codec.KVFloat:
		f, err := r.Float32()
		return float64(f), err
	case codec.KVDouble:
		return r.Float64()
	case codec.KVInt:
		v, err := r.Long()
		return float64(v), err
	}
	return 0, r.SkipKV(kv)
}

type bytesCodec struct{}

// Bytes is a length-delimited octet string. Nil and empty are both default.
func Bytes() Codec[[]byte] { return bytesCodec{} }

func (bytesCodec) Kind() Kind                      { return KindBytes }
func (bytesCodec) Hint() int                       { return codec.HintOctets }
func (bytesCodec) KV() int                         { return codec.KVOctets }
func (bytesCodec) Zero() []byte                    { return nil }
func (bytesCodec) IsZero(v []byte) bool            { return len(v) == 0 }
func (bytesCodec) Equal(a, b []byte) bool          { return bytes.Equal(a, b) }
func (bytesCodec) Compare(a, b []byte) int         { return bytes.Compare(a, b) }
func (bytesCodec) Export(v []byte) any             { return v }
func (bytesCodec) Put(w *codec.Writer, v []byte)   { w.Octets(v) }
func (bytesCodec) PutKV(w *codec.Writer, v []byte) { w.Octets(v) }

func (bytesCodec) Clone(v []byte) []byte {
	if len(v) == 0 {
		return nil
	}
	return bytes.Clone(v)
}

func (bytesCodec) Get(r *codec.Reader, hint int) ([]byte, error) {
	if hint == codec.HintOctets {
		return r.Octets()
	}
	return nil, r.SkipVar(hint)
}

func (bytesCodec) GetKV(r *codec.Reader, kv int) ([]byte, error) {
	if kv == codec.KVOctets {
		return r.Octets()
	}
	return nil, r.SkipKV(kv)
}

type stringCodec struct{}

// String is a UTF-8 octet string. Numeric values are accepted and formatted.
func String() Codec[string] { return stringCodec{} }

func (stringCodec) Kind() Kind                      { return KindString }
func (stringCodec) Hint() int                       { return codec.HintOctets }
func (stringCodec) KV() int                         { return codec.KVOctets }
func (stringCodec) Zero() string                    { return "" }
func (stringCodec) IsZero(v string) bool            { return v == "" }
func (stringCodec) Clone(v string) string           { return v }
func (stringCodec) Equal(a, b string) bool          { return a == b }
func (stringCodec) Compare(a, b string) int         { return cmp.Compare(a, b) }
func (stringCodec) Export(v string) any             { return v }
func (stringCodec) Put(w *codec.Writer, v string)   { w.String(v) }
func (stringCodec) PutKV(w *codec.Writer, v string) { w.String(v) }

func (stringCodec) Get(r *codec.Reader, hint int) (string, error) {
	switch hint {
	case codec.HintOctets:
		return r.String()
	case codec.HintInt:
		v, err := r.Long()
		return strconv.FormatInt(v, 10), err
	case codec.HintSub:
		sub, err := r.Byte()
		if err != nil {
			return "", err
		}
		switch sub {
		case codec.SubFloat:
			f, err := r.Float32()
			return strconv.FormatFloat(float64(f), 'g', -1, 32), err
		case codec.SubDouble:
			d, err := r.Float64()
			return strconv.FormatFloat(d, 'g', -1, 64), err
		}
		return "", r.SkipSub(int(sub))
	}
	return "", r.SkipVar(hint)
}

func (stringCodec) GetKV(r *codec.Reader, kv int) (string, error) {
	switch kv {
	case codec.KVOctets:
		return r.String()
	case codec.KVInt:
		v, err := r.Long()
		return strconv.FormatInt(v, 10), err
	case codec.KVFloat:
		f, err := r.Float32()
		return strconv.FormatFloat(float64(f), 'g', -1, 32), err
	case codec.KVDouble:
		d, err := r.Float64()
		return strconv.FormatFloat(d, 'g', -1, 64), err
	}
	return "", r.SkipKV(kv)
}

func kindMismatch(want Kind, got any) error {
	return fmt.Errorf("expected %v value, got %T", want, got)
}
