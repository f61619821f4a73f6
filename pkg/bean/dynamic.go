package bean

import (
	"encoding/hex"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/ssargent/beanstore/pkg/codec"
)

// Dynamic is a bean decoded without a layout. Values are int64, []byte,
// Dynamic, float32, float64, []any (collections) or []Entry (maps).
type Dynamic map[int]any

// Entry is one key/value pair of a dynamically decoded map.
type Entry struct {
	Key   any
	Value any
}

// DecodeDynamic reads one body from the front of data.
func DecodeDynamic(data []byte) (Dynamic, int, error) {
	r := codec.NewReader(data)
	d, err := ReadDynamic(r)
	return d, r.Off(), err
}

func ReadDynamic(r *codec.Reader) (Dynamic, error) {
	d := Dynamic{}
	for {
		ordinal, hint, err := r.Tag()
		if err != nil {
			return nil, err
		}
		if ordinal == 0 {
			return d, nil
		}
		v, err := readVar(r, hint)
		if err != nil {
			return nil, err
		}
		d[ordinal] = v
	}
}

func readVar(r *codec.Reader, hint int) (any, error) {
	switch hint {
	case codec.HintInt:
		return r.Long()
	case codec.HintOctets:
		return r.Octets()
	case codec.HintBean:
		return ReadDynamic(r)
	default:
		sub, err := r.Byte()
		if err != nil {
			return nil, err
		}
		return readSub(r, int(sub))
	}
}

func readSub(r *codec.Reader, sub int) (any, error) {
	switch {
	case sub == codec.SubFloat:
		return r.Float32()
	case sub == codec.SubDouble:
		return r.Float64()
	case sub < 8:
		n, err := r.UInt()
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, min(n, 1024))
		for ; n > 0; n-- {
			v, err := readKV(r, sub&7)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case sub&codec.SubMap != 0 && sub < 0x80:
		n, err := r.UInt()
		if err != nil {
			return nil, err
		}
		out := make([]Entry, 0, min(n, 1024))
		for ; n > 0; n-- {
			k, err := readKV(r, (sub>>3)&7)
			if err != nil {
				return nil, err
			}
			v, err := readKV(r, sub&7)
			if err != nil {
				return nil, err
			}
			out = append(out, Entry{Key: k, Value: v})
		}
		return out, nil
	default:
		return nil, r.SkipSub(sub)
	}
}

func readKV(r *codec.Reader, kv int) (any, error) {
	switch kv {
	case codec.KVInt, codec.KVOctets, codec.KVBean:
		return readVar(r, kv)
	case codec.KVFloat:
		return r.Float32()
	case codec.KVDouble:
		return r.Float64()
	default:
		return nil, r.SkipKV(kv)
	}
}

// Encode writes d in ascending ordinal order. Values that are zero are
// elided, as a layout would.
func (d Dynamic) Encode() ([]byte, error) {
	w := codec.NewWriter(16)
	if err := d.EncodeTo(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (d Dynamic) EncodeTo(w *codec.Writer) error {
	for _, ordinal := range slices.Sorted(maps.Keys(d)) {
		if ordinal <= 0 {
			return fmt.Errorf("dynamic field %d: %w", ordinal, ErrReservedOrdinal)
		}
		if err := writeVar(w, ordinal, d[ordinal]); err != nil {
			return fmt.Errorf("dynamic field %d: %w", ordinal, err)
		}
	}
	w.Zero()
	return nil
}

func writeVar(w *codec.Writer, ordinal int, v any) error {
	switch x := v.(type) {
	case nil:
	case bool:
		if x {
			w.Tag(ordinal, codec.HintInt)
			w.Bool(x)
		}
	case int:
		if x != 0 {
			w.Tag(ordinal, codec.HintInt)
			w.Long(int64(x))
		}
	case int32:
		if x != 0 {
			w.Tag(ordinal, codec.HintInt)
			w.Long(int64(x))
		}
	case int64:
		if x != 0 {
			w.Tag(ordinal, codec.HintInt)
			w.Long(x)
		}
	case float32:
		if x != 0 {
			w.Tag(ordinal, codec.HintSub)
			w.Byte(codec.SubFloat)
			w.Float32(x)
		}
	case float64:
		if x != 0 {
			w.Tag(ordinal, codec.HintSub)
			w.Byte(codec.SubDouble)
			w.Float64(x)
		}
	case []byte:
		if len(x) > 0 {
			w.Tag(ordinal, codec.HintOctets)
			w.Octets(x)
		}
	case string:
		if x != "" {
			w.Tag(ordinal, codec.HintOctets)
			w.String(x)
		}
	case Dynamic:
		off := w.Len()
		w.Tag(ordinal, codec.HintBean)
		body := w.Len()
		if err := x.EncodeTo(w); err != nil {
			return err
		}
		if w.Len() == body+1 {
			w.Truncate(off)
		}
	case []any:
		if len(x) == 0 {
			return nil
		}
		kv, err := kvTypeOf(x[0])
		if err != nil {
			return err
		}
		w.Tag(ordinal, codec.HintSub)
		w.Byte(byte(kv))
		w.UInt(len(x))
		for _, e := range x {
			if err := writeKV(w, kv, e); err != nil {
				return err
			}
		}
	case []Entry:
		if len(x) == 0 {
			return nil
		}
		kt, err := kvTypeOf(x[0].Key)
		if err != nil {
			return err
		}
		vt, err := kvTypeOf(x[0].Value)
		if err != nil {
			return err
		}
		w.Tag(ordinal, codec.HintSub)
		w.Byte(byte(codec.SubMap | kt<<3 | vt))
		w.UInt(len(x))
		for _, e := range x {
			if err := writeKV(w, kt, e.Key); err != nil {
				return err
			}
			if err := writeKV(w, vt, e.Value); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported dynamic value %T", v)
	}
	return nil
}

func kvTypeOf(v any) (int, error) {
	switch v.(type) {
	case bool, int, int32, int64:
		return codec.KVInt, nil
	case []byte, string:
		return codec.KVOctets, nil
	case Dynamic:
		return codec.KVBean, nil
	case float32:
		return codec.KVFloat, nil
	case float64:
		return codec.KVDouble, nil
	default:
		return 0, fmt.Errorf("unsupported dynamic element %T", v)
	}
}

func writeKV(w *codec.Writer, kv int, v any) error {
	got, err := kvTypeOf(v)
	if err != nil {
		return err
	}
	if got != kv {
		return fmt.Errorf("mixed element types in collection: %T", v)
	}
	switch x := v.(type) {
	case bool:
		w.Bool(x)
	case int:
		w.Long(int64(x))
	case int32:
		w.Long(int64(x))
	case int64:
		w.Long(x)
	case []byte:
		w.Octets(x)
	case string:
		w.String(x)
	case Dynamic:
		return x.EncodeTo(w)
	case float32:
		w.Float32(x)
	case float64:
		w.Float64(x)
	}
	return nil
}

// Export converts d into plain maps and slices keyed by ordinal, for JSON,
// YAML or msgpack output. Octets that are valid UTF-8 become strings,
// others become hex.
func (d Dynamic) Export() map[string]any {
	out := make(map[string]any, len(d))
	for ordinal, v := range d {
		out[strconv.Itoa(ordinal)] = exportDynamic(v)
	}
	return out
}

func exportDynamic(v any) any {
	switch x := v.(type) {
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		return "0x" + hex.EncodeToString(x)
	case Dynamic:
		return x.Export()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = exportDynamic(e)
		}
		return out
	case []Entry:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[fmt.Sprint(exportDynamic(e.Key))] = exportDynamic(e.Value)
		}
		return out
	case float32:
		if math.IsInf(float64(x), 0) || math.IsNaN(float64(x)) {
			return fmt.Sprint(x)
		}
		return x
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return fmt.Sprint(x)
		}
		return x
	default:
		return v
	}
}
