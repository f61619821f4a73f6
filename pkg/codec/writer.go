package codec

import (
	"encoding/binary"
	"math"
)

// Tag hints, stored in the low two bits of a tag byte.
const (
	HintInt    = 0
	HintOctets = 1
	HintBean   = 2
	HintSub    = 3
)

// KV types describe collection elements and map keys/values.
const (
	KVInt    = 0
	KVOctets = 1
	KVBean   = 2
	KVFloat  = 4
	KVDouble = 5
)

// Subtypes following a HintSub tag.
const (
	SubFloat  = 8
	SubDouble = 9
	SubMap    = 0x40
)

// MaxInlineOrdinal is the largest ordinal that fits in the tag byte itself.
const MaxInlineOrdinal = 62

const ordinalSentinel = 63

// Writer appends encoded values to Buf.
type Writer struct {
	Buf []byte
}

// NewWriter returns a Writer with room for capacity bytes.
func NewWriter(capacity int) *Writer {
	return &Writer{Buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded bytes. The slice aliases the Writer's buffer.
func (w *Writer) Bytes() []byte {
	return w.Buf
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return len(w.Buf)
}

// Truncate drops everything written after off.
func (w *Writer) Truncate(off int) {
	w.Buf = w.Buf[:off]
}

// Byte writes a single raw byte.
func (w *Writer) Byte(b byte) {
	w.Buf = append(w.Buf, b)
}

// Raw writes p verbatim.
func (w *Writer) Raw(p []byte) {
	w.Buf = append(w.Buf, p...)
}

// Zero writes the terminator.
func (w *Writer) Zero() {
	w.Buf = append(w.Buf, 0)
}

// Tag writes a field tag. Ordinals above MaxInlineOrdinal spill into
// continuation bytes.
func (w *Writer) Tag(ordinal int, hint int) {
	if ordinal <= MaxInlineOrdinal {
		w.Buf = append(w.Buf, byte(ordinal<<2|hint&3))
		return
	}
	w.Buf = append(w.Buf, byte(ordinalSentinel<<2|hint&3))
	rest := ordinal - ordinalSentinel
	for rest >= 0xff {
		w.Buf = append(w.Buf, 0xff)
		rest -= 0xff
	}
	w.Buf = append(w.Buf, byte(rest))
}

// Bool writes b as the integer 0 or 1.
func (w *Writer) Bool(b bool) {
	if b {
		w.Buf = append(w.Buf, 1)
	} else {
		w.Buf = append(w.Buf, 0)
	}
}

// Int writes x in the compact integer form.
func (w *Writer) Int(x int32) {
	w.Long(int64(x))
}

// Long writes x using the smallest width that represents it.
func (w *Writer) Long(x int64) {
	if x >= 0 {
		switch {
		case x < 0x40:
			w.be(uint64(x), 1)
		case x < 0x2000:
			w.be(uint64(x+0x4000), 2)
		case x < 0x100000:
			w.be(uint64(x+0x600000), 3)
		case x < 0x8000000:
			w.be(uint64(x+0x70000000), 4)
		case x < 0x400000000:
			w.be(uint64(x+0x7800000000), 5)
		case x < 0x20000000000:
			w.be(uint64(x+0x7c0000000000), 6)
		case x < 0x1000000000000:
			w.be(uint64(x+0x7e000000000000), 7)
		case x < 0x80000000000000:
			w.be(uint64(x+0x7f00000000000000), 8)
		default:
			w.Buf = append(w.Buf, 0x7f)
			w.be(uint64(x)+0x8000000000000000, 8)
		}
		return
	}
	switch {
	case x >= -0x40:
		w.be(uint64(x), 1)
	case x >= -0x2000:
		w.be(uint64(x-0x4000), 2)
	case x >= -0x100000:
		w.be(uint64(x-0x600000), 3)
	case x >= -0x8000000:
		w.be(uint64(x-0x70000000), 4)
	case x >= -0x400000000:
		w.be(uint64(x-0x7800000000), 5)
	case x >= -0x20000000000:
		w.be(uint64(x-0x7c0000000000), 6)
	case x >= -0x1000000000000:
		w.be(uint64(x-0x7e000000000000), 7)
	case x >= -0x80000000000000:
		w.be(uint64(x-0x7f00000000000000), 8)
	default:
		w.Buf = append(w.Buf, 0x80)
		w.be(uint64(x)-0x8000000000000000, 8)
	}
}

// UInt writes a non-negative length or count.
func (w *Writer) UInt(x int) {
	switch {
	case x < 0x80:
		w.be(uint64(x), 1)
	case x < 0x4000:
		w.be(uint64(x+0x8000), 2)
	case x < 0x200000:
		w.be(uint64(x+0xc00000), 3)
	case x < 0x1000000:
		w.be(uint64(x+0xe0000000), 4)
	default:
		w.Buf = append(w.Buf, 0xf0)
		w.be(uint64(uint32(x)), 4)
	}
}

// Float32 writes the IEEE 754 bits of x, big-endian.
func (w *Writer) Float32(x float32) {
	w.Buf = binary.BigEndian.AppendUint32(w.Buf, math.Float32bits(x))
}

// Float64 writes the IEEE 754 bits of x, big-endian.
func (w *Writer) Float64(x float64) {
	w.Buf = binary.BigEndian.AppendUint64(w.Buf, math.Float64bits(x))
}

// Octets writes p prefixed with its length.
func (w *Writer) Octets(p []byte) {
	w.UInt(len(p))
	w.Buf = append(w.Buf, p...)
}

// String writes s as length-prefixed UTF-8.
func (w *Writer) String(s string) {
	w.UInt(len(s))
	w.Buf = append(w.Buf, s...)
}

// be appends the low n bytes of x, big-endian.
func (w *Writer) be(x uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		w.Buf = append(w.Buf, byte(x>>(8*i)))
	}
}
