package codec

import (
	"encoding/binary"
	"math"
)

// Reader consumes encoded values from a byte slice.
type Reader struct {
	orig []byte
	buf  []byte
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{orig: data, buf: data}
}

// Off returns the number of bytes consumed so far.
func (r *Reader) Off() int {
	return len(r.orig) - len(r.buf)
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf)
}

func (r *Reader) errf(format string, args ...any) error {
	return decodeErrf(r.orig, r.Off(), format, args...)
}

// Raw returns the next n bytes without copying them.
func (r *Reader) Raw(n int) ([]byte, error) {
	if n < 0 || len(r.buf) < n {
		return nil, r.errf("not enough data: %d bytes remaining, %d wanted", len(r.buf), n)
	}
	v := r.buf[:n]
	r.buf = r.buf[n:]
	return v, nil
}

// Byte reads a single raw byte.
func (r *Reader) Byte() (byte, error) {
	if len(r.buf) == 0 {
		return 0, r.errf("unexpected end of data")
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b, nil
}

func (r *Reader) be(n int) (uint64, error) {
	p, err := r.Raw(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, b := range p {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

// Tag reads a field tag. A zero ordinal means the terminator was reached.
func (r *Reader) Tag() (ordinal int, hint int, err error) {
	b, err := r.Byte()
	if err != nil {
		return 0, 0, err
	}
	ordinal, hint = int(b>>2), int(b&3)
	if ordinal != ordinalSentinel {
		return ordinal, hint, nil
	}
	for {
		c, err := r.Byte()
		if err != nil {
			return 0, 0, err
		}
		ordinal += int(c)
		if c != 0xff {
			return ordinal, hint, nil
		}
	}
}

// Int reads a compact integer and truncates it to 32 bits.
func (r *Reader) Int() (int32, error) {
	v, err := r.Long()
	return int32(v), err
}

// Long reads a compact signed integer of any width.
func (r *Reader) Long() (int64, error) {
	c, err := r.Byte()
	if err != nil {
		return 0, err
	}
	b := int64(int8(c))
	var u uint64
	switch c >> 3 {
	case 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x18, 0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f:
		return b, nil
	case 0x08, 0x09, 0x0a, 0x0b:
		u, err = r.be(1)
		return ((b - 0x40) << 8) + int64(u), err
	case 0x14, 0x15, 0x16, 0x17:
		u, err = r.be(1)
		return ((b + 0x40) << 8) + int64(u), err
	case 0x0c, 0x0d:
		u, err = r.be(2)
		return ((b - 0x60) << 16) + int64(u), err
	case 0x12, 0x13:
		u, err = r.be(2)
		return ((b + 0x60) << 16) + int64(u), err
	case 0x0e:
		u, err = r.be(3)
		return ((b - 0x70) << 24) + int64(u), err
	case 0x11:
		u, err = r.be(3)
		return ((b + 0x70) << 24) + int64(u), err
	case 0x0f:
		switch c & 7 {
		case 0, 1, 2, 3:
			u, err = r.be(4)
			return ((b - 0x78) << 32) + int64(u), err
		case 4, 5:
			u, err = r.be(5)
			return ((b - 0x7c) << 40) + int64(u), err
		case 6:
			u, err = r.be(6)
			return int64(u), err
		default:
			if u, err = r.be(7); err != nil || u < 0x80_0000_0000_0000 {
				return int64(u), err
			}
			lo, err := r.be(1)
			return int64((u-0x80_0000_0000_0000)<<8 + lo), err
		}
	default: // 0x10
		switch c & 7 {
		case 4, 5, 6, 7:
			u, err = r.be(4)
			return ((b + 0x78) << 32) + int64(u), err
		case 2, 3:
			u, err = r.be(5)
			return ((b + 0x7c) << 40) + int64(u), err
		case 1:
			u, err = r.be(6)
			return -(1 << 48) + int64(u), err
		default:
			if u, err = r.be(7); err != nil {
				return 0, err
			}
			if u >= 0x80_0000_0000_0000 {
				return -(1 << 56) + int64(u), nil
			}
			lo, err := r.be(1)
			return int64((u+0x80_0000_0000_0000)<<8 + lo), err
		}
	}
}

// UInt reads a length or count.
func (r *Reader) UInt() (int, error) {
	c, err := r.Byte()
	if err != nil {
		return 0, err
	}
	var u uint64
	switch c >> 4 {
	case 0, 1, 2, 3, 4, 5, 6, 7:
		return int(c), nil
	case 8, 9, 10, 11:
		u, err = r.be(1)
		return int(c&0x3f)<<8 + int(u), err
	case 12, 13:
		u, err = r.be(2)
		return int(c&0x1f)<<16 + int(u), err
	case 14:
		u, err = r.be(3)
		return int(c&0x0f)<<24 + int(u), err
	default:
		u, err = r.be(4)
		return int(u), err
	}
}

// Float32 reads four big-endian bytes as an IEEE 754 value.
func (r *Reader) Float32() (float32, error) {
	p, err := r.Raw(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(p)), nil
}

// Float64 reads eight big-endian bytes as an IEEE 754 value.
func (r *Reader) Float64() (float64, error) {
	p, err := r.Raw(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(p)), nil
}

// Octets reads a length-prefixed byte string. The result is a copy.
func (r *Reader) Octets() ([]byte, error) {
	n, err := r.UInt()
	if err != nil {
		return nil, err
	}
	p, err := r.Raw(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, p)
	return out, nil
}

// String reads a length-prefixed UTF-8 string.
func (r *Reader) String() (string, error) {
	n, err := r.UInt()
	if err != nil {
		return "", err
	}
	p, err := r.Raw(n)
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// SkipVar consumes one value framed by hint.
func (r *Reader) SkipVar(hint int) error {
	switch hint {
	case HintInt:
		_, err := r.Long()
		return err
	case HintOctets:
		n, err := r.UInt()
		if err != nil {
			return err
		}
		_, err = r.Raw(n)
		return err
	case HintBean:
		return r.SkipBean()
	case HintSub:
		sub, err := r.Byte()
		if err != nil {
			return err
		}
		return r.SkipSub(int(sub))
	default:
		return r.errf("invalid hint %d", hint)
	}
}

// SkipSub consumes the payload of a HintSub value whose subtype byte was already read.
func (r *Reader) SkipSub(sub int) error {
	switch {
	case sub == SubFloat:
		_, err := r.Raw(4)
		return err
	case sub == SubDouble:
		_, err := r.Raw(8)
		return err
	case sub < 8:
		n, err := r.UInt()
		if err != nil {
			return err
		}
		for ; n > 0; n-- {
			if err := r.SkipKV(sub & 7); err != nil {
				return err
			}
		}
		return nil
	case sub&SubMap != 0:
		kt, vt := (sub>>3)&7, sub&7
		n, err := r.UInt()
		if err != nil {
			return err
		}
		for ; n > 0; n-- {
			if err := r.SkipKV(kt); err != nil {
				return err
			}
			if err := r.SkipKV(vt); err != nil {
				return err
			}
		}
		return nil
	default:
		return r.errf("invalid subtype 0x%02x", sub)
	}
}

// SkipKV consumes one collection element or map key/value.
func (r *Reader) SkipKV(kv int) error {
	switch kv {
	case KVInt, KVOctets, KVBean:
		return r.SkipVar(kv)
	case KVFloat:
		_, err := r.Raw(4)
		return err
	case KVDouble:
		_, err := r.Raw(8)
		return err
	default:
		return r.errf("invalid kv type %d", kv)
	}
}

// SkipBean consumes a nested body up to and including its terminator.
func (r *Reader) SkipBean() error {
	for {
		ordinal, hint, err := r.Tag()
		if err != nil {
			return err
		}
		if ordinal == 0 {
			return nil
		}
		if err := r.SkipVar(hint); err != nil {
			return err
		}
	}
}
