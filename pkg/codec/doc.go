// Package codec provides the wire primitives used to serialize beans.
//
// A bean body is a sequence of tagged values followed by a single zero byte.
// This package knows nothing about layouts; it only reads and writes the
// individual pieces. Package bean assembles them into records.
//
// # Tags
//
// Every field starts with a tag byte:
//
//	[ordinal(6 bits)][hint(2 bits)]
//
// Ordinals 1..62 fit in the tag byte. An ordinal of 63 or more stores 63 in
// the tag and is followed by continuation bytes that add up to ordinal-63.
// A continuation byte of 0xFF adds 255 and announces another byte. Ordinal 0
// is the terminator.
//
// The hint selects how the value that follows is framed:
//   - HintInt (0): compact signed integer, 1 to 9 bytes
//   - HintOctets (1): unsigned length, then raw bytes
//   - HintBean (2): nested body, ended by its own terminator
//   - HintSub (3): a subtype byte, then a float, double, collection or map
//
// # Integers
//
// Signed integers use a prefix code in the first byte, so small magnitudes
// take one byte and the width of any value can be derived from the first
// byte alone:
//
//	0xxx xxxx                 -64..63 (with 11xx xxxx for negatives)
//	010x xxxx +1B             up to ±0x2000
//	0110 xxxx +2B             up to ±0x100000
//	0111 0xxx +3B             up to ±0x8000000
//	0111 10xx +4B ... 0111 1111 1 +8B
//
// Lengths and counts use an unsigned variant of the same idea.
//
// # Floats
//
// float32 and float64 are written big-endian as HintSub values with subtype
// 8 and 9.
//
// # Collections
//
// A subtype below 8 announces a collection whose elements all have that
// KV type. A subtype with bit 0x40 set announces a map, key type in bits
// 3..5 and value type in bits 0..2. Both are followed by an element count.
//
// # Errors
//
// Reads that run past the end of the buffer, or that meet a hint or KV
// type that cannot exist, return a *DecodeError wrapping
// ErrMalformedEncoding.
//
// # Frames
//
// Frame wraps a body with a CRC32 checksum and a timestamp for storage.
// The body itself is never checksummed by the bean layer.
package codec
