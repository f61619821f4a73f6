package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"time"
)

// FrameHeaderSize is CRC32(4) + BodySize(4) + Timestamp(8).
const FrameHeaderSize = 16

// ErrChecksum reports a frame whose CRC32 does not match its contents.
var ErrChecksum = errors.New("frame checksum mismatch")

// Frame is the storage envelope around an encoded bean body.
type Frame struct {
	CRC32     uint32 // CRC32 over BodySize, Timestamp and Body
	BodySize  uint32
	Timestamp uint64 // Unix nanoseconds
	Body      []byte
}

// NewFrame wraps body with the current timestamp.
func NewFrame(body []byte) *Frame {
	if uint64(len(body)) > uint64(^uint32(0)) {
		panic("frame body too large")
	}
	f := &Frame{
		BodySize:  uint32(len(body)),
		Timestamp: uint64(time.Now().UnixNano()),
		Body:      body,
	}
	f.CRC32 = f.checksum()
	return f
}

// EncodeFrame serializes body into a checksummed frame.
// Format: [CRC32(4)][BodySize(4)][Timestamp(8)][Body], little-endian.
func EncodeFrame(body []byte) []byte {
	return NewFrame(body).Marshal()
}

func (f *Frame) Marshal() []byte {
	buf := make([]byte, f.Size())
	binary.LittleEndian.PutUint32(buf[0:], f.CRC32)
	binary.LittleEndian.PutUint32(buf[4:], f.BodySize)
	binary.LittleEndian.PutUint64(buf[8:], f.Timestamp)
	copy(buf[FrameHeaderSize:], f.Body)
	return buf
}

// DecodeFrame parses and validates a frame. Body aliases data.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, decodeErrf(data, len(data), "data too short for frame header")
	}
	f := &Frame{
		CRC32:     binary.LittleEndian.Uint32(data[0:]),
		BodySize:  binary.LittleEndian.Uint32(data[4:]),
		Timestamp: binary.LittleEndian.Uint64(data[8:]),
	}
	end := FrameHeaderSize + int(f.BodySize)
	if len(data) < end {
		return nil, decodeErrf(data, FrameHeaderSize, "data too short for body size %d", f.BodySize)
	}
	f.Body = data[FrameHeaderSize:end]
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the frame against its CRC32.
func (f *Frame) Validate() error {
	if sum := f.checksum(); sum != f.CRC32 {
		return fmt.Errorf("%w: %d != %d", ErrChecksum, f.CRC32, sum)
	}
	return nil
}

func (f *Frame) Size() int {
	return FrameHeaderSize + len(f.Body)
}

func (f *Frame) Time() time.Time {
	return time.Unix(0, int64(f.Timestamp))
}

func (f *Frame) checksum() uint32 {
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:], f.BodySize)
	binary.LittleEndian.PutUint64(hdr[4:], f.Timestamp)
	crc := crc32.NewIEEE()
	_, _ = crc.Write(hdr[:])
	_, _ = crc.Write(f.Body)
	return crc.Sum32()
}
