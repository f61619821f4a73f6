package codec

import (
	"errors"
	"fmt"
)

// ErrMalformedEncoding reports a truncated or structurally impossible byte stream.
var ErrMalformedEncoding = errors.New("malformed encoding")

// DecodeError carries the buffer and offset at which decoding failed.
type DecodeError struct {
	Data []byte
	Off  int
	Msg  string
	Err  error
}

func decodeErrf(data []byte, off int, format string, args ...any) error {
	return &DecodeError{Data: data, Off: off, Msg: fmt.Sprintf(format, args...), Err: ErrMalformedEncoding}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Error() string {
	const prefixLen = 48
	const suffixLen = 16
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		return fmt.Sprintf("%v at offset %d: %s: (%d) %x", e.Err, e.Off, e.Msg, n, e.Data)
	}
	p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
	return fmt.Sprintf("%v at offset %d: %s: (%d) %x...%x", e.Err, e.Off, e.Msg, n, p, s)
}
