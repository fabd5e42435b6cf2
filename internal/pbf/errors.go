package pbf

import (
	"errors"
	"fmt"
)

// ErrMalformed matches every *MalformedBlockError via errors.Is.
var ErrMalformed = errors.New("malformed pbf block")

// ErrUnsupportedCompression indicates a blob compressed with a scheme this
// reader does not decode (lzma, bzip2).
var ErrUnsupportedCompression = errors.New("unsupported blob compression")

// MalformedBlockError indicates bytes that do not follow the PBF layout:
// a truncated length prefix or payload, an oversized header or blob, a
// failed decompression or a record that does not decode.
//
// Offset is the file offset of the blob's length prefix, or -1 when the
// error was raised while decoding bytes detached from the file.
type MalformedBlockError struct {
	Offset int64
	Reason string
	Err    error
}

func (e *MalformedBlockError) Error() string {
	msg := "malformed block"
	if e.Offset >= 0 {
		msg = fmt.Sprintf("malformed block at offset %d", e.Offset)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedBlockError) Unwrap() error {
	return e.Err
}

// Is reports ErrMalformed as a match so callers need not type-assert.
func (e *MalformedBlockError) Is(target error) bool {
	return target == ErrMalformed
}

func malformed(reason string, err error) *MalformedBlockError {
	return &MalformedBlockError{Offset: -1, Reason: reason, Err: err}
}

// UnsupportedFeatureError indicates the file header requires a feature
// this reader cannot honour.
type UnsupportedFeatureError struct {
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("unsupported required feature: %q", e.Feature)
}
