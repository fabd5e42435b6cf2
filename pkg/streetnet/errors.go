package streetnet

import (
	"errors"
	"fmt"

	"github.com/streetharvest/streetnet/internal/clip"
	"github.com/streetharvest/streetnet/internal/pbf"
)

// ErrClosed is returned by StreetNetwork after Close when no result was
// computed before.
var ErrClosed = errors.New("streetnet: reader closed")

// Errors reported while reading a PBF file.
var (
	// ErrMalformed matches every *MalformedBlockError via errors.Is.
	ErrMalformed = pbf.ErrMalformed

	// ErrUnsupportedCompression is reported for lzma and bzip2 blobs.
	ErrUnsupportedCompression = pbf.ErrUnsupportedCompression
)

// MalformedBlockError reports bytes that do not follow the PBF layout.
type MalformedBlockError = pbf.MalformedBlockError

// UnsupportedFeatureError reports a required header feature the decoder
// cannot honour.
type UnsupportedFeatureError = pbf.UnsupportedFeatureError

// InvalidPolygonError reports a boundary that cannot be used for clipping.
type InvalidPolygonError = clip.InvalidPolygonError

// InvalidCoordinateError reports a boundary vertex outside WGS84 bounds.
type InvalidCoordinateError = clip.InvalidCoordinateError

// WorkerError reports a panic inside a worker goroutine.
type WorkerError struct {
	Phase  string // "read", "decode" or "lines"
	Worker int    // -1 for the goroutine reading the file
	Value  any
	Stack  []byte
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("streetnet: %s worker %d panicked: %v", e.Phase, e.Worker, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *WorkerError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
