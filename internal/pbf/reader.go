package pbf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrClosed is returned by a Reader after Close.
var ErrClosed = errors.New("pbf reader closed")

// Reader reads the blobs of a PBF file in file order.
//
// A Reader owns one read cursor. NextBlob is safe to call from several
// goroutines: each call returns a distinct blob and blobs are handed out
// in the order they appear on disk. Decompression and decoding happen
// outside the lock, in the caller.
//
// The header blob is read once, when the Reader is created, and is never
// returned by NextBlob. A malformed blob is fatal for the Reader: every
// later call returns the same error.
type Reader struct {
	mu         sync.Mutex
	rs         io.ReadSeeker
	closer     io.Closer
	header     *Header
	dataOffset int64
	offset     int64
	bytesRead  int64
	err        error
}

// Open opens the PBF file at path. The returned Reader owns the file and
// must be closed by the caller.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	reader, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	reader.closer = file
	return reader, nil
}

// NewReader reads and decodes the header blob of the PBF stream rs, which
// must be positioned at the start of a blob. Close on the returned Reader
// does not close rs.
func NewReader(rs io.ReadSeeker) (*Reader, error) {
	offset, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	r := &Reader{rs: rs, offset: offset}

	blob, err := r.readBlob()
	if err == io.EOF {
		return nil, &MalformedBlockError{Offset: offset, Reason: "empty file, expected header blob"}
	}
	if err != nil {
		return nil, err
	}
	if blob.Type != BlobTypeHeader {
		return nil, &MalformedBlockError{
			Offset: offset,
			Reason: fmt.Sprintf("first blob has type %q, expected %q", blob.Type, BlobTypeHeader),
		}
	}
	data, err := blob.Decompress()
	if err != nil {
		return nil, err
	}
	header, err := DecodeHeader(data)
	if err != nil {
		return nil, WithOffset(err, offset)
	}

	r.header = header
	r.dataOffset = r.offset
	return r, nil
}

// Header returns the decoded file header.
func (r *Reader) Header() *Header {
	return r.header
}

// NextBlob returns the next OSMData blob, still compressed. It returns
// io.EOF once the file ends on a blob boundary. Blobs of other types are
// skipped.
func (r *Reader) NextBlob() (*Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	for {
		blob, err := r.readBlob()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			r.err = err
			return nil, err
		}
		if blob.Type == BlobTypeData {
			return blob, nil
		}
	}
}

// Next returns the next primitive block, decompressed.
func (r *Reader) Next() ([]byte, error) {
	blob, err := r.NextBlob()
	if err != nil {
		return nil, err
	}
	return blob.Decompress()
}

// Rewind moves the cursor back to the first blob after the header.
func (r *Reader) Rewind() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	if _, err := r.rs.Seek(r.dataOffset, io.SeekStart); err != nil {
		r.err = err
		return err
	}
	r.offset = r.dataOffset
	return nil
}

// BytesRead is the number of bytes consumed from the file so far, before
// decompression, including the header blob.
func (r *Reader) BytesRead() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bytesRead
}

// Close releases the file if the Reader opened it. Later reads return
// ErrClosed.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.closer != nil {
		err = r.closer.Close()
		r.closer = nil
	}
	r.err = ErrClosed
	return err
}

// readBlob reads one framed blob: a 4-byte big-endian header length, the
// BlobHeader, then DataSize bytes of Blob. Must be called with r.mu held
// (or before the Reader is shared).
func (r *Reader) readBlob() (*Blob, error) {
	start := r.offset

	var prefix [4]byte
	n, err := io.ReadFull(r.rs, prefix[:])
	r.advance(n)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, &MalformedBlockError{Offset: start, Reason: "truncated length prefix", Err: err}
	}

	headerSize := binary.BigEndian.Uint32(prefix[:])
	if headerSize == 0 || headerSize > MaxBlobHeaderSize {
		return nil, &MalformedBlockError{
			Offset: start,
			Reason: fmt.Sprintf("blob header size %d outside (0, %d]", headerSize, MaxBlobHeaderSize),
		}
	}
	headerBytes, err := r.readFull(int(headerSize))
	if err != nil {
		return nil, &MalformedBlockError{Offset: start, Reason: "truncated blob header", Err: err}
	}
	blobHeader, err := DecodeBlobHeader(headerBytes)
	if err != nil {
		return nil, WithOffset(err, start)
	}

	if blobHeader.DataSize < 0 || blobHeader.DataSize > MaxBlobSize {
		return nil, &MalformedBlockError{
			Offset: start,
			Reason: fmt.Sprintf("blob size %d outside [0, %d]", blobHeader.DataSize, MaxBlobSize),
		}
	}
	payload, err := r.readFull(int(blobHeader.DataSize))
	if err != nil {
		return nil, &MalformedBlockError{
			Offset: start,
			Reason: fmt.Sprintf("truncated blob, header declares %d bytes", blobHeader.DataSize),
			Err:    err,
		}
	}
	blob, err := DecodeBlob(payload)
	if err != nil {
		return nil, WithOffset(err, start)
	}
	blob.Type = blobHeader.Type
	blob.Offset = start
	return blob, nil
}

func (r *Reader) readFull(size int) ([]byte, error) {
	buf := make([]byte, size)
	n, err := io.ReadFull(r.rs, buf)
	r.advance(n)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *Reader) advance(n int) {
	r.offset += int64(n)
	r.bytesRead += int64(n)
}

// WithOffset fills in the file offset of a *MalformedBlockError raised while
// decoding detached bytes. Other errors are returned unchanged.
func WithOffset(err error, offset int64) error {
	var malformedErr *MalformedBlockError
	if errors.As(err, &malformedErr) && malformedErr.Offset < 0 {
		malformedErr.Offset = offset
	}
	return err
}
