package pbf

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the data field a Blob carries. The values are
// the protobuf field numbers of those fields in the Blob message.
type Compression uint8

const (
	CompressionNone  Compression = 1
	CompressionZlib  Compression = 3
	CompressionLZMA  Compression = 4
	CompressionBzip2 Compression = 5
	CompressionLZ4   Compression = 6
	CompressionZstd  Compression = 7
)

// String returns the human-readable name of a compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZlib:
		return "zlib"
	case CompressionLZMA:
		return "lzma"
	case CompressionBzip2:
		return "bzip2"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// zstdDecoder is shared by all workers; DecodeAll is safe for concurrent use.
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("pbf: zstd decoder initialization failed: " + err.Error())
	}
}

// Decompress returns the uncompressed block bytes. When the blob declares
// a raw_size, the output length must match it exactly.
func (b *Blob) Decompress() ([]byte, error) {
	data, err := b.decompress()
	if errors.Is(err, ErrUnsupportedCompression) {
		return nil, fmt.Errorf("block at offset %d: %w", b.Offset, err)
	}
	if err != nil {
		return nil, &MalformedBlockError{
			Offset: b.Offset,
			Reason: b.Compression().String() + " payload",
			Err:    err,
		}
	}
	return data, nil
}

func (b *Blob) decompress() ([]byte, error) {
	switch compression := b.Compression(); compression {
	case CompressionNone:
		return b.checkSize(b.Raw)

	case CompressionZlib:
		reader, err := zlib.NewReader(bytes.NewReader(b.ZlibData))
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		defer reader.Close()
		data, err := readLimited(reader, b.sizeHint())
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		return b.checkSize(data)

	case CompressionZstd:
		data, err := zstdDecoder.DecodeAll(b.ZstdData, make([]byte, 0, b.sizeHint()))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return b.checkSize(data)

	case CompressionLZ4:
		if !b.hasRawSize {
			return nil, fmt.Errorf("lz4 blob without raw_size")
		}
		if b.RawSize < 0 || b.RawSize > MaxBlobSize {
			return nil, fmt.Errorf("raw_size %d out of range", b.RawSize)
		}
		data := make([]byte, b.RawSize)
		read, err := lz4.UncompressBlock(b.LZ4Data, data)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		return b.checkSize(data[:read])

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, compression)
	}
}

func (b *Blob) sizeHint() int {
	if b.hasRawSize && b.RawSize > 0 && b.RawSize <= MaxBlobSize {
		return int(b.RawSize)
	}
	return 0
}

func (b *Blob) checkSize(data []byte) ([]byte, error) {
	if b.hasRawSize && len(data) != int(b.RawSize) {
		return nil, fmt.Errorf("got %d bytes, expected raw_size %d", len(data), b.RawSize)
	}
	return data, nil
}

// readLimited reads a decompression stream to its end, refusing output
// larger than MaxBlobSize.
func readLimited(r io.Reader, sizeHint int) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, sizeHint))
	n, err := io.Copy(buf, io.LimitReader(r, MaxBlobSize+1))
	if err != nil {
		return nil, err
	}
	if n > MaxBlobSize {
		return nil, fmt.Errorf("decompressed size exceeds %d bytes", MaxBlobSize)
	}
	return buf.Bytes(), nil
}
