package pbf

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Blob types announced by a BlobHeader.
const (
	BlobTypeHeader = "OSMHeader"
	BlobTypeData   = "OSMData"
)

// The PBF format caps a BlobHeader at 64 KiB and a Blob at 32 MiB.
const (
	MaxBlobHeaderSize = 64 * 1024
	MaxBlobSize       = 32 * 1024 * 1024
)

// BlobHeader precedes every blob and announces its type and size.
type BlobHeader struct {
	Type      string
	IndexData []byte
	DataSize  int32
}

// DecodeBlobHeader decodes a BlobHeader record.
func DecodeBlobHeader(data []byte) (*BlobHeader, error) {
	header := &BlobHeader{}
	hasSize := false
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		switch num {
		case 1:
			b, err := bytesValue(typ, value)
			if err != nil {
				return err
			}
			header.Type = string(b)
		case 2:
			b, err := bytesValue(typ, value)
			if err != nil {
				return err
			}
			header.IndexData = b
		case 3:
			v, err := varintValue(typ, value)
			if err != nil {
				return err
			}
			header.DataSize = int32(v)
			hasSize = true
		}
		return nil
	})
	if err != nil {
		return nil, malformed("blob header", err)
	}
	if header.Type == "" {
		return nil, malformed("blob header without type", nil)
	}
	if !hasSize {
		return nil, malformed("blob header without datasize", nil)
	}
	return header, nil
}

// Blob carries one block's payload, raw or compressed. Exactly one data
// field is expected to be set.
type Blob struct {
	Type string

	// Offset is the file offset of the blob's length prefix.
	Offset int64

	Raw       []byte
	RawSize   int32
	ZlibData  []byte
	LZMAData  []byte
	Bzip2Data []byte
	LZ4Data   []byte
	ZstdData  []byte

	hasRawSize bool
}

// DecodeBlob decodes a Blob record. The returned blob aliases data.
func DecodeBlob(data []byte) (*Blob, error) {
	blob := &Blob{}
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		if num == 2 {
			v, err := varintValue(typ, value)
			if err != nil {
				return err
			}
			blob.RawSize = int32(v)
			blob.hasRawSize = true
			return nil
		}

		var dst *[]byte
		switch num {
		case 1:
			dst = &blob.Raw
		case 3:
			dst = &blob.ZlibData
		case 4:
			dst = &blob.LZMAData
		case 5:
			dst = &blob.Bzip2Data
		case 6:
			dst = &blob.LZ4Data
		case 7:
			dst = &blob.ZstdData
		default:
			return nil
		}
		b, err := bytesValue(typ, value)
		if err != nil {
			return err
		}
		// A present but empty field still selects the compression.
		if b == nil {
			b = []byte{}
		}
		*dst = b
		return nil
	})
	if err != nil {
		return nil, malformed("blob", err)
	}
	return blob, nil
}

// Compression reports which data field the blob carries.
func (b *Blob) Compression() Compression {
	switch {
	case b.ZlibData != nil:
		return CompressionZlib
	case b.ZstdData != nil:
		return CompressionZstd
	case b.LZ4Data != nil:
		return CompressionLZ4
	case b.LZMAData != nil:
		return CompressionLZMA
	case b.Bzip2Data != nil:
		return CompressionBzip2
	default:
		return CompressionNone
	}
}

// CompressedSize is the length of the payload as stored in the file.
func (b *Blob) CompressedSize() int {
	switch b.Compression() {
	case CompressionZlib:
		return len(b.ZlibData)
	case CompressionZstd:
		return len(b.ZstdData)
	case CompressionLZ4:
		return len(b.LZ4Data)
	case CompressionLZMA:
		return len(b.LZMAData)
	case CompressionBzip2:
		return len(b.Bzip2Data)
	default:
		return len(b.Raw)
	}
}
