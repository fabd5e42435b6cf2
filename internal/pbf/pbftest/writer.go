// Package pbftest builds small, synthetic PBF files for tests.
//
// Coordinates are given in raw units (multiples of the block granularity,
// in nanodegrees) so that tests can predict decoded values exactly.
package pbftest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/streetharvest/streetnet/internal/pbf"
)

// Tag is one key/value pair.
type Tag struct {
	Key, Value string
}

// Highway is the tag that makes a way part of the street network.
var Highway = Tag{Key: "highway", Value: "residential"}

// Node is a node with raw coordinates.
type Node struct {
	ID       int64
	Lat, Lon int64
	Tags     []Tag
}

// Way references nodes by absolute id.
type Way struct {
	ID      int64
	NodeIDs []int64
	Tags    []Tag
}

// Block describes one OSMData block. Dense nodes, plain nodes and ways
// each go into their own primitive group.
type Block struct {
	// Granularity is omitted from the encoding when zero, so decoders
	// fall back to the default of 100.
	Granularity int32
	LatOffset   int64
	LonOffset   int64

	DenseNodes []Node
	Nodes      []Node
	Ways       []Way

	// Strings are added to the string table after the empty string and
	// before any tag strings.
	Strings []string
}

// Header describes the OSMHeader block.
type Header struct {
	RequiredFeatures []string
	WritingProgram   string
	Source           string

	// BBox is left, right, top, bottom in nanodegrees; nil omits it.
	BBox *[4]int64
}

// DefaultHeader declares the features a typical extract requires.
func DefaultHeader() Header {
	return Header{
		RequiredFeatures: []string{"OsmSchema-V0.6", "DenseNodes"},
		WritingProgram:   "pbftest",
	}
}

// File is a complete PBF file.
type File struct {
	Header      Header
	Compression pbf.Compression
	Blocks      []Block
}

// Bytes encodes the file.
func (f File) Bytes() ([]byte, error) {
	compression := f.Compression
	if compression == 0 {
		compression = pbf.CompressionZlib
	}

	var out []byte
	framed, err := Frame(pbf.BlobTypeHeader, EncodeHeader(f.Header), compression)
	if err != nil {
		return nil, err
	}
	out = append(out, framed...)

	for i, block := range f.Blocks {
		framed, err := Frame(pbf.BlobTypeData, EncodePrimitiveBlock(block), compression)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		out = append(out, framed...)
	}
	return out, nil
}

// Write encodes f into a file under t.TempDir and returns its path.
func Write(t testing.TB, f File) string {
	t.Helper()
	data, err := f.Bytes()
	if err != nil {
		t.Fatalf("encode pbf: %v", err)
	}
	return WriteBytes(t, data)
}

// WriteBytes stores data in a file under t.TempDir and returns its path.
func WriteBytes(t testing.TB, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extract.osm.pbf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write pbf: %v", err)
	}
	return path
}

// Frame wraps block bytes in a Blob and BlobHeader, prefixed by the
// header length.
func Frame(blobType string, data []byte, compression pbf.Compression) ([]byte, error) {
	blob, err := EncodeBlob(data, compression)
	if err != nil {
		return nil, err
	}

	var header []byte
	header = protowire.AppendTag(header, 1, protowire.BytesType)
	header = protowire.AppendString(header, blobType)
	header = protowire.AppendTag(header, 3, protowire.VarintType)
	header = protowire.AppendVarint(header, uint64(len(blob)))

	out := make([]byte, 4, 4+len(header)+len(blob))
	binary.BigEndian.PutUint32(out, uint32(len(header)))
	out = append(out, header...)
	out = append(out, blob...)
	return out, nil
}

// EncodeBlob compresses data into a Blob record. LZMA and bzip2 are not
// compressed at all; the bytes are stored as is so readers can be tested
// against the unsupported schemes.
func EncodeBlob(data []byte, compression pbf.Compression) ([]byte, error) {
	var payload []byte
	switch compression {
	case pbf.CompressionNone:
		payload = data

	case pbf.CompressionZlib:
		var buf bytes.Buffer
		writer := zlib.NewWriter(&buf)
		if _, err := writer.Write(data); err != nil {
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}
		payload = buf.Bytes()

	case pbf.CompressionZstd:
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		payload = encoder.EncodeAll(data, nil)
		encoder.Close()

	case pbf.CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, err
		}
		payload = destination[:written]

	case pbf.CompressionLZMA, pbf.CompressionBzip2:
		payload = data

	default:
		return nil, fmt.Errorf("unknown compression %d", compression)
	}

	var blob []byte
	if compression != pbf.CompressionNone {
		blob = protowire.AppendTag(blob, 2, protowire.VarintType)
		blob = protowire.AppendVarint(blob, uint64(len(data)))
	}
	blob = protowire.AppendTag(blob, protowire.Number(compression), protowire.BytesType)
	blob = protowire.AppendBytes(blob, payload)
	return blob, nil
}

// EncodeHeader encodes an OSMHeader block.
func EncodeHeader(h Header) []byte {
	var out []byte
	if h.BBox != nil {
		var bbox []byte
		for i, v := range h.BBox {
			bbox = protowire.AppendTag(bbox, protowire.Number(i+1), protowire.VarintType)
			bbox = protowire.AppendVarint(bbox, protowire.EncodeZigZag(v))
		}
		out = protowire.AppendTag(out, 1, protowire.BytesType)
		out = protowire.AppendBytes(out, bbox)
	}
	for _, feature := range h.RequiredFeatures {
		out = protowire.AppendTag(out, 4, protowire.BytesType)
		out = protowire.AppendString(out, feature)
	}
	if h.WritingProgram != "" {
		out = protowire.AppendTag(out, 16, protowire.BytesType)
		out = protowire.AppendString(out, h.WritingProgram)
	}
	if h.Source != "" {
		out = protowire.AppendTag(out, 17, protowire.BytesType)
		out = protowire.AppendString(out, h.Source)
	}
	return out
}

// stringTable assigns indices to strings in first-seen order. Index 0 is
// always the empty string.
type stringTable struct {
	strings []string
	index   map[string]uint32
}

func newStringTable() *stringTable {
	return &stringTable{strings: []string{""}, index: map[string]uint32{"": 0}}
}

func (st *stringTable) add(s string) uint32 {
	if i, ok := st.index[s]; ok {
		return i
	}
	i := uint32(len(st.strings))
	st.strings = append(st.strings, s)
	st.index[s] = i
	return i
}

// EncodePrimitiveBlock encodes an OSMData block. Every element carries
// metadata (version, timestamp, changeset) so that strict decoders accept
// the output.
func EncodePrimitiveBlock(b Block) []byte {
	st := newStringTable()
	for _, s := range b.Strings {
		st.add(s)
	}

	var groups [][]byte
	if len(b.DenseNodes) > 0 {
		groups = append(groups, encodeDenseGroup(b.DenseNodes, st))
	}
	if len(b.Nodes) > 0 {
		var group []byte
		for _, node := range b.Nodes {
			group = protowire.AppendTag(group, 1, protowire.BytesType)
			group = protowire.AppendBytes(group, encodeNode(node, st))
		}
		groups = append(groups, group)
	}
	if len(b.Ways) > 0 {
		var group []byte
		for _, way := range b.Ways {
			group = protowire.AppendTag(group, 3, protowire.BytesType)
			group = protowire.AppendBytes(group, encodeWay(way, st))
		}
		groups = append(groups, group)
	}

	var table []byte
	for _, s := range st.strings {
		table = protowire.AppendTag(table, 1, protowire.BytesType)
		table = protowire.AppendString(table, s)
	}

	var out []byte
	out = protowire.AppendTag(out, 1, protowire.BytesType)
	out = protowire.AppendBytes(out, table)
	for _, group := range groups {
		out = protowire.AppendTag(out, 2, protowire.BytesType)
		out = protowire.AppendBytes(out, group)
	}
	if b.Granularity != 0 {
		out = protowire.AppendTag(out, 17, protowire.VarintType)
		out = protowire.AppendVarint(out, uint64(b.Granularity))
	}
	if b.LatOffset != 0 {
		out = protowire.AppendTag(out, 19, protowire.VarintType)
		out = protowire.AppendVarint(out, uint64(b.LatOffset))
	}
	if b.LonOffset != 0 {
		out = protowire.AppendTag(out, 20, protowire.VarintType)
		out = protowire.AppendVarint(out, uint64(b.LonOffset))
	}
	return out
}

func encodeDenseGroup(nodes []Node, st *stringTable) []byte {
	ids := make([]int64, len(nodes))
	lats := make([]int64, len(nodes))
	lons := make([]int64, len(nodes))
	tagged := false
	for i, node := range nodes {
		ids[i], lats[i], lons[i] = node.ID, node.Lat, node.Lon
		if len(node.Tags) > 0 {
			tagged = true
		}
	}

	var dense []byte
	dense = appendPackedSint64(dense, 1, DeltaEncode(ids))

	ones := make([]int64, len(nodes))
	zeros := make([]int64, len(nodes))
	for i := range ones {
		ones[i] = 1
	}
	var info []byte
	info = appendPackedVarint(info, 1, ones)
	info = appendPackedSint64(info, 2, zeros)
	info = appendPackedSint64(info, 3, zeros)
	info = appendPackedSint64(info, 4, zeros)
	info = appendPackedSint64(info, 5, zeros)
	dense = protowire.AppendTag(dense, 5, protowire.BytesType)
	dense = protowire.AppendBytes(dense, info)

	dense = appendPackedSint64(dense, 8, DeltaEncode(lats))
	dense = appendPackedSint64(dense, 9, DeltaEncode(lons))

	if tagged {
		var keysVals []int64
		for _, node := range nodes {
			for _, tag := range node.Tags {
				keysVals = append(keysVals, int64(st.add(tag.Key)), int64(st.add(tag.Value)))
			}
			keysVals = append(keysVals, 0)
		}
		dense = appendPackedVarint(dense, 10, keysVals)
	}

	var group []byte
	group = protowire.AppendTag(group, 2, protowire.BytesType)
	group = protowire.AppendBytes(group, dense)
	return group
}

func encodeNode(node Node, st *stringTable) []byte {
	var out []byte
	out = protowire.AppendTag(out, 1, protowire.VarintType)
	out = protowire.AppendVarint(out, protowire.EncodeZigZag(node.ID))
	out = appendTags(out, node.Tags, st)
	out = appendInfo(out)
	out = protowire.AppendTag(out, 8, protowire.VarintType)
	out = protowire.AppendVarint(out, protowire.EncodeZigZag(node.Lat))
	out = protowire.AppendTag(out, 9, protowire.VarintType)
	out = protowire.AppendVarint(out, protowire.EncodeZigZag(node.Lon))
	return out
}

func encodeWay(way Way, st *stringTable) []byte {
	var out []byte
	out = protowire.AppendTag(out, 1, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(way.ID))
	out = appendTags(out, way.Tags, st)
	out = appendInfo(out)
	out = appendPackedSint64(out, 8, DeltaEncode(way.NodeIDs))
	return out
}

func appendTags(out []byte, tags []Tag, st *stringTable) []byte {
	if len(tags) == 0 {
		return out
	}
	keys := make([]int64, len(tags))
	vals := make([]int64, len(tags))
	for i, tag := range tags {
		keys[i] = int64(st.add(tag.Key))
		vals[i] = int64(st.add(tag.Value))
	}
	out = appendPackedVarint(out, 2, keys)
	out = appendPackedVarint(out, 3, vals)
	return out
}

func appendInfo(out []byte) []byte {
	var info []byte
	info = protowire.AppendTag(info, 1, protowire.VarintType)
	info = protowire.AppendVarint(info, 1)
	info = protowire.AppendTag(info, 2, protowire.VarintType)
	info = protowire.AppendVarint(info, 0)
	info = protowire.AppendTag(info, 3, protowire.VarintType)
	info = protowire.AppendVarint(info, 0)
	out = protowire.AppendTag(out, 4, protowire.BytesType)
	return protowire.AppendBytes(out, info)
}

func appendPackedSint64(out []byte, num protowire.Number, values []int64) []byte {
	var packed []byte
	for _, v := range values {
		packed = protowire.AppendVarint(packed, protowire.EncodeZigZag(v))
	}
	out = protowire.AppendTag(out, num, protowire.BytesType)
	return protowire.AppendBytes(out, packed)
}

func appendPackedVarint(out []byte, num protowire.Number, values []int64) []byte {
	var packed []byte
	for _, v := range values {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	out = protowire.AppendTag(out, num, protowire.BytesType)
	return protowire.AppendBytes(out, packed)
}

// DeltaEncode turns absolute values into the first value followed by
// successive differences.
func DeltaEncode(values []int64) []int64 {
	deltas := make([]int64, len(values))
	var previous int64
	for i, v := range values {
		deltas[i] = v - previous
		previous = v
	}
	return deltas
}
