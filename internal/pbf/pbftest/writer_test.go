package pbftest

import (
	"bytes"
	"io"
	"math"
	"reflect"
	"testing"

	"github.com/qedus/osmpbf"

	"github.com/streetharvest/streetnet/internal/pbf"
)

// TestWriterConformance decodes writer output with an independent PBF
// decoder, so fixtures cannot drift into a dialect only our reader accepts.
func TestWriterConformance(t *testing.T) {
	f := File{
		Header: DefaultHeader(),
		Blocks: []Block{
			{
				DenseNodes: []Node{
					{ID: 1, Lat: 423_000_000, Lon: -710_000_000},
					{ID: 2, Lat: 423_100_000, Lon: -710_100_000, Tags: []Tag{{Key: "crossing", Value: "zebra"}}},
				},
				Ways: []Way{{ID: 100, NodeIDs: []int64{1, 2}, Tags: []Tag{Highway, {Key: "name", Value: "Main Street"}}}},
			},
			{
				Granularity: 1000,
				LatOffset:   500,
				Nodes:       []Node{{ID: 3, Lat: 42_000_000, Lon: -71_000_000}},
			},
		},
	}
	data, err := f.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	decoder := osmpbf.NewDecoder(bytes.NewReader(data))
	if err := decoder.Start(2); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	nodes := make(map[int64]*osmpbf.Node)
	var ways []*osmpbf.Way
	for {
		v, err := decoder.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		switch v := v.(type) {
		case *osmpbf.Node:
			nodes[v.ID] = v
		case *osmpbf.Way:
			ways = append(ways, v)
		}
	}

	wantNodes := map[int64][2]float64{
		1: {42.3, -71.0},
		2: {42.31, -71.01},
		3: {42.0000005, -71.0},
	}
	if len(nodes) != len(wantNodes) {
		t.Fatalf("decoded %d nodes, want %d", len(nodes), len(wantNodes))
	}
	for id, want := range wantNodes {
		node, ok := nodes[id]
		if !ok {
			t.Errorf("node %d missing", id)
			continue
		}
		if math.Abs(node.Lat-want[0]) > 1e-9 || math.Abs(node.Lon-want[1]) > 1e-9 {
			t.Errorf("node %d = (%v, %v), want (%v, %v)", id, node.Lat, node.Lon, want[0], want[1])
		}
	}
	if nodes[2].Tags["crossing"] != "zebra" {
		t.Errorf("node 2 tags = %v", nodes[2].Tags)
	}

	if len(ways) != 1 {
		t.Fatalf("decoded %d ways, want 1", len(ways))
	}
	if !reflect.DeepEqual(ways[0].NodeIDs, []int64{1, 2}) {
		t.Errorf("way refs = %v, want [1 2]", ways[0].NodeIDs)
	}
	if ways[0].Tags["highway"] != "residential" || ways[0].Tags["name"] != "Main Street" {
		t.Errorf("way tags = %v", ways[0].Tags)
	}
}

// TestFrameCompressions tests that every compression frames into a readable file
func TestFrameCompressions(t *testing.T) {
	for _, compression := range []pbf.Compression{
		pbf.CompressionNone, pbf.CompressionZlib, pbf.CompressionZstd, pbf.CompressionLZ4,
	} {
		t.Run(compression.String(), func(t *testing.T) {
			path := Write(t, File{
				Header:      DefaultHeader(),
				Compression: compression,
				Blocks:      []Block{{Ways: []Way{{ID: 1, NodeIDs: []int64{1, 2}}}}},
			})
			r, err := pbf.Open(path)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer r.Close()
			if _, err := r.Next(); err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			if _, err := r.Next(); err != io.EOF {
				t.Errorf("Next() = %v, want io.EOF", err)
			}
		})
	}
}

// TestDeltaEncode tests the delta encoding used by the writer
func TestDeltaEncode(t *testing.T) {
	got := DeltaEncode([]int64{5, 7, 3, 3})
	if want := []int64{5, 2, -4, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("DeltaEncode() = %v, want %v", got, want)
	}
}
