package parser

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/paulmach/orb"

	"github.com/streetharvest/streetnet/internal/clip"
	"github.com/streetharvest/streetnet/internal/pbf"
	"github.com/streetharvest/streetnet/internal/pbf/pbftest"
)

func decodeBlock(t *testing.T, b pbftest.Block) *pbf.PrimitiveBlock {
	t.Helper()
	block, err := pbf.DecodePrimitiveBlock(pbftest.EncodePrimitiveBlock(b))
	if err != nil {
		t.Fatalf("DecodePrimitiveBlock() error = %v", err)
	}
	return block
}

// TestDecodeNodes tests the granularity/offset transform for both node encodings
func TestDecodeNodes(t *testing.T) {
	block := decodeBlock(t, pbftest.Block{
		Granularity: 1000,
		LatOffset:   500,
		LonOffset:   -500,
		DenseNodes: []pbftest.Node{
			{ID: 5, Lat: 42_000_000, Lon: -71_000_000},
			{ID: 3, Lat: 42_000_100, Lon: -71_000_100},
			{ID: 9, Lat: 42_000_050, Lon: -70_999_900},
		},
		Nodes: []pbftest.Node{{ID: 100, Lat: -1_000, Lon: 2_000}},
	})

	got, err := Decode(block, 4, nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	want := map[int64]orb.Point{
		5:   {float64(-500+1000*-71_000_000) / 1e9, float64(500+1000*42_000_000) / 1e9},
		3:   {float64(-500+1000*-71_000_100) / 1e9, float64(500+1000*42_000_100) / 1e9},
		9:   {float64(-500+1000*-70_999_900) / 1e9, float64(500+1000*42_000_050) / 1e9},
		100: {float64(-500+1000*2_000) / 1e9, float64(500+1000*-1_000) / 1e9},
	}
	if len(got.Nodes) != len(want) {
		t.Fatalf("decoded %d nodes, want %d", len(got.Nodes), len(want))
	}
	for id, point := range want {
		if got.Nodes[id] != point {
			t.Errorf("node %d = %v, want %v", id, got.Nodes[id], point)
		}
	}
	if got.Index != 4 {
		t.Errorf("Index = %d, want 4", got.Index)
	}
	if got.Stats.NodesDecoded != 4 || got.Stats.NodesKept != 4 {
		t.Errorf("Stats = %+v", got.Stats)
	}
}

// TestDecodeNodeCollision tests that an individually encoded node replaces a dense one
func TestDecodeNodeCollision(t *testing.T) {
	block := decodeBlock(t, pbftest.Block{
		DenseNodes: []pbftest.Node{{ID: 1, Lat: 10, Lon: 10}},
		Nodes:      []pbftest.Node{{ID: 1, Lat: 20, Lon: 20}},
	})
	// plain nodes group first, so the replacement does not depend on group order
	block.Groups[0], block.Groups[1] = block.Groups[1], block.Groups[0]

	got, err := Decode(block, 0, nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if want := (orb.Point{20 * 100 / 1e9, 20 * 100 / 1e9}); got.Nodes[1] != want {
		t.Errorf("node 1 = %v, want %v", got.Nodes[1], want)
	}
}

// TestDecodeHighwayFilter tests that only ways keyed highway become candidates
func TestDecodeHighwayFilter(t *testing.T) {
	block := decodeBlock(t, pbftest.Block{
		DenseNodes: []pbftest.Node{{ID: 1}, {ID: 2}},
		Ways: []pbftest.Way{
			{ID: 10, NodeIDs: []int64{1, 2}, Tags: []pbftest.Tag{pbftest.Highway}},
			{ID: 11, NodeIDs: []int64{1, 2}, Tags: []pbftest.Tag{{Key: "building", Value: "yes"}}},
			{ID: 12, NodeIDs: []int64{2, 1}},
			// highway as a value, not a key
			{ID: 13, NodeIDs: []int64{1, 2}, Tags: []pbftest.Tag{{Key: "note", Value: "highway"}}},
			{ID: 14, NodeIDs: []int64{2, 1, 2}, Tags: []pbftest.Tag{{Key: "name", Value: "A"}, {Key: "highway", Value: "service"}}},
		},
	})

	got, err := Decode(block, 0, nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	var ids []int64
	for _, way := range got.Ways {
		ids = append(ids, way.ID)
	}
	if want := []int64{10, 14}; !reflect.DeepEqual(ids, want) {
		t.Errorf("candidate ways = %v, want %v", ids, want)
	}
	if want := []int64{2, 1, 2}; !reflect.DeepEqual(got.Ways[1].NodeIDs, want) {
		t.Errorf("way 14 node ids = %v, want %v", got.Ways[1].NodeIDs, want)
	}
	if got.Stats.WaysSeen != 5 || got.Stats.WaysKept != 2 {
		t.Errorf("Stats = %+v", got.Stats)
	}
}

// TestDecodeWithoutHighwayKey tests a block whose string table lacks the key
func TestDecodeWithoutHighwayKey(t *testing.T) {
	block := decodeBlock(t, pbftest.Block{
		DenseNodes: []pbftest.Node{{ID: 1}, {ID: 2}},
		Ways:       []pbftest.Way{{ID: 10, NodeIDs: []int64{1, 2}, Tags: []pbftest.Tag{{Key: "waterway", Value: "river"}}}},
	})

	got, err := Decode(block, 0, nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got.Ways) != 0 {
		t.Errorf("got %d ways, want none", len(got.Ways))
	}
	if len(got.Nodes) != 2 {
		t.Errorf("got %d nodes, want 2", len(got.Nodes))
	}
}

// TestDecodeClipsNodes tests that nodes outside the boundary are not returned
func TestDecodeClipsNodes(t *testing.T) {
	boundary, err := clip.NewPolygon(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0.0001, 0.0001}})
	if err != nil {
		t.Fatal(err)
	}
	block := decodeBlock(t, pbftest.Block{
		DenseNodes: []pbftest.Node{
			{ID: 1, Lat: 500, Lon: 500},
			{ID: 2, Lat: 1000, Lon: 1000},
			{ID: 3, Lat: 1500, Lon: 500},
		},
		Ways: []pbftest.Way{{ID: 1, NodeIDs: []int64{1, 2, 3}, Tags: []pbftest.Tag{pbftest.Highway}}},
	})

	got, err := Decode(block, 0, boundary)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	for id, point := range got.Nodes {
		if !boundary.Contains(point) {
			t.Errorf("node %d at %v outside boundary", id, point)
		}
	}
	if _, ok := got.Nodes[3]; ok {
		t.Error("node 3 kept, want clipped")
	}
	if len(got.Nodes) != 2 {
		t.Errorf("kept %d nodes, want 2", len(got.Nodes))
	}
	// way ids are clipped later, when lines are built
	if len(got.Ways) != 1 || len(got.Ways[0].NodeIDs) != 3 {
		t.Errorf("ways = %+v", got.Ways)
	}
}

// TestDecodeMalformed tests inconsistent arrays inside a decoded block
func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		block *pbf.PrimitiveBlock
	}{
		{
			name: "dense arrays of unequal length",
			block: &pbf.PrimitiveBlock{
				Granularity: 100,
				Groups: []pbf.PrimitiveGroup{{Dense: &pbf.DenseNodes{
					ID: []int64{1, 1}, Lat: []int64{0, 0}, Lon: []int64{0},
				}}},
			},
		},
		{
			name: "way keys without values",
			block: &pbf.PrimitiveBlock{
				Granularity: 100,
				StringTable: [][]byte{{}, []byte("highway")},
				Groups: []pbf.PrimitiveGroup{{Ways: []pbf.Way{
					{ID: 1, Keys: []uint32{1}, Refs: []int64{1, 1}},
				}}},
			},
		},
		{
			name: "way keys without values, no highway in table",
			block: &pbf.PrimitiveBlock{
				Granularity: 100,
				StringTable: [][]byte{{}, []byte("building")},
				Groups: []pbf.PrimitiveGroup{{Ways: []pbf.Way{
					{ID: 1, Keys: []uint32{1}, Refs: []int64{1, 1}},
				}}},
			},
		},
		{
			name: "non-highway way with extra values",
			block: &pbf.PrimitiveBlock{
				Granularity: 100,
				StringTable: [][]byte{{}, []byte("highway"), []byte("building"), []byte("yes")},
				Groups: []pbf.PrimitiveGroup{{Ways: []pbf.Way{
					{ID: 1, Keys: []uint32{1}, Vals: []uint32{3}, Refs: []int64{1, 1}},
					{ID: 2, Keys: []uint32{2}, Vals: []uint32{3, 3}, Refs: []int64{1, 1}},
				}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.block, 2, nil)
			if !errors.Is(err, pbf.ErrMalformed) {
				t.Errorf("Decode() error = %v, want ErrMalformed", err)
			}
		})
	}
}

// TestDecodeDenseDeltas tests that delta-encoded dense arrays decode to the
// absolute ids and coordinates they were built from
func TestDecodeDenseDeltas(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		n := 1 + rng.Intn(50)
		ids := make([]int64, n)
		lats := make([]int64, n)
		lons := make([]int64, n)
		id := rng.Int63n(1 << 40)
		for j := range ids {
			id += 1 + rng.Int63n(1000)
			ids[j] = id
			lats[j] = rng.Int63n(1_800_000_000) - 900_000_000
			lons[j] = rng.Int63n(3_600_000_000) - 1_800_000_000
		}

		block := &pbf.PrimitiveBlock{
			Granularity: 100,
			Groups: []pbf.PrimitiveGroup{{Dense: &pbf.DenseNodes{
				ID:  DeltaEncode(ids),
				Lat: DeltaEncode(lats),
				Lon: DeltaEncode(lons),
			}}},
		}
		out, err := Decode(block, 0, nil)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if len(out.Nodes) != n {
			t.Fatalf("decoded %d nodes, want %d", len(out.Nodes), n)
		}
		for j, id := range ids {
			want := orb.Point{float64(100*lons[j]) / 1e9, float64(100*lats[j]) / 1e9}
			if got, ok := out.Nodes[id]; !ok || got != want {
				t.Fatalf("node %d = %v (found %v), want %v", id, got, ok, want)
			}
		}
	}
}
