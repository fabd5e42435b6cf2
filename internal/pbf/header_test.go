package pbf_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/streetharvest/streetnet/internal/pbf"
	"github.com/streetharvest/streetnet/internal/pbf/pbftest"
)

// TestDecodeHeader tests bbox, feature and replication decoding
func TestDecodeHeader(t *testing.T) {
	data := pbftest.EncodeHeader(pbftest.Header{
		RequiredFeatures: []string{"OsmSchema-V0.6", "DenseNodes"},
		WritingProgram:   "osmium/1.16",
		Source:           "planet",
		BBox:             &[4]int64{-71_100_000_000, -70_900_000_000, 42_400_000_000, 42_300_000_000},
	})
	data = protowire.AppendTag(data, 5, protowire.BytesType)
	data = protowire.AppendString(data, "Sort.Type_then_ID")
	data = protowire.AppendTag(data, 32, protowire.VarintType)
	data = protowire.AppendVarint(data, 1700000000)
	data = protowire.AppendTag(data, 33, protowire.VarintType)
	data = protowire.AppendVarint(data, 4242)
	data = protowire.AppendTag(data, 34, protowire.BytesType)
	data = protowire.AppendString(data, "https://example.org/replication")

	header, err := pbf.DecodeHeader(data)
	if err != nil {
		t.Fatalf("DecodeHeader() error = %v", err)
	}

	if header.WritingProgram != "osmium/1.16" || header.Source != "planet" {
		t.Errorf("WritingProgram, Source = %q, %q", header.WritingProgram, header.Source)
	}
	if len(header.RequiredFeatures) != 2 || len(header.OptionalFeatures) != 1 {
		t.Errorf("features = %v / %v", header.RequiredFeatures, header.OptionalFeatures)
	}
	if header.BBox == nil {
		t.Fatal("BBox = nil")
	}
	want := pbf.BBox{Left: -71.1, Right: -70.9, Top: 42.4, Bottom: 42.3}
	got := *header.BBox
	for _, pair := range [][2]float64{
		{got.Left, want.Left}, {got.Right, want.Right}, {got.Top, want.Top}, {got.Bottom, want.Bottom},
	} {
		if math.Abs(pair[0]-pair[1]) > 1e-9 {
			t.Errorf("BBox = %+v, want %+v", got, want)
			break
		}
	}
	if !header.ReplicationTimestamp.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("ReplicationTimestamp = %v", header.ReplicationTimestamp)
	}
	if header.ReplicationSequence != 4242 {
		t.Errorf("ReplicationSequence = %d, want 4242", header.ReplicationSequence)
	}
	if header.ReplicationBaseURL != "https://example.org/replication" {
		t.Errorf("ReplicationBaseURL = %q", header.ReplicationBaseURL)
	}
}

// TestDecodeHeaderFeatures tests required feature validation
func TestDecodeHeaderFeatures(t *testing.T) {
	tests := []struct {
		name     string
		features []string
		wantErr  bool
	}{
		{"none", nil, false},
		{"schema and dense", []string{"OsmSchema-V0.6", "DenseNodes"}, false},
		{"historical", []string{"OsmSchema-V0.6", "HistoricalInformation"}, false},
		{"locations on ways", []string{"OsmSchema-V0.6", "LocationsOnWays"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pbf.DecodeHeader(pbftest.EncodeHeader(pbftest.Header{RequiredFeatures: tt.features}))
			var featureErr *pbf.UnsupportedFeatureError
			if got := errors.As(err, &featureErr); got != tt.wantErr {
				t.Errorf("DecodeHeader() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestDecodeHeaderMalformed tests a header with a wrongly typed field
func TestDecodeHeaderMalformed(t *testing.T) {
	data := protowire.AppendTag(nil, 4, protowire.VarintType)
	data = protowire.AppendVarint(data, 1)

	if _, err := pbf.DecodeHeader(data); !errors.Is(err, pbf.ErrMalformed) {
		t.Errorf("DecodeHeader() error = %v, want ErrMalformed", err)
	}
}
