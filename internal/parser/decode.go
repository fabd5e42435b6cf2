// Package parser turns decoded primitive blocks into clipped street
// network candidates.
package parser

import (
	"bytes"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/streetharvest/streetnet/internal/clip"
	"github.com/streetharvest/streetnet/internal/osm"
	"github.com/streetharvest/streetnet/internal/pbf"
)

// Decode extracts the nodes and candidate streets of one primitive block.
//
// Nodes from dense groups and from individually encoded nodes are merged
// into one table; an individually encoded node replaces a dense node with
// the same id. Only nodes inside boundary are returned. A nil boundary
// keeps every node.
//
// Ways are kept when one of their keys is "highway". A block whose string
// table lacks that key yields no ways. Way node ids are returned unclipped.
func Decode(block *pbf.PrimitiveBlock, index int, boundary clip.Containment) (*osm.Block, error) {
	t := transform{
		granularity: int64(block.Granularity),
		latOffset:   block.LatOffset,
		lonOffset:   block.LonOffset,
	}
	nodes := make(osm.Nodes)

	for g, group := range block.Groups {
		if group.Dense == nil {
			continue
		}
		if err := decodeDense(group.Dense, t, nodes); err != nil {
			return nil, blockError(index, fmt.Sprintf("group %d: %s", g, err))
		}
	}
	for _, group := range block.Groups {
		for _, node := range group.Nodes {
			nodes[node.ID] = t.point(node.Lat, node.Lon)
		}
	}

	highway, hasHighway := lookupString(block.StringTable, osm.HighwayKey)
	out := &osm.Block{Index: index}
	for g, group := range block.Groups {
		out.Stats.WaysSeen += len(group.Ways)
		for _, way := range group.Ways {
			if len(way.Keys) != len(way.Vals) {
				return nil, blockError(index, fmt.Sprintf("group %d: way %d has %d keys and %d values",
					g, way.ID, len(way.Keys), len(way.Vals)))
			}
			if !hasHighway || !hasKey(way.Keys, highway) {
				continue
			}
			out.Ways = append(out.Ways, osm.Way{
				ID:      way.ID,
				Block:   index,
				NodeIDs: DeltaDecode(way.Refs),
			})
		}
	}

	out.Stats.NodesDecoded = len(nodes)
	out.Stats.WaysKept = len(out.Ways)
	if boundary != nil {
		nodes = clip.Nodes(nodes, boundary)
	}
	out.Nodes = nodes
	out.Stats.NodesKept = len(nodes)
	return out, nil
}

func decodeDense(dense *pbf.DenseNodes, t transform, nodes osm.Nodes) error {
	if len(dense.ID) != len(dense.Lat) || len(dense.ID) != len(dense.Lon) {
		return fmt.Errorf("dense nodes have %d ids, %d latitudes and %d longitudes",
			len(dense.ID), len(dense.Lat), len(dense.Lon))
	}

	ids := DeltaDecode(dense.ID)
	lats := DeltaDecode(dense.Lat)
	lons := DeltaDecode(dense.Lon)
	for i, id := range ids {
		nodes[id] = t.point(lats[i], lons[i])
	}
	return nil
}

// transform converts raw block coordinates to degrees.
type transform struct {
	granularity int64
	latOffset   int64
	lonOffset   int64
}

func (t transform) point(lat, lon int64) orb.Point {
	return orb.Point{
		float64(t.lonOffset+t.granularity*lon) / 1e9,
		float64(t.latOffset+t.granularity*lat) / 1e9,
	}
}

func lookupString(table [][]byte, s string) (uint32, bool) {
	for i, entry := range table {
		if bytes.Equal(entry, []byte(s)) {
			return uint32(i), true
		}
	}
	return 0, false
}

func hasKey(keys []uint32, key uint32) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

func blockError(index int, reason string) error {
	return &pbf.MalformedBlockError{Offset: -1, Reason: fmt.Sprintf("block %d: %s", index, reason)}
}
