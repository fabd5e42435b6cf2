package clip

import (
	"github.com/paulmach/orb"

	"github.com/streetharvest/streetnet/internal/osm"
)

// Nodes returns the nodes of nodes that lie inside boundary.
func Nodes(nodes osm.Nodes, boundary Containment) osm.Nodes {
	kept := make(osm.Nodes, len(nodes)/2)
	for id, point := range nodes {
		if boundary.Contains(point) {
			kept[id] = point
		}
	}
	return kept
}

// NodeIndex resolves the node ids of a way to positions.
type NodeIndex interface {
	// Lookup returns the position of node id as seen by a way produced
	// in block.
	Lookup(block int, id int64) (orb.Point, bool)
}

// GlobalIndex resolves every way against one merged node table.
type GlobalIndex osm.Nodes

// NewGlobalIndex merges the nodes of all blocks, in slice order.
func NewGlobalIndex(blocks []*osm.Block) GlobalIndex {
	size := 0
	for _, block := range blocks {
		size += len(block.Nodes)
	}
	merged := make(osm.Nodes, size)
	for _, block := range blocks {
		merged.Merge(block.Nodes)
	}
	return GlobalIndex(merged)
}

func (g GlobalIndex) Lookup(_ int, id int64) (orb.Point, bool) {
	point, ok := g[id]
	return point, ok
}

// BlockIndex resolves a way only against the nodes of its own block.
// Nodes decoded in other blocks are invisible to it.
type BlockIndex map[int]osm.Nodes

// NewBlockIndex keys each block's nodes by block index.
func NewBlockIndex(blocks []*osm.Block) BlockIndex {
	index := make(BlockIndex, len(blocks))
	for _, block := range blocks {
		index[block.Index] = block.Nodes
	}
	return index
}

func (b BlockIndex) Lookup(block int, id int64) (orb.Point, bool) {
	point, ok := b[block][id]
	return point, ok
}

// Line maps the resolvable node ids of way to positions, in way order.
// Ids that do not resolve were clipped away or never decoded and are
// skipped. ok is false when fewer than two vertices remain.
func Line(way osm.Way, index NodeIndex) (line orb.LineString, ok bool) {
	for _, id := range way.NodeIDs {
		if point, found := index.Lookup(way.Block, id); found {
			line = append(line, point)
		}
	}
	if len(line) < 2 {
		return nil, false
	}
	return line, true
}

// Lines builds one line per way with at least two resolvable vertices.
func Lines(ways []osm.Way, index NodeIndex) orb.MultiLineString {
	lines := make(orb.MultiLineString, 0, len(ways))
	for _, way := range ways {
		if line, ok := Line(way, index); ok {
			lines = append(lines, line)
		}
	}
	return lines
}
