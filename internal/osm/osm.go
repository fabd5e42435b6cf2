// Package osm holds the decoded street-network primitives shared by the
// decoder, the clipper and the orchestrator.
package osm

import (
	"github.com/paulmach/orb"
)

// HighwayKey is the tag key that marks a way as part of the street
// network. Tag values are not inspected.
const HighwayKey = "highway"

// Nodes maps node ids to their position in degrees (lon, lat).
type Nodes map[int64]orb.Point

// Merge copies every node of src into n. Entries already in n are
// overwritten.
func (n Nodes) Merge(src Nodes) {
	for id, point := range src {
		n[id] = point
	}
}

// Way is a candidate street: an ordered list of absolute node ids.
type Way struct {
	ID int64

	// Block is the index of the primitive block that produced the way.
	Block int

	NodeIDs []int64
}

// Stats counts what one block contributed.
type Stats struct {
	NodesDecoded int
	NodesKept    int
	WaysSeen     int
	WaysKept     int
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.NodesDecoded += other.NodesDecoded
	s.NodesKept += other.NodesKept
	s.WaysSeen += other.WaysSeen
	s.WaysKept += other.WaysKept
}

// Block is the decoded and clipped content of one primitive block.
type Block struct {
	Index int

	// Nodes holds only the nodes inside the clip polygon.
	Nodes Nodes

	// Ways holds the candidate streets, unclipped.
	Ways []Way

	Stats Stats
}
