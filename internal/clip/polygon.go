// Package clip restricts decoded nodes and ways to a boundary polygon.
//
// Containment convention: a point on the exterior ring of a polygon is
// inside; a point on the ring of a hole is outside. Ways are never split
// where they cross the boundary. Vertices outside are dropped and the
// remaining vertices are joined in their original order.
package clip

import (
	"fmt"
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Containment reports whether a point lies inside a boundary.
type Containment interface {
	Contains(p orb.Point) bool
}

// Polygon is a boundary prepared for repeated point-in-polygon tests. It
// is immutable and safe for concurrent use.
type Polygon struct {
	geometry orb.MultiPolygon
	bound    orb.Bound
	parts    []*part
	tree     *rtreego.Rtree
}

// part is one polygon of a multi-part boundary, stored in the R-tree.
type part struct {
	polygon orb.Polygon
	bound   orb.Bound
}

// Bounds implements rtreego.Spatial.
func (p *part) Bounds() rtreego.Rect {
	return boundRect(p.bound)
}

// boundRect converts a bound to an R-tree rectangle. R-tree rectangles
// need non-zero sides, so degenerate bounds are widened.
func boundRect(b orb.Bound) rtreego.Rect {
	const epsilon = 1e-9
	lonLength := math.Max(b.Max[0]-b.Min[0], epsilon)
	latLength := math.Max(b.Max[1]-b.Min[1], epsilon)

	rect, _ := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{lonLength, latLength})
	return rect
}

// NewPolygon prepares g for clipping. g must be an orb.Polygon,
// orb.MultiPolygon, orb.Ring or orb.Bound in WGS84 degrees. Unclosed
// rings are closed.
func NewPolygon(g orb.Geometry) (*Polygon, error) {
	var mp orb.MultiPolygon
	switch g := g.(type) {
	case orb.Polygon:
		mp = orb.MultiPolygon{g}
	case orb.MultiPolygon:
		mp = g
	case orb.Ring:
		mp = orb.MultiPolygon{orb.Polygon{g}}
	case orb.Bound:
		mp = orb.MultiPolygon{g.ToPolygon()}
	case nil:
		return nil, &InvalidPolygonError{Part: -1, Reason: "no geometry"}
	default:
		return nil, &InvalidPolygonError{Part: -1, Reason: fmt.Sprintf("unsupported geometry type %s", g.GeoJSONType())}
	}
	if len(mp) == 0 {
		return nil, &InvalidPolygonError{Part: -1, Reason: "empty multipolygon"}
	}

	p := &Polygon{
		geometry: make(orb.MultiPolygon, 0, len(mp)),
		tree:     rtreego.NewTree(2, 25, 50),
	}
	for i, polygon := range mp {
		prepared, err := preparePolygon(polygon)
		if err != nil {
			return nil, &InvalidPolygonError{Part: i, Reason: "invalid ring", Err: err}
		}
		pt := &part{polygon: prepared, bound: prepared.Bound()}
		p.geometry = append(p.geometry, prepared)
		p.parts = append(p.parts, pt)
		p.tree.Insert(pt)
		if i == 0 {
			p.bound = pt.bound
		} else {
			p.bound = p.bound.Union(pt.bound)
		}
	}
	return p, nil
}

func preparePolygon(polygon orb.Polygon) (orb.Polygon, error) {
	if len(polygon) == 0 {
		return nil, fmt.Errorf("polygon has no exterior ring")
	}
	prepared := make(orb.Polygon, 0, len(polygon))
	for r, ring := range polygon {
		if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
			ring = append(ring.Clone(), ring[0])
		}
		if n := distinctVertices(ring); n < 3 {
			return nil, fmt.Errorf("ring %d has %d distinct vertices, need at least 3", r, n)
		}
		for _, point := range ring {
			if err := ValidateCoordinate(point.Lat(), point.Lon()); err != nil {
				return nil, fmt.Errorf("ring %d: %w", r, err)
			}
		}
		prepared = append(prepared, ring)
	}
	return prepared, nil
}

// distinctVertices counts the different points of a closed ring.
func distinctVertices(ring orb.Ring) int {
	if len(ring) == 0 {
		return 0
	}
	seen := make(map[orb.Point]struct{}, len(ring))
	for _, point := range ring[:len(ring)-1] {
		seen[point] = struct{}{}
	}
	return len(seen)
}

// Geometry returns the prepared boundary as a multipolygon.
func (p *Polygon) Geometry() orb.MultiPolygon {
	return p.geometry
}

// Bound returns the bounding box of the whole boundary.
func (p *Polygon) Bound() orb.Bound {
	return p.bound
}

// Contains reports whether point lies inside any part of the boundary.
func (p *Polygon) Contains(point orb.Point) bool {
	if !p.bound.Contains(point) {
		return false
	}
	if len(p.parts) == 1 {
		return planar.PolygonContains(p.parts[0].polygon, point)
	}

	for _, spatial := range p.tree.SearchIntersect(rtreego.Point{point[0], point[1]}.ToRect(1e-12)) {
		pt := spatial.(*part)
		if pt.bound.Contains(point) && planar.PolygonContains(pt.polygon, point) {
			return true
		}
	}
	return false
}
