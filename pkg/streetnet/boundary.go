package streetnet

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/zeebo/blake3"
)

// LoadBoundary reads a clip boundary from a GeoJSON or WKT file.
//
// GeoJSON may be a bare geometry, a Feature or a FeatureCollection. The
// polygonal geometries of all features are combined into one
// MultiPolygon; other geometries are ignored.
func LoadBoundary(path string) (orb.Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g, err := ParseBoundary(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ParseBoundary parses a GeoJSON or WKT boundary.
func ParseBoundary(data []byte) (orb.Geometry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty boundary")
	}
	if data[0] != '{' {
		g, err := wkt.Unmarshal(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse wkt: %w", err)
		}
		return polygonal([]orb.Geometry{g})
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}

	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("parse geojson: %w", err)
		}
		geometries := make([]orb.Geometry, 0, len(fc.Features))
		for _, f := range fc.Features {
			geometries = append(geometries, f.Geometry)
		}
		return polygonal(geometries)
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("parse geojson: %w", err)
		}
		return polygonal([]orb.Geometry{f.Geometry})
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("parse geojson: %w", err)
		}
		return polygonal([]orb.Geometry{g.Geometry()})
	}
}

// polygonal collects the polygons of geometries. A single polygon is
// returned as is.
func polygonal(geometries []orb.Geometry) (orb.Geometry, error) {
	var mp orb.MultiPolygon
	for _, g := range geometries {
		switch g := g.(type) {
		case orb.Polygon:
			mp = append(mp, g)
		case orb.MultiPolygon:
			mp = append(mp, g...)
		case orb.Collection:
			nested, err := polygonal(g)
			if err == nil {
				mp = append(mp, asMultiPolygon(nested)...)
			}
		}
	}
	switch len(mp) {
	case 0:
		return nil, fmt.Errorf("no polygon in boundary")
	case 1:
		return mp[0], nil
	default:
		return mp, nil
	}
}

func asMultiPolygon(g orb.Geometry) orb.MultiPolygon {
	if p, ok := g.(orb.Polygon); ok {
		return orb.MultiPolygon{p}
	}
	return g.(orb.MultiPolygon)
}

// ParseBBox parses "minlon,minlat,maxlon,maxlat".
func ParseBBox(s string) (orb.Bound, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox %q: want minlon,minlat,maxlon,maxlat", s)
	}
	var v [4]float64
	for i, field := range fields {
		f, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return orb.Bound{}, fmt.Errorf("bbox %q: minimum not below maximum", s)
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

// PolygonKey returns a stable key for a boundary: the hex BLAKE3 digest of
// its WKB encoding. Equal geometries give equal keys, so extract caches can
// memoize by it.
func PolygonKey(g orb.Geometry) (string, error) {
	if b, ok := g.(orb.Bound); ok {
		g = b.ToPolygon()
	}
	data, err := wkb.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("encode boundary: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
