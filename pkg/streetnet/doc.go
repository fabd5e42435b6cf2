// Package streetnet extracts the street network of an OpenStreetMap PBF
// extract, clipped to a boundary polygon.
//
// A street is any way carrying a "highway" key, whatever its value. The
// result is one line per street with at least two vertices inside the
// boundary, in WGS84 degrees.
//
// # Basic Usage
//
//	boundary, err := streetnet.ParseBBox("-71.12,42.35,-71.05,42.40")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r, err := streetnet.Open("massachusetts.osm.pbf", boundary, streetnet.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	streets, err := r.StreetNetwork(ctx)
//
// # Clipping
//
// A node on the exterior ring of the boundary is inside; a node on the
// ring of a hole is outside. Streets are not split where they cross the
// boundary: vertices outside are dropped and the remaining vertices are
// joined in order, so a street leaving and re-entering the boundary gets
// a segment cutting across the outside part.
//
// # Parallelism
//
// Extraction runs in two phases. In the first, one goroutine reads blocks
// from the file in order while Options.Workers goroutines decompress,
// decode and clip them. In the second, the candidate streets of all
// blocks are split into contiguous shards that are turned into lines in
// parallel. The result does not depend on the number of workers.
//
// By default nodes of all blocks are merged before streets are resolved,
// so a street may reference nodes stored in any block. NodeScopeBlock
// limits each street to the nodes of its own block.
//
// # Errors
//
// A malformed block, an unsupported compression or a worker panic aborts
// the whole extraction; nothing partial is returned. Blocks without any
// highway key simply contribute no streets.
package streetnet
