package streetnet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/streetharvest/streetnet/internal/clip"
	"github.com/streetharvest/streetnet/internal/metrics"
	"github.com/streetharvest/streetnet/internal/pbf"
)

// Header describes a PBF file.
type Header = pbf.Header

// BBox is a header bounding box in degrees.
type BBox = pbf.BBox

// Stats summarizes one street network computation.
type Stats struct {
	Blocks       int // primitive blocks decoded
	NodesDecoded int // nodes decoded, before clipping
	NodesKept    int // nodes inside the boundary
	WaysSeen     int // ways decoded
	WaysKept     int // ways with a highway key
	Lines        int // lines in the street network

	// BytesRead counts the data blobs read by the successful computation,
	// before decompression. The header and abandoned attempts are not
	// included.
	BytesRead int64

	DecodeDuration time.Duration
	Duration       time.Duration
}

// Reader extracts the street network of one PBF file, clipped to one
// boundary.
//
// The file stays open until Close. The street network is computed on the
// first call to StreetNetwork and cached for the lifetime of the Reader;
// a failed computation is not cached and the next call starts over.
//
// Example:
//
//	boundary, err := streetnet.LoadBoundary("cambridge.geojson")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := streetnet.Open("massachusetts.osm.pbf", boundary, streetnet.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	streets, err := r.StreetNetwork(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d streets\n", len(streets))
type Reader struct {
	path     string
	file     *pbf.Reader
	boundary *clip.Polygon
	opts     Options
	metrics  *metrics.Metrics

	mu       sync.Mutex
	network  orb.MultiLineString
	stats    Stats
	computed bool
	attempts int
	closed   bool
}

// Open opens the PBF file at path and reads its header. boundary must be
// an orb.Polygon, orb.MultiPolygon, orb.Ring or orb.Bound in WGS84
// degrees. The file is released if Open fails.
func Open(path string, boundary orb.Geometry, opts Options) (*Reader, error) {
	polygon, err := clip.NewPolygon(boundary)
	if err != nil {
		return nil, err
	}

	file, err := pbf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pbf: %w", err)
	}

	r := &Reader{
		path:     path,
		file:     file,
		boundary: polygon,
		opts:     opts,
	}
	if opts.Registerer != nil {
		r.metrics = metrics.NewMetrics(opts.Registerer)
	}

	header := file.Header()
	opts.logger().Debug("opened pbf file",
		"path", path,
		"writing_program", header.WritingProgram,
		"required_features", header.RequiredFeatures)
	return r, nil
}

// Header returns the file header decoded by Open.
func (r *Reader) Header() *Header {
	return r.file.Header()
}

// Boundary returns the clip boundary as a multipolygon.
func (r *Reader) Boundary() orb.MultiPolygon {
	return r.boundary.Geometry()
}

// StreetNetwork returns the ways with a highway key, clipped to the
// boundary: one line per way with at least two vertices inside it, in
// the way's vertex order. Lines are ordered by block, then by position in
// the block. Ways crossing the boundary are not split; their outside
// vertices are dropped.
//
// The result is shared between calls and must not be modified.
func (r *Reader) StreetNetwork(ctx context.Context) (orb.MultiLineString, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.computed {
		return r.network, nil
	}
	if r.closed {
		return nil, ErrClosed
	}

	logger := r.opts.logger().With("path", r.path)
	if r.attempts > 0 {
		logger.Debug("retrying street network extraction", "attempt", r.attempts+1)
		if err := r.file.Rewind(); err != nil {
			r.metrics.ObserveExtraction(err, 0)
			return nil, fmt.Errorf("rewind %s: %w", r.path, err)
		}
	}
	r.attempts++
	baseline := r.file.BytesRead()

	e := &extraction{
		file:     r.file,
		boundary: r.boundary,
		workers:  r.opts.workers(),
		scope:    r.opts.NodeScope,
		metrics:  r.metrics,
		progress: r.opts.Progress,
	}
	logger.Debug("extracting street network", "workers", e.workers, "node_scope", e.scope.String())

	network, stats, err := e.run(ctx)
	r.metrics.ObserveExtraction(err, len(network))
	if err != nil {
		logger.Error("street network extraction failed", "error", err)
		return nil, err
	}
	stats.BytesRead = r.file.BytesRead() - baseline

	logger.Info("street network extracted",
		"blocks", stats.Blocks,
		"nodes", stats.NodesKept,
		"ways", stats.WaysKept,
		"lines", stats.Lines,
		"workers", e.workers,
		"duration", stats.Duration)

	r.network = network
	r.stats = stats
	r.computed = true
	return network, nil
}

// Stats returns the summary of the computed street network. It is zero
// until StreetNetwork succeeds.
func (r *Reader) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Close releases the file. A street network computed before Close stays
// available.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}
