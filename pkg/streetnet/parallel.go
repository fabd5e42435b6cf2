package streetnet

import (
	"context"
	"io"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/streetharvest/streetnet/internal/clip"
	"github.com/streetharvest/streetnet/internal/metrics"
	"github.com/streetharvest/streetnet/internal/osm"
	"github.com/streetharvest/streetnet/internal/parser"
	"github.com/streetharvest/streetnet/internal/pbf"
)

// task is one compressed block handed from the coordinator to a worker.
type task struct {
	index int
	blob  *pbf.Blob
}

// decodeTask decompresses, decodes and clips one block. Tests replace it
// to inject worker failures.
var decodeTask = func(t task, boundary clip.Containment) (*osm.Block, error) {
	data, err := t.blob.Decompress()
	if err != nil {
		return nil, err
	}
	block, err := pbf.DecodePrimitiveBlock(data)
	if err != nil {
		return nil, pbf.WithOffset(err, t.blob.Offset)
	}
	out, err := parser.Decode(block, t.index, boundary)
	if err != nil {
		return nil, pbf.WithOffset(err, t.blob.Offset)
	}
	return out, nil
}

// readBlob returns the next data blob of file. Tests replace it to
// inject reader failures.
var readBlob = func(file *pbf.Reader) (*pbf.Blob, error) {
	return file.NextBlob()
}

// extraction holds everything one street network computation needs.
type extraction struct {
	file     *pbf.Reader
	boundary clip.Containment
	workers  int
	scope    NodeScope
	metrics  *metrics.Metrics
	progress func(blocks int)
}

// decodeBlocks runs the first phase. One coordinator goroutine owns the
// file cursor and reads blobs in file order; workers decompress, decode
// and clip them. The returned blocks are sorted by block index.
func (e *extraction) decodeBlocks(ctx context.Context) ([]*osm.Block, error) {
	g, ctx := errgroup.WithContext(ctx)
	tasks := make(chan task, e.workers)
	results := make(chan *osm.Block, e.workers)

	g.Go(func() (err error) {
		defer close(tasks)
		defer recoverWorker("read", -1, &err)
		for index := 0; ; index++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			blob, err := readBlob(e.file)
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case tasks <- task{index: index, blob: blob}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		g.Go(func() (err error) {
			defer wg.Done()
			defer recoverWorker("decode", w, &err)

			for t := range tasks {
				if err := ctx.Err(); err != nil {
					return err
				}
				block, err := decodeTask(t, e.boundary)
				if err != nil {
					return err
				}
				e.metrics.ObserveBlock(t.blob.Compression().String(), t.blob.CompressedSize(), block.Stats)

				select {
				case results <- block:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var blocks []*osm.Block
	for block := range results {
		blocks = append(blocks, block)
		if e.progress != nil {
			e.progress(len(blocks))
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Index < blocks[j].Index
	})
	return blocks, nil
}

// buildLines runs the second phase. Candidate ways of all blocks are
// pooled in block order, split into contiguous shards and turned into
// lines in parallel. Shard outputs are concatenated in shard order.
func (e *extraction) buildLines(ctx context.Context, blocks []*osm.Block) (orb.MultiLineString, error) {
	var ways []osm.Way
	for _, block := range blocks {
		ways = append(ways, block.Ways...)
	}

	var index clip.NodeIndex
	switch e.scope {
	case NodeScopeBlock:
		index = clip.NewBlockIndex(blocks)
	default:
		index = clip.NewGlobalIndex(blocks)
	}

	shards := splitShards(len(ways), e.workers)
	parts := make([]orb.MultiLineString, len(shards))

	g, ctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		g.Go(func() (err error) {
			defer recoverWorker("lines", i, &err)
			if err := ctx.Err(); err != nil {
				return err
			}
			parts[i] = clip.Lines(ways[shard.start:shard.end], index)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, part := range parts {
		total += len(part)
	}
	lines := make(orb.MultiLineString, 0, total)
	for _, part := range parts {
		lines = append(lines, part...)
	}
	return lines, nil
}

// run executes both phases and reports their timings.
func (e *extraction) run(ctx context.Context) (orb.MultiLineString, Stats, error) {
	var stats Stats
	start := time.Now()

	blocks, err := e.decodeBlocks(ctx)
	if err != nil {
		return nil, stats, err
	}
	decoded := time.Now()
	e.metrics.ObservePhase("decode", decoded.Sub(start))

	lines, err := e.buildLines(ctx, blocks)
	if err != nil {
		return nil, stats, err
	}
	e.metrics.ObservePhase("lines", time.Since(decoded))

	stats.Blocks = len(blocks)
	for _, block := range blocks {
		stats.NodesDecoded += block.Stats.NodesDecoded
		stats.NodesKept += block.Stats.NodesKept
		stats.WaysSeen += block.Stats.WaysSeen
		stats.WaysKept += block.Stats.WaysKept
	}
	stats.Lines = len(lines)
	stats.DecodeDuration = decoded.Sub(start)
	stats.Duration = time.Since(start)
	return lines, stats, nil
}

type shard struct {
	start, end int
}

// splitShards divides n items into at most k contiguous shards whose
// sizes differ by at most one.
func splitShards(n, k int) []shard {
	if n == 0 || k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}
	size, extra := n/k, n%k
	shards := make([]shard, 0, k)
	start := 0
	for i := 0; i < k; i++ {
		end := start + size
		if i < extra {
			end++
		}
		shards = append(shards, shard{start: start, end: end})
		start = end
	}
	return shards
}

func recoverWorker(phase string, worker int, err *error) {
	if v := recover(); v != nil {
		*err = &WorkerError{Phase: phase, Worker: worker, Value: v, Stack: debug.Stack()}
	}
}
