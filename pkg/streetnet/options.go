package streetnet

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// NodeScope controls which decoded nodes a way may reference.
type NodeScope int

const (
	// NodeScopeGlobal merges the nodes of every block into one table
	// before ways are resolved, so a way may reference nodes stored in
	// any block of the file.
	NodeScopeGlobal NodeScope = iota

	// NodeScopeBlock resolves each way only against the nodes of the
	// block that contained it. Ways whose nodes live in other blocks lose
	// those vertices.
	NodeScopeBlock
)

// String returns the configuration name of the scope.
func (s NodeScope) String() string {
	switch s {
	case NodeScopeGlobal:
		return "global"
	case NodeScopeBlock:
		return "block"
	default:
		return fmt.Sprintf("NodeScope(%d)", int(s))
	}
}

// ParseNodeScope parses "global" or "block".
func ParseNodeScope(s string) (NodeScope, error) {
	switch s {
	case "global":
		return NodeScopeGlobal, nil
	case "block":
		return NodeScopeBlock, nil
	default:
		return 0, fmt.Errorf("unknown node scope %q (want global or block)", s)
	}
}

// Options configures street network extraction.
type Options struct {
	// Workers specifies the number of decode goroutines, and the number
	// of shards ways are split into when lines are built.
	// If 0, defaults to runtime.NumCPU() + 1.
	Workers int

	// NodeScope selects how way node ids are resolved.
	// Default: NodeScopeGlobal
	NodeScope NodeScope

	// Logger receives progress and summary records.
	// If nil, nothing is logged.
	Logger *slog.Logger

	// Registerer, when set, receives the extraction metrics. Readers
	// sharing a Registerer share the metrics.
	Registerer prometheus.Registerer

	// Progress is an optional callback invoked after each decoded block
	// with the number of blocks decoded so far. It is called from a
	// single goroutine.
	Progress func(blocks int)
}

// DefaultOptions returns extraction options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Workers:   runtime.NumCPU() + 1,
		NodeScope: NodeScopeGlobal,
	}
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.NumCPU() + 1
	}
	return o.Workers
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}
