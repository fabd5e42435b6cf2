// Package metrics instruments street network extraction with Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/streetharvest/streetnet/internal/osm"
)

// Metrics holds all Prometheus metrics for an extraction. A nil *Metrics
// records nothing.
type Metrics struct {
	BlocksDecoded *prometheus.CounterVec
	BytesRead     prometheus.Counter
	Nodes         *prometheus.CounterVec
	Ways          *prometheus.CounterVec
	LinesBuilt    prometheus.Counter
	PhaseDuration *prometheus.HistogramVec
	Extractions   *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the provided registry.
// Calling it twice with the same registry returns metrics backed by the
// same collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	blocksDecoded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "streetnet_blocks_decoded_total",
		Help: "Primitive blocks decoded, by blob compression",
	}, []string{"compression"})

	bytesRead := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "streetnet_bytes_read_total",
		Help: "Compressed blob bytes read from PBF files",
	})

	nodes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "streetnet_nodes_total",
		Help: "Decoded nodes, by clip result",
	}, []string{"result"})

	ways := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "streetnet_ways_total",
		Help: "Decoded ways, by highway filter result",
	}, []string{"result"})

	linesBuilt := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "streetnet_lines_built_total",
		Help: "Street lines with at least two vertices inside the boundary",
	})

	phaseDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streetnet_phase_duration_seconds",
		Help:    "Wall time of each extraction phase",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"phase"})

	extractions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "streetnet_extractions_total",
		Help: "Street network extractions, by outcome",
	}, []string{"status"})

	return &Metrics{
		BlocksDecoded: register(reg, blocksDecoded),
		BytesRead:     register(reg, bytesRead),
		Nodes:         register(reg, nodes),
		Ways:          register(reg, ways),
		LinesBuilt:    register(reg, linesBuilt),
		PhaseDuration: register(reg, phaseDuration),
		Extractions:   register(reg, extractions),
	}
}

// register adds c to reg. If an identical collector is already registered
// it is returned instead, so several readers can report to one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveBlock records one decoded block.
func (m *Metrics) ObserveBlock(compression string, compressedBytes int, stats osm.Stats) {
	if m == nil {
		return
	}
	m.BlocksDecoded.WithLabelValues(compression).Inc()
	m.BytesRead.Add(float64(compressedBytes))
	m.Nodes.WithLabelValues("kept").Add(float64(stats.NodesKept))
	m.Nodes.WithLabelValues("clipped").Add(float64(stats.NodesDecoded - stats.NodesKept))
	m.Ways.WithLabelValues("kept").Add(float64(stats.WaysKept))
	m.Ways.WithLabelValues("filtered").Add(float64(stats.WaysSeen - stats.WaysKept))
}

// ObservePhase records the duration of a phase ("decode" or "lines").
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// ObserveExtraction records the outcome of one extraction.
func (m *Metrics) ObserveExtraction(err error, lines int) {
	if m == nil {
		return
	}
	if err != nil {
		m.Extractions.WithLabelValues("error").Inc()
		return
	}
	m.Extractions.WithLabelValues("ok").Inc()
	m.LinesBuilt.Add(float64(lines))
}
