package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/streetharvest/streetnet/internal/config"
	"github.com/streetharvest/streetnet/pkg/streetnet"
)

// progressInterval is the number of blocks between debug progress records.
const progressInterval = 100

type extractFlags struct {
	configPath  string
	boundary    string
	bbox        string
	output      string
	format      string
	workers     int
	nodeScope   string
	logLevel    string
	logFormat   string
	metricsFile string
}

func newExtractFlagSet(f *extractFlags, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("streetnet extract", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML config file (default $"+config.EnvVar+")")
	fs.StringVarP(&f.boundary, "boundary", "b", "", "GeoJSON or WKT file with the clip polygon")
	fs.StringVar(&f.bbox, "bbox", "", "clip box as minlon,minlat,maxlon,maxlat")
	fs.StringVarP(&f.output, "output", "o", "", "output file (default stdout)")
	fs.StringVarP(&f.format, "format", "f", "", "output format: geojson or cbor")
	fs.IntVarP(&f.workers, "workers", "w", 0, "decode goroutines (default number of CPUs + 1)")
	fs.StringVar(&f.nodeScope, "node-scope", "", "node resolution: global or block")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: text or json")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: streetnet extract [flags] <file.osm.pbf>\n\nExactly one of --boundary and --bbox is required.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	return fs
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(fs *pflag.FlagSet, f *extractFlags, cfg *config.Config) {
	if fs.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fs.Changed("node-scope") {
		cfg.NodeScope = f.nodeScope
	}
	if fs.Changed("format") {
		cfg.Output.Format = f.format
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if fs.Changed("metrics-file") {
		cfg.Metrics.File = f.metricsFile
	}
}

func runExtract(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var f extractFlags
	fs := newExtractFlagSet(&f, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return errUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}
	path := fs.Arg(0)

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	applyFlags(fs, &f, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(stderr, cfg.Log)
	if err != nil {
		return err
	}

	boundary, err := loadBoundary(f.boundary, f.bbox)
	if err != nil {
		return err
	}
	key, err := streetnet.PolygonKey(boundary)
	if err != nil {
		return err
	}
	scope, err := streetnet.ParseNodeScope(cfg.NodeScope)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	opts := streetnet.Options{
		Workers:    cfg.Workers,
		NodeScope:  scope,
		Logger:     logger,
		Registerer: registry,
		Progress: func(blocks int) {
			if blocks%progressInterval == 0 {
				logger.Debug("decoding", "blocks", blocks)
			}
		},
	}

	logger.Info("extracting street network",
		"path", path,
		"boundary", key,
		"workers", cfg.Workers,
		"node_scope", cfg.NodeScope)

	err = extract(ctx, path, boundary, key, opts, cfg.Output.Format, f.output, stdout)
	if cfg.Metrics.File != "" {
		if writeErr := prometheus.WriteToTextfile(cfg.Metrics.File, registry); writeErr != nil {
			err = errors.Join(err, fmt.Errorf("writing metrics: %w", writeErr))
		}
	}
	return err
}

func extract(ctx context.Context, path string, boundary orb.Geometry, key string, opts streetnet.Options, format, output string, stdout io.Writer) error {
	r, err := streetnet.Open(path, boundary, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	lines, err := r.StreetNetwork(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	data, err := encodeNetwork(format, lines, key)
	if err != nil {
		return err
	}
	if err := writeOutput(output, data, stdout); err != nil {
		return err
	}

	stats := r.Stats()
	opts.Logger.Info("wrote street network",
		"output", outputName(output),
		"format", format,
		"lines", humanize.Comma(int64(stats.Lines)),
		"nodes_kept", humanize.Comma(int64(stats.NodesKept)),
		"ways_kept", humanize.Comma(int64(stats.WaysKept)),
		"read", humanize.Bytes(uint64(stats.BytesRead)),
		"written", humanize.Bytes(uint64(len(data))),
		"duration", stats.Duration)
	return nil
}

// loadBoundary returns the clip geometry named by exactly one of the
// --boundary and --bbox flags.
func loadBoundary(path, bbox string) (orb.Geometry, error) {
	switch {
	case path != "" && bbox != "":
		return nil, fmt.Errorf("--boundary and --bbox are mutually exclusive")
	case path != "":
		return streetnet.LoadBoundary(path)
	case bbox != "":
		return streetnet.ParseBBox(bbox)
	default:
		return nil, fmt.Errorf("one of --boundary and --bbox is required")
	}
}

func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func outputName(path string) string {
	if path == "" || path == "-" {
		return "stdout"
	}
	return path
}
