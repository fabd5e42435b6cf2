package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/streetharvest/streetnet/internal/pbf"
)

// blobSummary tallies the data blobs of a file by compression.
type blobSummary struct {
	Count      int64
	Compressed int64
	Raw        int64
}

func runHeader(args []string, stdout, stderr io.Writer) error {
	var scanBlobs bool
	fs := pflag.NewFlagSet("streetnet header", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&scanBlobs, "blobs", false, "scan every data blob and summarize compressions and sizes")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: streetnet header [flags] <file.osm.pbf>\n\nFlags:\n")
		fs.PrintDefaults()
	}
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

	r, err := pbf.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	printHeader(stdout, r.Header())
	if !scanBlobs {
		return nil
	}

	summary, err := summarizeBlobs(r)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	printBlobSummary(stdout, summary, r.BytesRead())
	return nil
}

func printHeader(w io.Writer, h *pbf.Header) {
	fmt.Fprintf(w, "Writing program:    %s\n", orNone(h.WritingProgram))
	fmt.Fprintf(w, "Source:             %s\n", orNone(h.Source))
	fmt.Fprintf(w, "Required features:  %s\n", orNone(strings.Join(h.RequiredFeatures, ", ")))
	fmt.Fprintf(w, "Optional features:  %s\n", orNone(strings.Join(h.OptionalFeatures, ", ")))
	if h.BBox != nil {
		fmt.Fprintf(w, "Bounding box:       %.7f,%.7f,%.7f,%.7f\n",
			h.BBox.Left, h.BBox.Bottom, h.BBox.Right, h.BBox.Top)
	}
	if !h.ReplicationTimestamp.IsZero() {
		fmt.Fprintf(w, "Replication time:   %s (%s)\n",
			h.ReplicationTimestamp.UTC().Format("2006-01-02T15:04:05Z"),
			humanize.Time(h.ReplicationTimestamp))
	}
	if h.ReplicationSequence != 0 {
		fmt.Fprintf(w, "Replication seq:    %d\n", h.ReplicationSequence)
	}
	if h.ReplicationBaseURL != "" {
		fmt.Fprintf(w, "Replication URL:    %s\n", h.ReplicationBaseURL)
	}
}

// summarizeBlobs reads the remaining data blobs of r without
// decompressing them.
func summarizeBlobs(r *pbf.Reader) (map[pbf.Compression]*blobSummary, error) {
	summary := make(map[pbf.Compression]*blobSummary)
	for {
		blob, err := r.NextBlob()
		if err == io.EOF {
			return summary, nil
		}
		if err != nil {
			return nil, err
		}
		compression := blob.Compression()
		s, ok := summary[compression]
		if !ok {
			s = &blobSummary{}
			summary[compression] = s
		}
		s.Count++
		s.Compressed += int64(blob.CompressedSize())
		if compression == pbf.CompressionNone {
			s.Raw += int64(len(blob.Raw))
		} else {
			s.Raw += int64(blob.RawSize)
		}
	}
}

func printBlobSummary(w io.Writer, summary map[pbf.Compression]*blobSummary, bytesRead int64) {
	compressions := make([]pbf.Compression, 0, len(summary))
	var total int64
	for c, s := range summary {
		compressions = append(compressions, c)
		total += s.Count
	}
	sort.Slice(compressions, func(i, j int) bool { return compressions[i] < compressions[j] })

	fmt.Fprintf(w, "Data blobs:         %s (%s read)\n", humanize.Comma(total), humanize.Bytes(uint64(bytesRead)))
	for _, c := range compressions {
		s := summary[c]
		fmt.Fprintf(w, "  %-6s %10s blobs %10s -> %s\n",
			c, humanize.Comma(s.Count), humanize.Bytes(uint64(s.Compressed)), humanize.Bytes(uint64(s.Raw)))
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
