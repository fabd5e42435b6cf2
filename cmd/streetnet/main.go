// streetnet extracts the street network of an OpenStreetMap PBF file,
// clipped to a boundary polygon.
//
// Two commands:
//
// extract reads every way carrying a highway key, drops the vertices
// outside the boundary and writes one line per remaining street as
// GeoJSON or CBOR.
//
// header prints the file header and blob statistics without decoding any
// primitive block.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// errUsage reports a command line that could not be understood. The usage
// text has already been printed.
var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "extract":
		return runExtract(ctx, args[1:], stdout, stderr)
	case "header":
		return runHeader(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `streetnet extracts clipped street networks from OpenStreetMap PBF files.

Usage:
  streetnet extract [flags] <file.osm.pbf>
  streetnet header [flags] <file.osm.pbf>

Run "streetnet <command> --help" for the flags of a command.
`)
}
