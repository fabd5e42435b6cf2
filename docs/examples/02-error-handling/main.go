package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/paulmach/orb"

	"github.com/streetharvest/streetnet/pkg/streetnet"
)

func safeExtract(path string, boundary orb.Geometry) (orb.MultiLineString, error) {
	r, err := streetnet.Open(path, boundary, streetnet.DefaultOptions())
	if err != nil {
		// Check if file exists
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("extract not found: %s", path)
		}

		var polygonErr *streetnet.InvalidPolygonError
		if errors.As(err, &polygonErr) {
			return nil, fmt.Errorf("unusable boundary (part %d): %s", polygonErr.Part, polygonErr.Reason)
		}
		return nil, err
	}
	defer r.Close()

	streets, err := r.StreetNetwork(context.Background())
	if err != nil {
		var blockErr *streetnet.MalformedBlockError
		switch {
		case errors.As(err, &blockErr):
			log.Printf("Corrupt block at offset %d in %s", blockErr.Offset, path)
		case errors.Is(err, streetnet.ErrUnsupportedCompression):
			log.Printf("%s uses a compression this reader cannot decode", path)
		}
		return nil, err
	}

	if len(streets) == 0 {
		log.Printf("Warning: no streets of %s inside the boundary", path)
	}
	return streets, nil
}

func main() {
	boundary, err := streetnet.LoadBoundary("cambridge.geojson")
	if err != nil {
		log.Fatal(err)
	}

	streets, err := safeExtract("massachusetts-latest.osm.pbf", boundary)
	if err != nil {
		log.Printf("Error: %v", err)
		return
	}
	fmt.Printf("Successfully extracted %d streets\n", len(streets))

	// Try a non-existent extract
	_, err = safeExtract("nonexistent.osm.pbf", boundary)
	if err != nil {
		log.Printf("Expected error: %v", err)
	}
}
