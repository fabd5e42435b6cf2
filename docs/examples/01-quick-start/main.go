package main

import (
	"context"
	"fmt"
	"log"

	"github.com/streetharvest/streetnet/pkg/streetnet"
)

func main() {
	// Clip to a box around Harvard Square
	boundary, err := streetnet.ParseBBox("-71.125,42.370,-71.115,42.378")
	if err != nil {
		log.Fatal(err)
	}

	// Open the extract
	r, err := streetnet.Open("massachusetts-latest.osm.pbf", boundary, streetnet.DefaultOptions())
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()

	fmt.Printf("Written by: %s\n", r.Header().WritingProgram)

	// Decode, clip and build the street lines
	streets, err := r.StreetNetwork(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	stats := r.Stats()
	fmt.Printf("Streets: %d\n", len(streets))
	fmt.Printf("Blocks: %d, nodes kept: %d of %d\n", stats.Blocks, stats.NodesKept, stats.NodesDecoded)

	if len(streets) > 0 {
		first := streets[0]
		fmt.Printf("First street: %d vertices from [%.6f,%.6f]\n",
			len(first), first[0][0], first[0][1])
	}
}
