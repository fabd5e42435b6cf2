package main

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// encMode encodes CBOR with Core Deterministic Encoding, so the same
// network and boundary always produce identical bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("streetnet: CBOR encoder initialization failed: " + err.Error())
	}
}

// cborNetwork is the CBOR document written by extract.
type cborNetwork struct {
	// Boundary is the key of the clip polygon.
	Boundary string `cbor:"boundary"`

	// Lines holds one [lon, lat] vertex list per street.
	Lines orb.MultiLineString `cbor:"lines"`
}

// encodeNetwork encodes lines in format, tagged with the boundary key.
func encodeNetwork(format string, lines orb.MultiLineString, key string) ([]byte, error) {
	switch format {
	case "geojson":
		fc := geojson.NewFeatureCollection()
		for i, line := range lines {
			feature := geojson.NewFeature(line)
			feature.Properties["index"] = i
			fc.Append(feature)
		}
		fc.ExtraMembers = geojson.Properties{"boundary": key}
		data, err := fc.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encoding geojson: %w", err)
		}
		return append(data, '\n'), nil
	case "cbor":
		data, err := encMode.Marshal(cborNetwork{Boundary: key, Lines: lines})
		if err != nil {
			return nil, fmt.Errorf("encoding cbor: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}
