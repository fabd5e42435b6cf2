package pbf

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Required features this reader knows how to decode. Relations are never
// read, so files carrying them are fine; HistoricalInformation only adds
// metadata we ignore.
var supportedFeatures = map[string]bool{
	"OsmSchema-V0.6":        true,
	"DenseNodes":            true,
	"HistoricalInformation": true,
}

// BBox is the file's declared bounding box in degrees.
type BBox struct {
	Left, Right, Top, Bottom float64
}

// Header describes a PBF file. It is decoded once from the file's first
// blob.
type Header struct {
	BBox             *BBox
	RequiredFeatures []string
	OptionalFeatures []string
	WritingProgram   string
	Source           string

	ReplicationTimestamp time.Time
	ReplicationSequence  int64
	ReplicationBaseURL   string
}

// DecodeHeader decodes an OSMHeader block and checks that every required
// feature is supported.
func DecodeHeader(data []byte) (*Header, error) {
	header := &Header{}
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		switch num {
		case 1:
			b, err := bytesValue(typ, value)
			if err != nil {
				return err
			}
			bbox, err := decodeBBox(b)
			if err != nil {
				return err
			}
			header.BBox = bbox
		case 4, 5, 16, 17, 34:
			b, err := bytesValue(typ, value)
			if err != nil {
				return err
			}
			s := string(b)
			switch num {
			case 4:
				header.RequiredFeatures = append(header.RequiredFeatures, s)
			case 5:
				header.OptionalFeatures = append(header.OptionalFeatures, s)
			case 16:
				header.WritingProgram = s
			case 17:
				header.Source = s
			case 34:
				header.ReplicationBaseURL = s
			}
		case 32:
			v, err := varintValue(typ, value)
			if err != nil {
				return err
			}
			header.ReplicationTimestamp = time.Unix(int64(v), 0).UTC()
		case 33:
			v, err := varintValue(typ, value)
			if err != nil {
				return err
			}
			header.ReplicationSequence = int64(v)
		}
		return nil
	})
	if err != nil {
		return nil, malformed("header block", err)
	}

	for _, feature := range header.RequiredFeatures {
		if !supportedFeatures[feature] {
			return nil, &UnsupportedFeatureError{Feature: feature}
		}
	}
	return header, nil
}

func decodeBBox(data []byte) (*BBox, error) {
	bbox := &BBox{}
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		var dst *float64
		switch num {
		case 1:
			dst = &bbox.Left
		case 2:
			dst = &bbox.Right
		case 3:
			dst = &bbox.Top
		case 4:
			dst = &bbox.Bottom
		default:
			return nil
		}
		v, err := varintValue(typ, value)
		if err != nil {
			return err
		}
		*dst = float64(protowire.DecodeZigZag(v)) / 1e9
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bbox, nil
}
