package clip

import (
	"fmt"
)

// InvalidCoordinateError indicates a boundary vertex outside geographic bounds
type InvalidCoordinateError struct {
	Lat, Lon float64
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate: lat=%f lon=%f (lat must be ±90, lon must be ±180)",
		e.Lat, e.Lon)
}

// InvalidPolygonError indicates a boundary that cannot be used for clipping
type InvalidPolygonError struct {
	Part   int
	Reason string
	Err    error
}

func (e *InvalidPolygonError) Error() string {
	msg := "invalid clip polygon"
	if e.Part >= 0 {
		msg = fmt.Sprintf("invalid clip polygon (part %d)", e.Part)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidPolygonError) Unwrap() error {
	return e.Err
}

// ValidateCoordinate checks that a coordinate pair lies within geographic bounds
func ValidateCoordinate(lat, lon float64) error {
	if lat < -90.0 || lat > 90.0 {
		return &InvalidCoordinateError{Lat: lat, Lon: lon}
	}
	if lon < -180.0 || lon > 180.0 {
		return &InvalidCoordinateError{Lat: lat, Lon: lon}
	}
	return nil
}
