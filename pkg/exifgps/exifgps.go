// Package exifgps extracts GPS coordinates from the EXIF block of a JPEG image.
//
// Decoding is a pure function of the input bytes: the segment scanner locates
// the APP1 EXIF payload, the tag directory reader follows the GPS-Info pointer,
// and the GPS reader converts the degree/minute/second rationals of the latitude
// and longitude tags to decimal degrees. Every failure is reported as one of the
// sentinel errors below, and Read turns them into a nil result.
package exifgps

import (
	"errors"
	"fmt"
)

// MaxPrefix is the number of leading bytes of an image that are inspected.
const MaxPrefix = 64 * 1024

const (
	markerPrefix = 0xFF
	markerSOI    = 0xFFD8
	markerAPP1   = 0xFFE1
	markerSOS    = 0xFFDA
	markerEOI    = 0xFFD9

	tagGPSInfo         = 0x8825
	tagGPSLatitudeRef  = 0x0001
	tagGPSLatitude     = 0x0002
	tagGPSLongitudeRef = 0x0003
	tagGPSLongitude    = 0x0004

	typeASCII    = 2
	typeRational = 5

	entrySize    = 12
	rationalSize = 8
)

var (
	// ErrNotJPEG means the buffer does not start with the JPEG SOI marker.
	ErrNotJPEG = errors.New("not a jpeg")
	// ErrScanTerminated means the marker stream was malformed or ended early.
	ErrScanTerminated = errors.New("segment scan terminated")
	// ErrNoEXIF means the marker stream ended without an EXIF APP1 segment.
	ErrNoEXIF = errors.New("no exif segment")
	// ErrUnsupportedByteOrder means the TIFF byte-order mark was not accepted.
	ErrUnsupportedByteOrder = errors.New("unsupported byte order")
	// ErrTagNotFound means the GPS-Info, latitude or longitude tag is absent.
	ErrTagNotFound = errors.New("tag not found")
	// ErrMalformedRational means a coordinate was not three valid rationals.
	ErrMalformedRational = errors.New("malformed rational")
	// ErrOutOfRange means an offset pointed outside the EXIF block.
	ErrOutOfRange = errors.New("offset out of range")
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f, %.6f", c.Latitude, c.Longitude)
}

// Rational is an EXIF unsigned rational.
type Rational struct {
	Num uint32
	Den uint32
}

// Valid reports whether the denominator is non-zero.
func (r Rational) Valid() bool {
	return r.Den != 0
}

// Float returns Num/Den. Callers check Valid first.
func (r Rational) Float() float64 {
	return float64(r.Num) / float64(r.Den)
}

// Options adjusts decoding beyond the strict big-endian, unsigned behavior
// of the zero value.
type Options struct {
	// LittleEndian accepts "II" TIFF headers in addition to "MM".
	LittleEndian bool
	// HemisphereSign negates latitudes with an "S" reference and longitudes
	// with a "W" reference.
	HemisphereSign bool
}
