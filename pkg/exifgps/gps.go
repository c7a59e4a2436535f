package exifgps

import (
	"encoding/binary"
	"fmt"
)

// axis accumulates what was learned about one coordinate axis.
type axis struct {
	value float64
	ok    bool
	err   error
	ref   byte
}

func (a *axis) decode(exif []byte, e Entry, order binary.ByteOrder) {
	if e.Type != typeRational {
		a.err = fmt.Errorf("%w: tag 0x%04x has type %d", ErrTagNotFound, e.Tag, e.Type)
		return
	}
	v, err := DMS(exif, e.Value, e.Count, order)
	if err != nil {
		a.err = fmt.Errorf("tag 0x%04x: %w", e.Tag, err)
		return
	}
	a.value, a.ok, a.err = v, true, nil
}

func (a *axis) result(name string) (float64, error) {
	if a.ok {
		return a.value, nil
	}
	if a.err != nil {
		return 0, a.err
	}
	return 0, fmt.Errorf("%w: %s", ErrTagNotFound, name)
}

// ReadGPS reads the GPS sub-directory at off and returns the latitude and
// longitude it holds. Both axes must decode for a result.
func ReadGPS(exif []byte, off uint32, order binary.ByteOrder, o Options) (Coordinates, error) {
	es, err := readDirectory(exif, off, order)
	if err != nil {
		return Coordinates{}, fmt.Errorf("gps ifd: %w", err)
	}

	var lat, lon axis
	for _, e := range es {
		switch e.Tag {
		case tagGPSLatitudeRef:
			lat.ref = e.ref()
		case tagGPSLongitudeRef:
			lon.ref = e.ref()
		case tagGPSLatitude:
			lat.decode(exif, e, order)
		case tagGPSLongitude:
			lon.decode(exif, e, order)
		}
	}

	la, err := lat.result("latitude")
	if err != nil {
		return Coordinates{}, err
	}
	lo, err := lon.result("longitude")
	if err != nil {
		return Coordinates{}, err
	}

	if o.HemisphereSign {
		if lat.ref == 'S' {
			la = -la
		}
		if lon.ref == 'W' {
			lo = -lo
		}
	}
	return Coordinates{Latitude: la, Longitude: lo}, nil
}

// DMS converts the three rationals (degrees, minutes, seconds) stored at off
// into decimal degrees. Any count other than three is rejected.
func DMS(exif []byte, off uint32, count uint32, order binary.ByteOrder) (float64, error) {
	if count != 3 {
		return 0, fmt.Errorf("%w: count %d", ErrMalformedRational, count)
	}
	if uint64(off)+3*rationalSize > uint64(len(exif)) {
		return 0, fmt.Errorf("%w: rationals at %d, block is %d bytes", ErrOutOfRange, off, len(exif))
	}

	var dms [3]float64
	for i := range dms {
		p := int(off) + i*rationalSize
		r := Rational{Num: order.Uint32(exif[p:]), Den: order.Uint32(exif[p+4:])}
		if !r.Valid() {
			return 0, fmt.Errorf("%w: %d/0", ErrMalformedRational, r.Num)
		}
		dms[i] = r.Float()
	}
	return dms[0] + dms[1]/60 + dms[2]/3600, nil
}
