package exifgps

import (
	"context"
	"fmt"
	"io"

	"k8s.io/klog/v2"
)

// Extract decodes GPS coordinates from image bytes using strict options.
func Extract(b []byte) (*Coordinates, error) {
	return Options{}.Extract(b)
}

// Extract runs the segment scanner, tag directory reader and GPS reader in
// turn, stopping at the first missing piece.
func (o Options) Extract(b []byte) (c *Coordinates, err error) {
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = fmt.Errorf("%w: %v", ErrOutOfRange, r)
		}
	}()

	exif, err := FindEXIF(b)
	if err != nil {
		return nil, err
	}

	off, order, err := GPSOffset(exif, o)
	if err != nil {
		return nil, err
	}

	gps, err := ReadGPS(exif, off, order, o)
	if err != nil {
		return nil, err
	}
	return &gps, nil
}

// Read consumes at most MaxPrefix bytes from r and returns the coordinates
// found there, or nil. Failures are logged and never returned: callers carry
// on without coordinates.
func Read(ctx context.Context, r io.Reader, o Options) *Coordinates {
	if err := ctx.Err(); err != nil {
		klog.V(1).Infof("gps: skipped: %v", err)
		return nil
	}

	b, err := io.ReadAll(io.LimitReader(r, MaxPrefix))
	if err != nil {
		klog.V(1).Infof("gps: read prefix: %v", err)
		return nil
	}

	if err := ctx.Err(); err != nil {
		klog.V(1).Infof("gps: abandoned after read: %v", err)
		return nil
	}

	c, err := o.Extract(b)
	if err != nil {
		klog.V(1).Infof("gps: no coordinates in %d bytes: %v", len(b), err)
		return nil
	}
	klog.V(2).Infof("gps: found %s", c)
	return c
}
