package chitra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/barasher/go-exiftool"
	"k8s.io/klog/v2"

	"github.com/tstromberg/chitra/pkg/exifgps"
)

// A Locator reads the GPS position recorded in an image file.
type Locator interface {
	Locate(ctx context.Context, path string) (*exifgps.Coordinates, error)
}

// NativeLocator decodes GPS positions with exifgps.
type NativeLocator struct {
	Options exifgps.Options
}

// Locate returns the coordinates in path, or an error naming why there are none.
func (l NativeLocator) Locate(ctx context.Context, path string) (*exifgps.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, exifgps.MaxPrefix))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return l.Options.Extract(b)
}

// ErrNoGPS is returned by ExiftoolLocator when exiftool finds no position.
var ErrNoGPS = errors.New("no GPS position")

// ExiftoolLocator asks exiftool for GPS positions. Its coordinates are signed.
type ExiftoolLocator struct {
	et *exiftool.Exiftool
}

// NewExiftoolLocator starts an exiftool process.
func NewExiftoolLocator() (*ExiftoolLocator, error) {
	et, err := exiftool.NewExiftool(exiftool.CoordFormant("%+.6f"))
	if err != nil {
		return nil, fmt.Errorf("exiftool: %w", err)
	}
	return &ExiftoolLocator{et: et}, nil
}

// Close stops the exiftool process.
func (l *ExiftoolLocator) Close() error {
	return l.et.Close()
}

// Locate returns the coordinates exiftool reports for path.
func (l *ExiftoolLocator) Locate(ctx context.Context, path string) (*exifgps.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fis := l.et.ExtractMetadata(path)
	if len(fis) == 0 {
		return nil, fmt.Errorf("extract %q: no result", path)
	}
	fi := fis[0]
	if fi.Err != nil {
		return nil, fmt.Errorf("extract fail for %q: %w", path, fi.Err)
	}

	lat, err := fi.GetFloat("GPSLatitude")
	if errors.Is(err, exiftool.ErrKeyNotFound) {
		return nil, ErrNoGPS
	}
	if err != nil {
		return nil, fmt.Errorf("get GPSLatitude: %w", err)
	}

	lon, err := fi.GetFloat("GPSLongitude")
	if errors.Is(err, exiftool.ErrKeyNotFound) {
		return nil, ErrNoGPS
	}
	if err != nil {
		return nil, fmt.Errorf("get GPSLongitude: %w", err)
	}

	klog.V(2).Infof("exiftool %s: %f, %f", path, lat, lon)
	return &exifgps.Coordinates{Latitude: lat, Longitude: lon}, nil
}
