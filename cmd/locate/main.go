// locate prints the GPS position recorded in each JPEG under the given paths.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"k8s.io/klog/v2"

	"github.com/tstromberg/chitra/pkg/chitra"
	"github.com/tstromberg/chitra/pkg/exifgps"
)

var (
	useExiftool  = flag.Bool("exiftool", false, "cross-check each position against exiftool")
	littleEndian = flag.Bool("little-endian", true, "decode little-endian (II) EXIF blocks")
	signed       = flag.Bool("signed", true, "negate southern latitudes and western longitudes")
	tolerance    = flag.Float64("tolerance", 1e-5, "largest difference in degrees tolerated by --exiftool")
)

// checker is a second opinion that holds resources until closed.
type checker interface {
	chitra.Locator
	Close() error
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if len(flag.Args()) == 0 {
		klog.Exitf("usage: %s [flags] <path> [path ...]", os.Args[0])
	}

	native := chitra.NativeLocator{Options: exifgps.Options{LittleEndian: *littleEndian, HemisphereSign: *signed}}

	var check checker
	if *useExiftool {
		et, err := chitra.NewExiftoolLocator()
		if err != nil {
			klog.Exitf("exiftool: %v", err)
		}
		check = et
	}

	code := run(context.Background(), os.Stdout, flag.Args(), native, check, *tolerance)
	klog.Flush()
	os.Exit(code)
}

// run prints a line per image under roots and returns the exit status. check,
// when set, is consulted for every image and closed before run returns.
func run(ctx context.Context, out io.Writer, roots []string, native chitra.Locator, check checker, tol float64) int {
	if check != nil {
		defer func() {
			if err := check.Close(); err != nil {
				klog.Errorf("close exiftool: %v", err)
			}
		}()
	}

	found, mismatched := 0, 0
	for _, root := range roots {
		paths, err := chitra.Find(root)
		if err != nil {
			klog.Errorf("find %s: %v", root, err)
			continue
		}
		klog.V(1).Infof("%s: %d images", root, len(paths))

		for _, p := range paths {
			c, err := native.Locate(ctx, p)
			if err != nil {
				fmt.Fprintf(out, "%s\t-\t%s\n", p, reason(err))
			} else {
				found++
				fmt.Fprintf(out, "%s\t%s\n", p, c)
			}

			if check == nil {
				continue
			}
			want, cerr := check.Locate(ctx, p)
			if !agree(c, want, tol) {
				mismatched++
				klog.Warningf("%s: native=%v (%v) exiftool=%v (%v)", p, c, err, want, cerr)
			}
		}
	}

	klog.Infof("%d images with GPS", found)
	if mismatched > 0 {
		klog.Errorf("%d images disagree with exiftool", mismatched)
		return 1
	}
	return 0
}

// reason is a short description of why no position was found.
func reason(err error) string {
	switch {
	case errors.Is(err, exifgps.ErrNotJPEG):
		return "not a jpeg"
	case errors.Is(err, exifgps.ErrNoEXIF):
		return "no exif"
	case errors.Is(err, exifgps.ErrScanTerminated):
		return "no exif before image data"
	case errors.Is(err, chitra.ErrNoGPS):
		return "no gps"
	default:
		return err.Error()
	}
}

func agree(a, b *exifgps.Coordinates, tol float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(a.Latitude-b.Latitude) <= tol && math.Abs(a.Longitude-b.Longitude) <= tol
}
