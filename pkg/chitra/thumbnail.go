package chitra

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"k8s.io/klog/v2"
)

// thumbDir holds thumbnails inside the data directory.
const thumbDir = "thumbs"

// ThumbOpts are thumbnail options. A zero X or Y scales by the other dimension.
type ThumbOpts struct {
	X       int
	Y       int
	Quality int
}

// DefaultThumbOpts are used when Config.Thumbnails is empty.
var DefaultThumbOpts = map[string]ThumbOpts{
	"Tiny":   {Y: 180, Quality: 75},
	"Stream": {X: 640, Quality: 85},
	"Album":  {Y: 640, Quality: 85},
	"View":   {X: 2048, Quality: 85},
}

func (c *Config) thumbOpts() map[string]ThumbOpts {
	if len(c.Thumbnails) == 0 {
		return DefaultThumbOpts
	}
	return c.Thumbnails
}

// thumbnails creates every configured thumbnail for the photo stored at src.
// Paths in the result are relative to dataDir.
func thumbnails(src string, id string, dataDir string, opts map[string]ThumbOpts) (map[string]ThumbMeta, error) {
	klog.V(1).Infof("creating thumbnails for %s in %s", src, dataDir)

	img, err := imgio.Open(src)
	if err != nil {
		return nil, fmt.Errorf("imgio.Open: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(dataDir, thumbDir), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}

	thumbs := map[string]ThumbMeta{}
	for name, t := range opts {
		relPath := thumbRelPath(id, t)
		ct, err := createThumb(img, filepath.Join(dataDir, relPath), t)
		if err != nil {
			return thumbs, fmt.Errorf("create %s thumb: %w", name, err)
		}
		ct.RelPath = relPath
		thumbs[name] = *ct
		klog.V(2).Infof("created thumb: %+v", ct)
	}

	return thumbs, nil
}

func createThumb(i image.Image, path string, t ThumbOpts) (*ThumbMeta, error) {
	klog.V(1).Infof("creating %dx%d thumb: %s - %+v", t.X, t.Y, path, i.Bounds())
	x := t.X
	y := t.Y

	if i.Bounds().Dy() == 0 {
		return nil, fmt.Errorf("no Y for %+v", i.Bounds())
	}

	if i.Bounds().Dx() == 0 {
		return nil, fmt.Errorf("no X for %+v", i.Bounds())
	}

	if t.X == 0 && t.Y == 0 {
		return nil, fmt.Errorf("thumb needs X or Y: %+v", t)
	}

	if t.X == 0 {
		scale := float64(i.Bounds().Dy()) / float64(t.Y)
		x = max(1, int(float64(i.Bounds().Dx())/scale))
	}

	if t.Y == 0 {
		scale := float64(i.Bounds().Dx()) / float64(t.X)
		y = max(1, int(float64(i.Bounds().Dy())/scale))
	}

	rimg := transform.Resize(i, x, y, transform.Lanczos)
	if err := imgio.Save(path, rimg, imgio.JPEGEncoder(t.Quality)); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}

	return &ThumbMeta{X: rimg.Bounds().Dx(), Y: rimg.Bounds().Dy(), Path: path}, nil
}

// thumbRelPath names a thumbnail after its photo and bounding dimension.
func thumbRelPath(id string, t ThumbOpts) string {
	dimensions := ""
	if t.X != 0 {
		dimensions = fmt.Sprintf("x%d", t.X)
	}
	if t.Y != 0 {
		dimensions = fmt.Sprintf("y%d", t.Y)
	}
	return filepath.ToSlash(filepath.Join(thumbDir, fmt.Sprintf("%s@%s.jpg", id, dimensions)))
}

// removeThumbs deletes thumbnail files, ignoring ones that are already gone.
func removeThumbs(dataDir string, thumbs map[string]ThumbMeta) {
	for _, t := range thumbs {
		p := filepath.Join(dataDir, filepath.FromSlash(t.RelPath))
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			klog.Warningf("remove %s: %v", p, err)
		}
	}
}

// isImage reports whether path has an extension we can decode.
func isImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".tif", ".tiff", ".bmp":
		return true
	}
	return false
}
