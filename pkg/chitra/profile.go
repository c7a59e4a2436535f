package chitra

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

// avatarDir holds profile photos inside the data directory.
const avatarDir = "avatars"

var errDataURL = errors.New("not a base64 image data URL")

// parseDataURL splits a base64 data URL into its media type and contents.
func parseDataURL(u string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return "", nil, errDataURL
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errDataURL
	}
	mediaType, ok := strings.CutSuffix(meta, ";base64")
	if !ok || !strings.HasPrefix(mediaType, "image/") {
		return "", nil, errDataURL
	}

	bs, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", nil, fmt.Errorf("decode: %w", err)
	}
	return mediaType, bs, nil
}

// saveProfilePhoto stores the image in dataURL as the portrait of member id.
func saveProfilePhoto(dataDir string, id string, dataURL string, now time.Time) (*ProfilePhoto, error) {
	mediaType, bs, err := parseDataURL(dataURL)
	if err != nil {
		return nil, err
	}

	ext := "." + strings.TrimPrefix(mediaType, "image/")
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if !isImage(ext) {
		return nil, fmt.Errorf("%s: %w", mediaType, ErrUnsupportedImage)
	}

	rel := path.Join(avatarDir, id+ext)
	if err := save(context.Background(), filepath.Join(dataDir, filepath.FromSlash(rel)), bytes.NewReader(bs)); err != nil {
		return nil, err
	}
	return &ProfilePhoto{File: rel, Type: mediaType, Size: int64(len(bs)), UploadedAt: now}, nil
}

func removeProfilePhoto(dataDir string, pp *ProfilePhoto) {
	if pp == nil || pp.File == "" {
		return
	}
	p := filepath.Join(dataDir, filepath.FromSlash(pp.File))
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		klog.Warningf("remove %s: %v", p, err)
	}
}
