package chitra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/tstromberg/chitra/pkg/exifgps"
)

// photoDir holds uploaded originals inside the data directory.
const photoDir = "photos"

// ErrUnsupportedImage is returned for uploads we cannot display.
var ErrUnsupportedImage = errors.New("unsupported image type")

// SubmitRequest describes a photo submission.
type SubmitRequest struct {
	MemberID    string   `json:"userId"`
	Title       string   `json:"title"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	// Filename is the uploaded file name; only its extension is kept.
	Filename string `json:"filename"`
}

// Submit stores a photo from an active member as pending. Coordinates are
// taken from the image's EXIF GPS data when present; their absence never
// blocks a submission.
func (s *Site) Submit(ctx context.Context, req SubmitRequest, r io.Reader) (Photo, error) {
	m, err := s.s.Member(req.MemberID)
	if err != nil {
		return Photo{}, err
	}
	if m.Status != MemberActive {
		return Photo{}, ErrInactiveMember
	}
	if strings.TrimSpace(req.Title) == "" {
		return Photo{}, &ValidationError{Field: "title", Reason: "required"}
	}

	ext := strings.ToLower(filepath.Ext(req.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	if !isImage("x" + ext) {
		return Photo{}, fmt.Errorf("%q: %w", req.Filename, ErrUnsupportedImage)
	}

	id := uuid.NewString()
	rel := filepath.ToSlash(filepath.Join(photoDir, id+ext))
	path := filepath.Join(s.s.Dir(), filepath.FromSlash(rel))

	if err := save(ctx, path, r); err != nil {
		return Photo{}, err
	}

	p := Photo{
		ID:          id,
		MemberID:    m.ID,
		Title:       strings.TrimSpace(req.Title),
		Location:    strings.TrimSpace(req.Location),
		Description: strings.TrimSpace(req.Description),
		Tags:        req.Tags,
		File:        rel,
		Status:      PhotoPending,
		GPS:         locate(ctx, path, s.c.GPS),
		CreatedAt:   s.s.now().UTC(),
	}

	p.Thumbs, err = thumbnails(path, id, s.s.Dir(), s.c.thumbOpts())
	if err != nil {
		klog.Warningf("thumbnails for %s: %v", path, err)
	}

	if err := s.s.SavePhoto(p); err != nil {
		os.Remove(path)
		removeThumbs(s.s.Dir(), p.Thumbs)
		return Photo{}, fmt.Errorf("save photo: %w", err)
	}

	klog.Infof("%s submitted %q (%s), gps=%v", m.Email, p.Title, p.ID, p.GPS)
	if err := s.s.AddActivity(ActivityPhoto, "New photo submitted: "+p.Title, m.FullName); err != nil {
		klog.Warningf("activity: %v", err)
	}
	return p, nil
}

// save copies r to path, giving up if ctx is cancelled.
func save(ctx context.Context, path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}

	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// locate runs the EXIF GPS reader over the file at path.
func locate(ctx context.Context, path string, o exifgps.Options) *exifgps.Coordinates {
	f, err := os.Open(path)
	if err != nil {
		klog.Warningf("open %s: %v", path, err)
		return nil
	}
	defer f.Close()
	return exifgps.Read(ctx, f, o)
}

// TagPhoto replaces the tags on a photo.
func (s *Site) TagPhoto(id string, tags []string) error {
	p, err := s.s.Photo(id)
	if err != nil {
		return err
	}
	p.Tags = tags
	return s.s.SavePhoto(p)
}
