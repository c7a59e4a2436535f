package chitra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"
)

// Find returns the paths of the images under root, skipping dot-files and dot-directories.
func Find(root string) ([]string, error) {
	found := []string{}

	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path != root && strings.HasPrefix(filepath.Base(path), ".") {
				return godirwalk.SkipThis
			}

			if de.IsDir() || !isImage(path) {
				return nil
			}

			klog.V(1).Infof("found %s", path)
			found = append(found, path)
			return nil
		},
	})

	return found, err
}

// Import submits every image under root on behalf of memberID. Titles are
// taken from file names and the location from the containing directory.
func (s *Site) Import(ctx context.Context, memberID string, root string) ([]Photo, error) {
	paths, err := Find(root)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}

	ps := []Photo{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return ps, err
		}

		p, err := s.importFile(ctx, memberID, root, path)
		if err != nil {
			return ps, fmt.Errorf("import %s: %w", path, err)
		}
		ps = append(ps, p)
	}

	klog.Infof("imported %d photos from %s", len(ps), root)
	return ps, nil
}

// ImportFile submits a single image on behalf of memberID.
func (s *Site) ImportFile(ctx context.Context, memberID string, path string) (Photo, error) {
	return s.importFile(ctx, memberID, filepath.Dir(path), path)
}

func (s *Site) importFile(ctx context.Context, memberID string, root string, path string) (Photo, error) {
	f, err := os.Open(path)
	if err != nil {
		return Photo{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	base := filepath.Base(path)
	location := ""
	if rel, err := filepath.Rel(root, filepath.Dir(path)); err == nil && rel != "." {
		location = filepath.Base(rel)
	}

	return s.Submit(ctx, SubmitRequest{
		MemberID: memberID,
		Title:    strings.TrimSuffix(base, filepath.Ext(base)),
		Location: location,
		Filename: base,
	}, f)
}
