package chitra

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/otiai10/copy"
	"k8s.io/klog/v2"

	"github.com/tstromberg/chitra/pkg/exifgps"
)

//go:embed templates/index.tmpl
var idxTmpl string

//go:embed templates/album.tmpl
var albumTmpl string

//go:embed templates/style.css
var styleText string

// Render writes the public gallery for a into c.OutDir.
func Render(c *Config, a *Assembly) error {
	if err := os.MkdirAll(c.OutDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	if err := copyPhotos(c, a.Photos); err != nil {
		return fmt.Errorf("copy photos: %w", err)
	}

	if err := prune(c, a); err != nil {
		return fmt.Errorf("prune: %w", err)
	}

	for _, al := range a.Albums {
		if err := writeAlbum(c, al, filepath.Join("albums", al.Slug)); err != nil {
			return fmt.Errorf("write album %s: %w", al.Slug, err)
		}
	}

	if err := writeAlbum(c, a.Recent, a.Recent.Slug); err != nil {
		return fmt.Errorf("write recent: %w", err)
	}

	if err := writeAlbum(c, a.Mapped, a.Mapped.Slug); err != nil {
		return fmt.Errorf("write mapped: %w", err)
	}

	if err := writeIndex(c, a); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	return nil
}

// copyPhotos publishes originals and thumbnails of approved photos.
func copyPhotos(c *Config, ps []*Photo) error {
	for _, p := range ps {
		for _, rel := range published(p) {
			src := filepath.Join(c.DataDir, filepath.FromSlash(rel))
			dst := filepath.Join(c.OutDir, filepath.FromSlash(rel))
			if fresh(src, dst) {
				continue
			}
			klog.V(1).Infof("copying %s -> %s", src, dst)
			if err := copy.Copy(src, dst); err != nil {
				return err
			}
		}
	}
	return nil
}

// published returns the files of p that are copied into the gallery.
func published(p *Photo) []string {
	rels := []string{}
	if p.File != "" {
		rels = append(rels, p.File)
	}
	for _, t := range p.Thumbs {
		if t.RelPath != "" {
			rels = append(rels, t.RelPath)
		}
	}
	return rels
}

// prune removes files and album pages from c.OutDir that a no longer
// contains, such as photos that were rejected or deleted after approval.
func prune(c *Config, a *Assembly) error {
	keep := map[string]bool{}
	for _, p := range a.Photos {
		for _, rel := range published(p) {
			keep[rel] = true
		}
	}
	for _, al := range a.Albums {
		keep[path.Join("albums", al.Slug)] = true
	}

	for _, dir := range []string{photoDir, thumbDir, "albums"} {
		full := filepath.Join(c.OutDir, dir)
		if _, err := os.Stat(full); os.IsNotExist(err) {
			continue
		}
		names, err := godirwalk.ReadDirnames(full, nil)
		if err != nil {
			return fmt.Errorf("read %s: %w", full, err)
		}
		for _, name := range names {
			if keep[path.Join(dir, name)] {
				continue
			}
			klog.Infof("unpublishing %s", path.Join(dir, name))
			if err := os.RemoveAll(filepath.Join(full, name)); err != nil {
				return fmt.Errorf("remove: %w", err)
			}
		}
	}
	return nil
}

// fresh reports whether dst is a copy of src that does not need updating.
func fresh(src, dst string) bool {
	sst, err := os.Stat(src)
	if err != nil {
		return false
	}
	dst2, err := os.Stat(dst)
	if err != nil {
		return false
	}
	return sst.Size() == dst2.Size() && !sst.ModTime().After(dst2.ModTime())
}

func writeIndex(c *Config, a *Assembly) error {
	klog.V(1).Infof("writing album index with %d albums ...", len(a.Albums))
	bs, err := renderAlbumIndex(c, a, idxTmpl)
	if err != nil {
		return fmt.Errorf("render albums: %w", err)
	}

	p := filepath.Join(c.OutDir, "index.html")
	klog.V(1).Infof("Writing album index to %s", p)
	return os.WriteFile(p, bs, 0o644)
}

func writeAlbum(c *Config, a *Album, rel string) error {
	klog.V(1).Infof("rendering album %s [%s] with %d photos ...", a.Title, rel, len(a.Photos))
	bs, err := renderAlbum(c, a, rel, albumTmpl)
	if err != nil {
		return fmt.Errorf("render album: %w", err)
	}

	dir := filepath.Join(c.OutDir, rel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, "index.html"), bs, 0o644)
}

// toRoot returns the relative URL from a page in rel back to the gallery root.
func toRoot(rel string) string {
	parts := []string{}
	for range strings.Split(filepath.ToSlash(rel), "/") {
		parts = append(parts, "..")
	}
	return strings.Join(parts, "/")
}

func renderAlbum(c *Config, a *Album, rel string, ts string) ([]byte, error) {
	tmpl, err := template.New("album").Funcs(tmplFunctions(c)).Parse(ts)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	data := struct {
		Collection string
		Title      string
		Lang       string
		Root       string
		Album      *Album
		Style      template.CSS
	}{
		Collection: c.Title,
		Title:      a.Title,
		Lang:       c.lang(),
		Root:       toRoot(rel),
		Album:      a,
		Style:      template.CSS(styleText),
	}

	var tpl bytes.Buffer
	if err = tmpl.Execute(&tpl, data); err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return tpl.Bytes(), nil
}

func renderAlbumIndex(c *Config, a *Assembly, ts string) ([]byte, error) {
	tmpl, err := template.New("album index").Funcs(tmplFunctions(c)).Parse(ts)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	data := struct {
		Collection  string
		Description string
		Lang        string
		Albums      []*Album
		Recent      *Album
		Mapped      *Album
		Style       template.CSS
	}{
		Collection:  c.Title,
		Description: c.Description,
		Lang:        c.lang(),
		Albums:      a.Albums,
		Recent:      a.Recent,
		Mapped:      a.Mapped,
		Style:       template.CSS(styleText),
	}

	var tpl bytes.Buffer
	if err = tmpl.Execute(&tpl, data); err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return tpl.Bytes(), nil
}

func (c *Config) lang() string {
	if _, ok := labels[c.Lang]; ok {
		return c.Lang
	}
	return English
}

// tmplFunctions are functions available to our templates.
func tmplFunctions(c *Config) template.FuncMap {
	return template.FuncMap{
		"T": func(key string) string {
			return translate(c.lang(), key)
		},
		"Coords": func(g *exifgps.Coordinates) string {
			if g == nil {
				return ""
			}
			return g.String()
		},
		"Thumb": func(p *Photo, name string) string {
			if t, ok := p.Thumbs[name]; ok {
				return t.RelPath
			}
			return p.File
		},
		"Date": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"Join": strings.Join,
	}
}
