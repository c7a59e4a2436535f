// Package chitra runs a small community photo gallery: members register and
// wait for approval, active members submit photos, and an admin moderates
// both before approved photos appear on the public pages.
package chitra

import (
	"github.com/tstromberg/chitra/pkg/exifgps"
)

// Config holds configuration for chitra.
type Config struct {
	// DataDir holds the record store and uploaded originals.
	DataDir string
	// OutDir receives the rendered public gallery.
	OutDir string

	Title       string
	Description string
	Lang        string

	AdminUser     string
	AdminPassword string

	Thumbnails map[string]ThumbOpts
	GPS        exifgps.Options

	// Model is the Gemini model used for tag suggestions.
	Model string
}

// Site ties a configuration to its record store.
type Site struct {
	c *Config
	s *Store
}

// New returns a Site for c backed by s.
func New(c *Config, s *Store) *Site {
	return &Site{c: c, s: s}
}

// Config returns the site configuration.
func (s *Site) Config() *Config { return s.c }

// Store returns the site record store.
func (s *Site) Store() *Store { return s.s }
