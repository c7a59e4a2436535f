package chitra

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

// maxRecent is how many photos the Recent album shows.
const maxRecent = 60

// Album is a group of approved photos.
type Album struct {
	Title string
	// Slug is the album's directory in the rendered gallery.
	Slug   string
	Photos []*Photo
}

// Latest returns when the newest photo in the album was submitted.
func (a *Album) Latest() time.Time {
	d := time.Time{}
	for _, p := range a.Photos {
		if p.CreatedAt.After(d) {
			d = p.CreatedAt
		}
	}
	return d
}

// Cover returns the newest photo in the album, or nil if it is empty.
func (a *Album) Cover() *Photo {
	if len(a.Photos) == 0 {
		return nil
	}
	return a.Photos[0]
}

// an Assembly is the approved part of the store, grouped for rendering.
type Assembly struct {
	Photos []*Photo
	Albums []*Album
	Recent *Album
	Mapped *Album
}

var slugRe = regexp.MustCompile(`[^\p{L}\p{M}\p{N}]+`)

// slug returns a URL-safe directory name for an album title.
func slug(s string) string {
	out := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if out == "" {
		return "untitled"
	}
	return out
}

// Collect groups approved photos into albums by location, newest first.
func Collect(s *Store) *Assembly {
	ps := []*Photo{}
	for _, p := range s.Photos() {
		if p.Status == PhotoApproved {
			ps = append(ps, &p)
		}
	}
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].CreatedAt.After(ps[j].CreatedAt) })

	albums := map[string]*Album{}
	mapped := &Album{Title: "Mapped", Slug: "mapped", Photos: []*Photo{}}
	for _, p := range ps {
		if p.GPS != nil {
			mapped.Photos = append(mapped.Photos, p)
		}
		if p.Location == "" {
			continue
		}
		k := slug(p.Location)
		if albums[k] == nil {
			albums[k] = &Album{Title: p.Location, Slug: k, Photos: []*Photo{}}
		}
		albums[k].Photos = append(albums[k].Photos, p)
	}

	as := []*Album{}
	for _, a := range albums {
		as = append(as, a)
	}
	sort.Slice(as, func(i, j int) bool {
		li, lj := as[i].Latest(), as[j].Latest()
		if li.Equal(lj) {
			return as[i].Slug < as[j].Slug
		}
		return li.After(lj)
	})

	recent := &Album{Title: "Recent", Slug: "recent", Photos: ps}
	if len(recent.Photos) > maxRecent {
		recent.Photos = recent.Photos[0:maxRecent]
	}

	klog.V(1).Infof("collected %d approved photos into %d albums (%d mapped)", len(ps), len(as), len(mapped.Photos))
	return &Assembly{
		Photos: ps,
		Albums: as,
		Recent: recent,
		Mapped: mapped,
	}
}
