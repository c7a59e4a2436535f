package chitra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blang/semver"
	"k8s.io/klog/v2"
)

// StoreFile is the name of the record store inside the data directory.
const StoreFile = "chitra.json"

// maxActivity is how many activity entries are retained.
const maxActivity = 50

var storeVersion = semver.MustParse("1.0.0")

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

type document struct {
	Version    string       `json:"version"`
	Members    []Member     `json:"members"`
	Photos     []Photo      `json:"photos"`
	Activity   []Activity   `json:"activity"`
	LastBackup *time.Time   `json:"lastBackup,omitempty"`
	Admin      *Credentials `json:"admin,omitempty"`
}

// Store is a single-process key-value record store persisted as one JSON
// document. Every mutation rewrites the document.
type Store struct {
	mu  sync.Mutex
	dir string
	doc document

	now func() time.Time
}

// Open loads the store in dir, creating an empty one if none exists.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}

	s := &Store{dir: dir, now: time.Now}
	p := filepath.Join(dir, StoreFile)
	bs, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		klog.Infof("creating new store at %s", p)
		s.doc.Version = storeVersion.String()
		return s, s.write(s.doc)
	}
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	if err := json.Unmarshal(bs, &s.doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", p, err)
	}

	v, err := semver.Parse(s.doc.Version)
	if err != nil {
		return nil, fmt.Errorf("store version %q: %w", s.doc.Version, err)
	}
	if v.Major != storeVersion.Major {
		return nil, fmt.Errorf("store version %s is incompatible with %s", v, storeVersion)
	}

	klog.V(1).Infof("loaded %s: %d members, %d photos", p, len(s.doc.Members), len(s.doc.Photos))
	return s, nil
}

// Dir returns the directory the store lives in.
func (s *Store) Dir() string { return s.dir }

// clone copies d so that it can be changed without touching the original.
func (d document) clone() document {
	d.Members = append([]Member(nil), d.Members...)
	d.Photos = append([]Photo(nil), d.Photos...)
	d.Activity = append([]Activity(nil), d.Activity...)
	return d
}

// update applies fn to a copy of the document and keeps the copy only once
// it has been written. Callers hold s.mu.
func (s *Store) update(fn func(d *document) error) error {
	d := s.doc.clone()
	if err := fn(&d); err != nil {
		return err
	}
	if err := s.write(d); err != nil {
		return err
	}
	s.doc = d
	return nil
}

// write persists d.
func (s *Store) write(d document) error {
	bs, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	f, err := os.CreateTemp(s.dir, ".chitra-*.json")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(bs); err != nil {
		f.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return os.Rename(f.Name(), filepath.Join(s.dir, StoreFile))
}

// Members returns all members in registration order.
func (s *Store) Members() []Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Member{}, s.doc.Members...)
}

// Member returns the member with id.
func (s *Store) Member(id string) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.doc.Members {
		if m.ID == id {
			return m, nil
		}
	}
	return Member{}, fmt.Errorf("member %q: %w", id, ErrNotFound)
}

// MemberByEmail returns the member registered with email, ignoring case.
func (s *Store) MemberByEmail(email string) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.doc.Members {
		if strings.EqualFold(m.Email, strings.TrimSpace(email)) {
			return m, nil
		}
	}
	return Member{}, fmt.Errorf("member %q: %w", email, ErrNotFound)
}

// SaveMember inserts m or replaces the member with the same ID.
func (s *Store) SaveMember(m Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(func(d *document) error {
		for i := range d.Members {
			if d.Members[i].ID == m.ID {
				d.Members[i] = m
				return nil
			}
		}
		d.Members = append(d.Members, m)
		return nil
	})
}

// DeleteMember removes a member and every photo they submitted. It returns
// the removed photos so their files can be cleaned up.
func (s *Store) DeleteMember(id string) ([]Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []Photo
	err := s.update(func(d *document) error {
		found := false
		ms := d.Members[:0]
		for _, m := range d.Members {
			if m.ID == id {
				found = true
				continue
			}
			ms = append(ms, m)
		}
		if !found {
			return fmt.Errorf("member %q: %w", id, ErrNotFound)
		}
		d.Members = ms

		ps := d.Photos[:0]
		for _, p := range d.Photos {
			if p.MemberID == id {
				removed = append(removed, p)
				continue
			}
			ps = append(ps, p)
		}
		d.Photos = ps
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Photos returns all photos in submission order.
func (s *Store) Photos() []Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Photo{}, s.doc.Photos...)
}

// Photo returns the photo with id.
func (s *Store) Photo(id string) (Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.doc.Photos {
		if p.ID == id {
			return p, nil
		}
	}
	return Photo{}, fmt.Errorf("photo %q: %w", id, ErrNotFound)
}

// SavePhoto inserts p or replaces the photo with the same ID. The GPS
// coordinates of an existing photo are never overwritten.
func (s *Store) SavePhoto(p Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(func(d *document) error {
		for i := range d.Photos {
			if d.Photos[i].ID == p.ID {
				p.GPS = d.Photos[i].GPS
				d.Photos[i] = p
				return nil
			}
		}
		d.Photos = append(d.Photos, p)
		return nil
	})
}

// DeletePhoto removes the photo with id and returns it.
func (s *Store) DeletePhoto(id string) (Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed Photo
	err := s.update(func(d *document) error {
		for i, p := range d.Photos {
			if p.ID == id {
				removed = p
				d.Photos = append(d.Photos[:i], d.Photos[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("photo %q: %w", id, ErrNotFound)
	})
	if err != nil {
		return Photo{}, err
	}
	return removed, nil
}

// AddActivity records an entry in the activity feed, keeping the most recent ones.
func (s *Store) AddActivity(kind, message, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := Activity{Kind: kind, Message: message, Detail: detail, Timestamp: s.now().UTC()}
	return s.update(func(d *document) error {
		d.Activity = append([]Activity{a}, d.Activity...)
		if len(d.Activity) > maxActivity {
			d.Activity = d.Activity[:maxActivity]
		}
		return nil
	})
}

// Activity returns the activity feed, newest first.
func (s *Store) Activity() []Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	as := append([]Activity{}, s.doc.Activity...)
	sort.SliceStable(as, func(i, j int) bool {
		return as[i].Timestamp.After(as[j].Timestamp)
	})
	return as
}

// LastBackup returns when the store was last backed up, or the zero time.
func (s *Store) LastBackup() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.LastBackup == nil {
		return time.Time{}
	}
	return *s.doc.LastBackup
}

func (s *Store) setLastBackup(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(func(d *document) error {
		d.LastBackup = &t
		return nil
	})
}

// AdminCredentials returns stored admin credentials, if any were set.
func (s *Store) AdminCredentials() (Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Admin == nil {
		return Credentials{}, false
	}
	return *s.doc.Admin, true
}

func (s *Store) setAdminCredentials(c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(func(d *document) error {
		d.Admin = &c
		return nil
	})
}
