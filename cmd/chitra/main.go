// chitra serves a community photo gallery with member submissions and admin moderation.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"k8s.io/klog/v2"

	"github.com/tstromberg/chitra/pkg/chitra"
	"github.com/tstromberg/chitra/pkg/exifgps"
	"github.com/tstromberg/chitra/pkg/manage"
)

var (
	dataDir      = flag.String("data", "", "Location of data directory [CHITRA_DATA_DIR]")
	outDir       = flag.String("out", "", "Location of rendered gallery [CHITRA_OUT_DIR]")
	title        = flag.String("title", "", "Title of photo collection [CHITRA_TITLE]")
	description  = flag.String("description", "", "Description of photo collection [CHITRA_DESCRIPTION]")
	lang         = flag.String("lang", "", "Gallery language: en or ne [CHITRA_LANG]")
	addr         = flag.String("addr", "", "host:port to bind to [CHITRA_ADDR]")
	backupDir    = flag.String("backup-dir", "", "Where admin backups are written [CHITRA_BACKUP_DIR]")
	inboxDir     = flag.String("inbox", "", "watch this directory and submit new images as pending photos")
	inboxMember  = flag.String("inbox-member", "", "email of the active member inbox photos are credited to")
	littleEndian = flag.Bool("little-endian", true, "decode GPS from little-endian (II) EXIF blocks")
	signed       = flag.Bool("signed", true, "negate southern latitudes and western longitudes")
)

// getenv returns v if set, then the environment variable key, then def.
func getenv(v, key, def string) string {
	if v != "" {
		return v
	}
	if e := os.Getenv(key); e != "" {
		return e
	}
	return def
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		klog.V(1).Infof("no .env loaded: %v", err)
	}

	c := &chitra.Config{
		DataDir:       getenv(*dataDir, "CHITRA_DATA_DIR", "data"),
		OutDir:        getenv(*outDir, "CHITRA_OUT_DIR", "public"),
		Title:         getenv(*title, "CHITRA_TITLE", "चित्र"),
		Description:   getenv(*description, "CHITRA_DESCRIPTION", "Photos shared by our community"),
		Lang:          getenv(*lang, "CHITRA_LANG", chitra.English),
		AdminUser:     getenv("", "CHITRA_ADMIN_USER", "admin"),
		AdminPassword: os.Getenv("CHITRA_ADMIN_PASSWORD"),
		GPS:           exifgps.Options{LittleEndian: *littleEndian, HemisphereSign: *signed},
	}
	if c.AdminPassword == "" {
		klog.Warningf("CHITRA_ADMIN_PASSWORD is unset: admin API disabled until credentials are stored")
	}

	st, err := chitra.Open(c.DataDir)
	if err != nil {
		klog.Exitf("open store: %v", err)
	}
	site := chitra.New(c, st)
	srv := manage.New(site, getenv(*backupDir, "CHITRA_BACKUP_DIR", ""))

	if err := srv.Rebuild(); err != nil {
		klog.Exitf("render failed: %v", err)
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	if *inboxDir != "" {
		m, err := st.MemberByEmail(*inboxMember)
		if err != nil {
			klog.Exitf("--inbox-member: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watch(ctx, site, *inboxDir, m.ID); err != nil {
				klog.Exitf("watch failed: %v", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		serve(srv, getenv(*addr, "CHITRA_ADDR", "localhost:12800"))
	}()

	wg.Wait()
}

// serve serves the gallery and API via HTTP
func serve(srv *manage.Server, addr string) {
	klog.Infof("Listening on %s...", addr)
	s := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.ListenAndServe(); err != nil {
		klog.Exitf("listen failed: %v", err)
	}
}

// settle is how long a file must go unmodified before it is imported.
const settle = 2 * time.Second

// inbox imports each path once, after it has stopped changing.
type inbox struct {
	settle time.Duration
	load   func(path string) error

	mu       sync.Mutex
	pending  map[string]*time.Timer
	imported map[string]bool
}

func newInbox(settle time.Duration, load func(path string) error) *inbox {
	return &inbox{
		settle:   settle,
		load:     load,
		pending:  map[string]*time.Timer{},
		imported: map[string]bool{},
	}
}

// seen schedules path for import, restarting its timer if one is running.
func (in *inbox) seen(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.imported[path] {
		klog.V(1).Infof("%s already imported, ignoring", path)
		return
	}
	if t, ok := in.pending[path]; ok {
		t.Reset(in.settle)
		return
	}
	in.pending[path] = time.AfterFunc(in.settle, func() { in.fire(path) })
}

func (in *inbox) fire(path string) {
	in.mu.Lock()
	delete(in.pending, path)
	if in.imported[path] {
		in.mu.Unlock()
		return
	}
	in.imported[path] = true
	in.mu.Unlock()

	if err := in.load(path); err != nil {
		klog.Errorf("import %s: %v", path, err)
		// a later event may retry
		in.mu.Lock()
		delete(in.imported, path)
		in.mu.Unlock()
	}
}

// watch submits images that appear in dir on behalf of memberID.
func watch(ctx context.Context, site *chitra.Site, dir string, memberID string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	klog.Infof("watching %s for new photos ...", dir)

	in := newInbox(settle, func(path string) error {
		p, err := site.ImportFile(ctx, memberID, path)
		if err != nil {
			return err
		}
		klog.Infof("imported %s as %s (gps=%v)", path, p.ID, p.GPS)
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			klog.V(1).Infof("event: %s", event)
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if filepath.Base(event.Name)[0] == '.' {
				continue
			}
			in.seen(event.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			klog.Errorf("watch error: %v", err)
		}
	}
}
