package chitra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/copy"
	"k8s.io/klog/v2"
)

// BackupDateFormat names backup directories.
var BackupDateFormat = "20060102-150405"

// Backup copies the data directory to a timestamped directory under dest
// and records the time. It returns the directory written to.
func Backup(s *Store, dest string) (string, error) {
	now := s.now().UTC()
	out := filepath.Join(dest, now.Format(BackupDateFormat))
	if rel, err := filepath.Rel(s.Dir(), out); err == nil && !strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("backup destination %s is inside %s", out, s.Dir())
	}
	if _, err := os.Stat(out); err == nil {
		return "", fmt.Errorf("backup %s already exists", out)
	}

	klog.Infof("backing up %s -> %s", s.Dir(), out)

	// Hold the lock so the copied document matches the files beside it.
	s.mu.Lock()
	err := copy.Copy(s.Dir(), out, copy.Options{
		Skip: func(_ os.FileInfo, src, _ string) (bool, error) {
			return strings.HasPrefix(filepath.Base(src), ".chitra-"), nil
		},
	})
	s.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("copy: %w", err)
	}

	if err := s.setLastBackup(now); err != nil {
		return out, fmt.Errorf("record backup: %w", err)
	}
	if err := s.AddActivity(ActivitySystem, "Backup created", out); err != nil {
		klog.Warningf("activity: %v", err)
	}
	return out, nil
}
