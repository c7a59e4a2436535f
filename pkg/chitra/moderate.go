package chitra

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"
)

// csvHeader is the header row of the member export.
var csvHeader = []string{"Name", "Email", "Phone", "Province", "District", "Village", "Type", "Status", "Joined Date"}

func requireReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", &ValidationError{Field: "reason", Reason: "a rejection reason is required"}
	}
	return reason, nil
}

func (s *Site) setMemberStatus(id string, st MemberStatus, reason string) (Member, error) {
	m, err := s.s.Member(id)
	if err != nil {
		return Member{}, err
	}
	m.Status = st
	m.RejectionReason = reason
	if err := s.s.SaveMember(m); err != nil {
		return Member{}, fmt.Errorf("save member: %w", err)
	}
	return m, nil
}

// ApproveMember activates a member so they can log in and submit photos.
func (s *Site) ApproveMember(id string) error {
	m, err := s.setMemberStatus(id, MemberActive, "")
	if err != nil {
		return err
	}
	klog.Infof("approved member %s", m.Email)
	return s.s.AddActivity(ActivityUser, "Approved member: "+m.FullName, m.Email)
}

// RejectMember rejects a member. A reason is required.
func (s *Site) RejectMember(id, reason string) error {
	reason, err := requireReason(reason)
	if err != nil {
		return err
	}
	m, err := s.setMemberStatus(id, MemberRejected, reason)
	if err != nil {
		return err
	}
	klog.Infof("rejected member %s: %s", m.Email, reason)
	return s.s.AddActivity(ActivityUser, "Rejected member: "+m.FullName, reason)
}

// DeleteMember removes a member along with their photos and files.
func (s *Site) DeleteMember(id string) error {
	m, err := s.s.Member(id)
	if err != nil {
		return err
	}
	ps, err := s.s.DeleteMember(id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	for _, p := range ps {
		s.removeFiles(p)
	}
	removeProfilePhoto(s.s.Dir(), m.Photo)
	klog.Infof("deleted member %s and %d photos", m.Email, len(ps))
	return s.s.AddActivity(ActivityUser, "Deleted member: "+m.FullName, m.Email)
}

func (s *Site) setPhotoStatus(id string, st PhotoStatus, reason string) (Photo, error) {
	p, err := s.s.Photo(id)
	if err != nil {
		return Photo{}, err
	}
	p.Status = st
	p.RejectionReason = reason
	if err := s.s.SavePhoto(p); err != nil {
		return Photo{}, fmt.Errorf("save photo: %w", err)
	}
	return p, nil
}

// ApprovePhoto publishes a photo.
func (s *Site) ApprovePhoto(id string) error {
	p, err := s.setPhotoStatus(id, PhotoApproved, "")
	if err != nil {
		return err
	}
	klog.Infof("approved photo %s (%q)", p.ID, p.Title)
	return s.s.AddActivity(ActivityPhoto, "Approved photo: "+p.Title, "by "+s.submitter(p))
}

// RejectPhoto rejects a photo. A reason is required.
func (s *Site) RejectPhoto(id, reason string) error {
	reason, err := requireReason(reason)
	if err != nil {
		return err
	}
	p, err := s.setPhotoStatus(id, PhotoRejected, reason)
	if err != nil {
		return err
	}
	klog.Infof("rejected photo %s (%q): %s", p.ID, p.Title, reason)
	return s.s.AddActivity(ActivityPhoto, "Rejected photo: "+p.Title, reason)
}

// DeletePhoto removes a photo and its files.
func (s *Site) DeletePhoto(id string) error {
	p, err := s.s.DeletePhoto(id)
	if err != nil {
		return err
	}
	s.removeFiles(p)
	klog.Infof("deleted photo %s (%q)", p.ID, p.Title)
	return s.s.AddActivity(ActivityPhoto, "Deleted photo: "+p.Title, "by "+s.submitter(p))
}

func (s *Site) submitter(p Photo) string {
	m, err := s.s.Member(p.MemberID)
	if err != nil {
		return "Unknown"
	}
	return m.FullName
}

func (s *Site) removeFiles(p Photo) {
	if p.File != "" {
		path := filepath.Join(s.s.Dir(), filepath.FromSlash(p.File))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			klog.Warningf("remove %s: %v", path, err)
		}
	}
	removeThumbs(s.s.Dir(), p.Thumbs)
}

// Stats counts members and photos and measures the data directory.
func (s *Site) Stats() Stats {
	st := Stats{}
	if fi, err := os.Stat(filepath.Join(s.s.Dir(), StoreFile)); err == nil {
		st.StoreBytes = fi.Size()
	}
	n, err := diskUsage(s.s.Dir())
	if err != nil {
		klog.Warningf("disk usage: %v", err)
	}
	st.StorageBytes = n

	for _, m := range s.s.Members() {
		st.TotalMembers++
		switch m.Status {
		case MemberPending:
			st.PendingMembers++
		case MemberActive:
			st.ActiveMembers++
		}
	}
	for _, p := range s.s.Photos() {
		st.TotalPhotos++
		if p.Status == PhotoPending {
			st.PendingPhotos++
		}
	}
	return st
}

// PendingMembers returns members awaiting approval, oldest first.
func (s *Site) PendingMembers() []Member {
	var ms []Member
	for _, m := range s.s.Members() {
		if m.Status == MemberPending {
			ms = append(ms, m)
		}
	}
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].CreatedAt.Before(ms[j].CreatedAt) })
	return ms
}

// PendingPhotos returns photos awaiting approval, oldest first.
func (s *Site) PendingPhotos() []Photo {
	return s.photosWithStatus(PhotoPending)
}

func (s *Site) photosWithStatus(st PhotoStatus) []Photo {
	var ps []Photo
	for _, p := range s.s.Photos() {
		if p.Status == st {
			ps = append(ps, p)
		}
	}
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].CreatedAt.Before(ps[j].CreatedAt) })
	return ps
}

// diskUsage sums the sizes of the regular files under root.
func diskUsage(root string) (int64, error) {
	var n int64
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if !de.IsRegular() {
				return nil
			}
			fi, err := os.Lstat(path)
			if err != nil {
				return err
			}
			n += fi.Size()
			return nil
		},
	})
	return n, err
}

// ExportMembersCSV writes every member as CSV.
func (s *Site) ExportMembersCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, m := range s.s.Members() {
		row := []string{
			m.FullName, m.Email, m.Phone, m.Province, m.District, m.Village,
			m.Type, string(m.Status), m.CreatedAt.Format("2006-01-02"),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", m.Email, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
