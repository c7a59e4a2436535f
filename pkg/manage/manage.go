// Package manage provides HTTP handlers for the gallery: member sign-up and
// submissions, and the admin moderation API.
package manage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"k8s.io/klog/v2"

	"github.com/tstromberg/chitra/pkg/chitra"
)

// maxUpload bounds the size of a submitted photo.
const maxUpload = 32 << 20

// Server serves the gallery and its API.
type Server struct {
	site      *chitra.Site
	backupDir string

	// renderMu serialises gallery rebuilds.
	renderMu sync.Mutex
}

// New creates a new server. Backups are written under backupDir.
func New(site *chitra.Site, backupDir string) *Server {
	return &Server{site: site, backupDir: backupDir}
}

// Handler returns the routes served by s.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /", http.FileServer(http.Dir(s.site.Config().OutDir)))

	mux.HandleFunc("POST /api/register", s.RegisterHandler())
	mux.HandleFunc("POST /api/login", s.LoginHandler())
	mux.HandleFunc("POST /api/forgot", s.ForgotHandler())
	mux.HandleFunc("GET /api/photos", s.PhotosHandler())
	mux.HandleFunc("POST /api/photos", s.member(s.SubmitHandler()))

	mux.HandleFunc("GET /api/admin/stats", s.admin(s.StatsHandler()))
	mux.HandleFunc("GET /api/admin/members", s.admin(s.MembersHandler()))
	mux.HandleFunc("GET /api/admin/members.csv", s.admin(s.ExportHandler()))
	mux.HandleFunc("POST /api/admin/members/{id}/{action}", s.admin(s.MemberActionHandler()))
	mux.HandleFunc("GET /api/admin/photos", s.admin(s.PendingPhotosHandler()))
	mux.HandleFunc("POST /api/admin/photos/{id}/{action}", s.admin(s.PhotoActionHandler()))
	mux.HandleFunc("GET /api/admin/activity", s.admin(s.ActivityHandler()))
	mux.HandleFunc("POST /api/admin/backup", s.admin(s.BackupHandler()))
	mux.HandleFunc("PUT /api/admin/credentials", s.admin(s.CredentialsHandler()))
	return mux
}

// Rebuild renders the public gallery from the store.
func (s *Server) Rebuild() error {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	return chitra.Render(s.site.Config(), chitra.Collect(s.site.Store()))
}

func (s *Server) rebuild() {
	if err := s.Rebuild(); err != nil {
		klog.Errorf("rebuild: %v", err)
	}
}

type apiError struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Warningf("encode response: %v", err)
	}
}

// status maps a domain error to an HTTP status code.
func status(err error) int {
	var ve *chitra.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, chitra.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chitra.ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, chitra.ErrPendingMember), errors.Is(err, chitra.ErrRejectedMember), errors.Is(err, chitra.ErrInactiveMember):
		return http.StatusForbidden
	case errors.Is(err, chitra.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, chitra.ErrUnsupportedImage):
		return http.StatusUnsupportedMediaType
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := status(err)
	if code == http.StatusInternalServerError {
		klog.Errorf("request failed: %v", err)
	}
	e := apiError{Error: err.Error()}
	var ve *chitra.ValidationError
	if errors.As(err, &ve) {
		e.Error, e.Field = ve.Reason, ve.Field
	}
	writeJSON(w, code, e)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &chitra.ValidationError{Field: "body", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

// public strips the password checksum from a member.
func public(m chitra.Member) chitra.Member {
	m.Password = ""
	return m
}

func publicAll(ms []chitra.Member) []chitra.Member {
	out := make([]chitra.Member, 0, len(ms))
	for _, m := range ms {
		out = append(out, public(m))
	}
	return out
}

type memberKey struct{}

func withMember(ctx context.Context, m chitra.Member) context.Context {
	return context.WithValue(ctx, memberKey{}, m)
}

func memberFrom(ctx context.Context) (chitra.Member, bool) {
	m, ok := ctx.Value(memberKey{}).(chitra.Member)
	return m, ok
}

// member requires member credentials via HTTP Basic Auth.
func (s *Server) member(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="chitra"`)
			writeError(w, chitra.ErrBadCredentials)
			return
		}
		m, err := s.site.Authenticate(email, pass)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r.WithContext(withMember(r.Context(), m)))
	}
}

// admin requires the admin credentials via HTTP Basic Auth.
func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !s.site.AdminLogin(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="chitra admin"`)
			writeJSON(w, http.StatusUnauthorized, apiError{Error: "admin login required"})
			return
		}
		next(w, r)
	}
}

// RegisterHandler signs up a new member.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chitra.Registration
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		m, err := s.site.Register(req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, public(m))
	}
}

// LoginHandler checks member credentials.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		m, err := s.site.Login(req.Email, req.Password)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, public(m))
	}
}

// ForgotHandler acknowledges a password reset request.
func (s *Server) ForgotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if !s.site.ForgotPassword(req.Email) {
			writeJSON(w, http.StatusNotFound, apiError{Error: "email not found"})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "password reset instructions sent"})
	}
}

// PhotosHandler lists approved photos, newest first.
func (s *Server) PhotosHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, chitra.Collect(s.site.Store()).Photos)
	}
}

// SubmitHandler accepts a multipart photo submission from a logged-in member.
func (s *Server) SubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, _ := memberFrom(r.Context())
		r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			writeError(w, &chitra.ValidationError{Field: "photo", Reason: err.Error()})
			return
		}

		f, fh, err := r.FormFile("photo")
		if err != nil {
			writeError(w, &chitra.ValidationError{Field: "photo", Reason: "required"})
			return
		}
		defer f.Close()

		var tags []string
		for _, t := range strings.Split(r.FormValue("tags"), ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}

		p, err := s.site.Submit(r.Context(), chitra.SubmitRequest{
			MemberID:    m.ID,
			Title:       r.FormValue("title"),
			Location:    r.FormValue("location"),
			Description: r.FormValue("description"),
			Tags:        tags,
			Filename:    fh.Filename,
		}, f)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

// StatsHandler returns dashboard counts.
func (s *Server) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			chitra.Stats
			LastBackup any `json:"lastBackup"`
		}{Stats: s.site.Stats(), LastBackup: lastBackup(s.site.Store())})
	}
}

func lastBackup(st *chitra.Store) any {
	t := st.LastBackup()
	if t.IsZero() {
		return nil
	}
	return t
}

// MembersHandler lists members; ?status=pending limits to pending ones.
func (s *Server) MembersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") == string(chitra.MemberPending) {
			writeJSON(w, http.StatusOK, publicAll(s.site.PendingMembers()))
			return
		}
		writeJSON(w, http.StatusOK, publicAll(s.site.Store().Members()))
	}
}

// ExportHandler downloads all members as CSV.
func (s *Server) ExportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="members.csv"`)
		if err := s.site.ExportMembersCSV(w); err != nil {
			klog.Errorf("export: %v", err)
		}
	}
}

type actionRequest struct {
	Reason string `json:"reason"`
}

// reason reads an optional JSON body holding a rejection reason.
func reason(r *http.Request) (string, error) {
	if r.ContentLength == 0 {
		return "", nil
	}
	var req actionRequest
	if err := decode(r, &req); err != nil {
		return "", err
	}
	return req.Reason, nil
}

// MemberActionHandler approves, rejects or deletes a member.
func (s *Server) MemberActionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var err error
		switch r.PathValue("action") {
		case "approve":
			err = s.site.ApproveMember(id)
		case "reject":
			var why string
			if why, err = reason(r); err == nil {
				err = s.site.RejectMember(id, why)
			}
		case "delete":
			if err = s.site.DeleteMember(id); err == nil {
				s.rebuild()
			}
		default:
			http.NotFound(w, r)
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		m, err := s.site.Store().Member(id)
		if err != nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, public(m))
	}
}

// PendingPhotosHandler lists photos awaiting moderation.
func (s *Server) PendingPhotosHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ps := s.site.PendingPhotos()
		if ps == nil {
			ps = []chitra.Photo{}
		}
		writeJSON(w, http.StatusOK, ps)
	}
}

// PhotoActionHandler approves, rejects or deletes a photo and rebuilds the gallery.
func (s *Server) PhotoActionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var err error
		switch r.PathValue("action") {
		case "approve":
			err = s.site.ApprovePhoto(id)
		case "reject":
			var why string
			if why, err = reason(r); err == nil {
				err = s.site.RejectPhoto(id, why)
			}
		case "delete":
			err = s.site.DeletePhoto(id)
		default:
			http.NotFound(w, r)
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		s.rebuild()

		p, err := s.site.Store().Photo(id)
		if err != nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// ActivityHandler returns the recent activity feed.
func (s *Server) ActivityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.site.Store().Activity())
	}
}

// BackupHandler copies the data directory into the backup directory.
func (s *Server) BackupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if s.backupDir == "" {
			writeJSON(w, http.StatusNotImplemented, apiError{Error: "no backup directory configured"})
			return
		}
		out, err := chitra.Backup(s.site.Store(), s.backupDir)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"path": out})
	}
}

// CredentialsHandler replaces the admin credentials.
func (s *Server) CredentialsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		var next chitra.Credentials
		if err := decode(r, &next); err != nil {
			writeError(w, err)
			return
		}
		if err := s.site.SetAdminCredentials(chitra.Credentials{User: user, Password: pass}, next); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
