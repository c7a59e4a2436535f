package manage

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/tstromberg/chitra/pkg/chitra"
)

const (
	adminUser = "admin"
	adminPass = "admin123"
)

func newServer(t *testing.T) (*Server, *chitra.Site) {
	t.Helper()
	dir := t.TempDir()
	st, err := chitra.Open(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c := &chitra.Config{
		DataDir:       st.Dir(),
		OutDir:        filepath.Join(dir, "out"),
		Title:         "Chitra Test Gallery",
		Lang:          chitra.English,
		AdminUser:     adminUser,
		AdminPassword: adminPass,
		Thumbnails:    map[string]chitra.ThumbOpts{"Album": {Y: 16, Quality: 80}},
	}
	site := chitra.New(c, st)
	srv := New(site, filepath.Join(dir, "backups"))
	if err := srv.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return srv, site
}

type request struct {
	method, path string
	body         io.Reader
	contentType  string
	user, pass   string
}

func do(t *testing.T, h http.Handler, r request) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(r.method, r.path, r.body)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.user != "" {
		req.SetBasicAuth(r.user, r.pass)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	bs, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(bs)
}

func registration(email string) chitra.Registration {
	return chitra.Registration{
		FullName: "Sita Sharma",
		Email:    email,
		Phone:    "+9779841234567",
		Province: "Gandaki",
		District: "Kaski",
		Village:  "Sarangkot",
		Type:     "photographer",
		Password: "Secret#123",
		Confirm:  "Secret#123",
	}
}

func register(t *testing.T, h http.Handler, email string) chitra.Member {
	t.Helper()
	w := do(t, h, request{method: "POST", path: "/api/register", body: jsonBody(t, registration(email))})
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d: %s", w.Code, w.Body)
	}
	var m chitra.Member
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRegisterAndLogin(t *testing.T) {
	srv, _ := newServer(t)
	h := srv.Handler()

	m := register(t, h, "sita@example.com")
	if m.Password != "" {
		t.Errorf("register response leaks password checksum %q", m.Password)
	}
	if m.Status != chitra.MemberPending {
		t.Errorf("status = %q, want pending", m.Status)
	}

	w := do(t, h, request{method: "POST", path: "/api/register", body: jsonBody(t, registration("sita@example.com"))})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate register = %d, want 409", w.Code)
	}

	bad := registration("ram@example.com")
	bad.Phone = "12345"
	w = do(t, h, request{method: "POST", path: "/api/register", body: jsonBody(t, bad)})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad phone = %d, want 400", w.Code)
	}
	var e apiError
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatal(err)
	}
	if e.Field != "phone" {
		t.Errorf("error field = %q, want phone", e.Field)
	}

	w = do(t, h, request{method: "POST", path: "/api/register", body: strings.NewReader("{")})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}

	login := map[string]string{"email": "sita@example.com", "password": "Secret#123"}
	w = do(t, h, request{method: "POST", path: "/api/login", body: jsonBody(t, login)})
	if w.Code != http.StatusForbidden {
		t.Errorf("pending login = %d, want 403", w.Code)
	}

	w = do(t, h, request{method: "POST", path: "/api/admin/members/" + m.ID + "/approve", user: adminUser, pass: adminPass})
	if w.Code != http.StatusOK {
		t.Fatalf("approve = %d: %s", w.Code, w.Body)
	}

	w = do(t, h, request{method: "POST", path: "/api/login", body: jsonBody(t, login)})
	if w.Code != http.StatusOK {
		t.Errorf("login = %d: %s", w.Code, w.Body)
	}

	login["password"] = "wrong"
	w = do(t, h, request{method: "POST", path: "/api/login", body: jsonBody(t, login)})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login = %d, want 401", w.Code)
	}

	w = do(t, h, request{method: "POST", path: "/api/forgot", body: jsonBody(t, map[string]string{"email": "sita@example.com"})})
	if w.Code != http.StatusAccepted {
		t.Errorf("forgot = %d, want 202", w.Code)
	}
	w = do(t, h, request{method: "POST", path: "/api/forgot", body: jsonBody(t, map[string]string{"email": "nobody@example.com"})})
	if w.Code != http.StatusNotFound {
		t.Errorf("forgot unknown = %d, want 404", w.Code)
	}
}

func TestAdminRequiresAuth(t *testing.T) {
	srv, _ := newServer(t)
	h := srv.Handler()

	tests := []struct {
		name       string
		user, pass string
		want       int
	}{
		{"none", "", "", http.StatusUnauthorized},
		{"wrong", adminUser, "guess", http.StatusUnauthorized},
		{"member", "sita@example.com", "Secret#123", http.StatusUnauthorized},
		{"admin", adminUser, adminPass, http.StatusOK},
	}
	for _, tc := range tests {
		w := do(t, h, request{method: "GET", path: "/api/admin/stats", user: tc.user, pass: tc.pass})
		if w.Code != tc.want {
			t.Errorf("%s: stats = %d, want %d", tc.name, w.Code, tc.want)
		}
	}
}

func multipartPhoto(t *testing.T, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var b bytes.Buffer
	mw := multipart.NewWriter(&b)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := mw.CreateFormFile("photo", "stupa.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if err := jpeg.Encode(fw, image.NewGray(image.Rect(0, 0, 24, 16)), nil); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &b, mw.FormDataContentType()
}

func TestSubmitAndModerate(t *testing.T) {
	srv, site := newServer(t)
	h := srv.Handler()
	m := register(t, h, "sita@example.com")

	body, ct := multipartPhoto(t, map[string]string{"title": "Boudhanath", "location": "Kathmandu", "tags": "stupa, temple"})
	w := do(t, h, request{method: "POST", path: "/api/photos", body: body, contentType: ct, user: "sita@example.com", pass: "Secret#123"})
	if w.Code != http.StatusForbidden {
		t.Errorf("pending member submit = %d, want 403", w.Code)
	}

	if err := site.ApproveMember(m.ID); err != nil {
		t.Fatal(err)
	}

	body, ct = multipartPhoto(t, map[string]string{"title": "Boudhanath", "location": "Kathmandu", "tags": "stupa, temple"})
	w = do(t, h, request{method: "POST", path: "/api/photos", body: body, contentType: ct})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous submit = %d, want 401", w.Code)
	}

	body, ct = multipartPhoto(t, map[string]string{"title": "Boudhanath", "location": "Kathmandu", "tags": "stupa, temple"})
	w = do(t, h, request{method: "POST", path: "/api/photos", body: body, contentType: ct, user: "sita@example.com", pass: "Secret#123"})
	if w.Code != http.StatusCreated {
		t.Fatalf("submit = %d: %s", w.Code, w.Body)
	}
	var p chitra.Photo
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.MemberID != m.ID || p.Status != chitra.PhotoPending || p.GPS != nil {
		t.Errorf("submitted photo = %+v", p)
	}
	if diff := cmp.Diff([]string{"stupa", "temple"}, p.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}

	admin := func(method, path string, body io.Reader) *httptest.ResponseRecorder {
		return do(t, h, request{method: method, path: path, body: body, user: adminUser, pass: adminPass})
	}

	w = admin("GET", "/api/admin/photos", nil)
	var pending []chitra.Photo
	if err := json.Unmarshal(w.Body.Bytes(), &pending); err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != p.ID {
		t.Errorf("pending photos = %+v", pending)
	}

	w = admin("POST", "/api/admin/photos/"+p.ID+"/reject", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("reject without reason = %d, want 400", w.Code)
	}
	w = admin("POST", "/api/admin/photos/"+p.ID+"/frobnicate", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown action = %d, want 404", w.Code)
	}
	w = admin("POST", "/api/admin/photos/missing/approve", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("approve missing = %d, want 404", w.Code)
	}

	w = admin("POST", "/api/admin/photos/"+p.ID+"/approve", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("approve = %d: %s", w.Code, w.Body)
	}

	w = do(t, h, request{method: "GET", path: "/api/photos"})
	var approved []chitra.Photo
	if err := json.Unmarshal(w.Body.Bytes(), &approved); err != nil {
		t.Fatal(err)
	}
	if len(approved) != 1 || approved[0].Title != "Boudhanath" {
		t.Errorf("public photos = %+v", approved)
	}

	w = do(t, h, request{method: "GET", path: "/albums/kathmandu/"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Boudhanath") {
		t.Errorf("album page = %d: %s", w.Code, w.Body)
	}

	var stats chitra.Stats
	w = admin("GET", "/api/admin/stats", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	want := chitra.Stats{TotalMembers: 1, ActiveMembers: 1, TotalPhotos: 1}
	if diff := cmp.Diff(want, stats, cmpopts.IgnoreFields(chitra.Stats{}, "StorageBytes", "StoreBytes")); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if stats.StoreBytes == 0 || stats.StorageBytes <= stats.StoreBytes {
		t.Errorf("storage stats = %d/%d", stats.StorageBytes, stats.StoreBytes)
	}

	if got, err := site.Store().Member(m.ID); err != nil || got.LastLogin != nil {
		t.Errorf("submission recorded a login: %+v, %v", got.LastLogin, err)
	}

	w = do(t, h, request{method: "GET", path: "/" + p.File})
	if w.Code != http.StatusOK {
		t.Errorf("approved original = %d, want 200", w.Code)
	}

	w = admin("POST", "/api/admin/photos/"+p.ID+"/delete", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}

	w = do(t, h, request{method: "GET", path: "/" + p.File})
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted original = %d, want 404", w.Code)
	}
	w = do(t, h, request{method: "GET", path: "/albums/kathmandu/"})
	if w.Code != http.StatusNotFound {
		t.Errorf("emptied album page = %d, want 404", w.Code)
	}
}

func TestMemberAdmin(t *testing.T) {
	srv, _ := newServer(t)
	h := srv.Handler()
	m := register(t, h, "sita@example.com")
	register(t, h, "ram@example.com")

	admin := func(method, path string, body io.Reader) *httptest.ResponseRecorder {
		return do(t, h, request{method: method, path: path, body: body, user: adminUser, pass: adminPass})
	}

	w := admin("POST", "/api/admin/members/"+m.ID+"/reject", jsonBody(t, map[string]string{"reason": "duplicate"}))
	if w.Code != http.StatusOK {
		t.Fatalf("reject = %d: %s", w.Code, w.Body)
	}
	var got chitra.Member
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != chitra.MemberRejected || got.RejectionReason != "duplicate" {
		t.Errorf("rejected member = %+v", got)
	}

	w = admin("GET", "/api/admin/members?status=pending", nil)
	var pending []chitra.Member
	if err := json.Unmarshal(w.Body.Bytes(), &pending); err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Email != "ram@example.com" {
		t.Errorf("pending members = %+v", pending)
	}

	w = admin("GET", "/api/admin/members.csv", nil)
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3 || lines[0] != "Name,Email,Phone,Province,District,Village,Type,Status,Joined Date" {
		t.Errorf("csv = %q", w.Body.String())
	}

	w = admin("GET", "/api/admin/activity", nil)
	var as []chitra.Activity
	if err := json.Unmarshal(w.Body.Bytes(), &as); err != nil {
		t.Fatal(err)
	}
	if len(as) != 3 {
		t.Errorf("got %d activity entries, want 3", len(as))
	}

	w = admin("POST", "/api/admin/members/"+m.ID+"/delete", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
}

func TestBackupAndCredentials(t *testing.T) {
	srv, site := newServer(t)
	h := srv.Handler()

	w := do(t, h, request{method: "POST", path: "/api/admin/backup", user: adminUser, pass: adminPass})
	if w.Code != http.StatusCreated {
		t.Fatalf("backup = %d: %s", w.Code, w.Body)
	}
	if site.Store().LastBackup().IsZero() {
		t.Error("backup not recorded")
	}

	next := chitra.Credentials{User: "moderator", Password: "k4thmandu!"}
	w = do(t, h, request{method: "PUT", path: "/api/admin/credentials", body: jsonBody(t, next), user: adminUser, pass: adminPass})
	if w.Code != http.StatusNoContent {
		t.Fatalf("credentials = %d: %s", w.Code, w.Body)
	}

	w = do(t, h, request{method: "GET", path: "/api/admin/stats", user: adminUser, pass: adminPass})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("old credentials = %d, want 401", w.Code)
	}
	w = do(t, h, request{method: "GET", path: "/api/admin/stats", user: next.User, pass: next.Password})
	if w.Code != http.StatusOK {
		t.Errorf("new credentials = %d, want 200", w.Code)
	}
}
