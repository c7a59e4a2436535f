package chitra

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

var (
	ErrBadCredentials = errors.New("invalid email or password")
	ErrPendingMember  = errors.New("account is pending verification by admin")
	ErrRejectedMember = errors.New("account has been rejected")
	ErrEmailTaken     = errors.New("email already registered")
	ErrInactiveMember = errors.New("account is not active")
)

var (
	phoneRe   = regexp.MustCompile(`^(\+977)?9[6-9]\d{8}$`)
	emailRe   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	specialRe = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

var strengthLabels = []string{"Very Weak", "Weak", "Fair", "Good", "Strong"}

// Registration is a sign-up request.
type Registration struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Province string `json:"province"`
	District string `json:"district"`
	Village  string `json:"village"`
	Type     string `json:"userType"`
	Password string `json:"password"`
	Confirm  string `json:"confirmPassword"`
	// Photo is an optional base64 image data URL.
	Photo string `json:"photo,omitempty"`
}

// ValidationError explains why a registration was refused.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Checksum is the 32-bit string hash used for stored passwords. It is not a
// cryptographic hash.
func Checksum(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	return strconv.Itoa(int(h))
}

// PasswordStrength scores p from 0 to 5 and returns a label for the score.
func PasswordStrength(p string) (int, string) {
	score := 0
	if len(p) >= 8 {
		score++
	}
	var lower, upper, digit bool
	for _, r := range p {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	for _, ok := range []bool{lower, upper, digit, specialRe.MatchString(p)} {
		if ok {
			score++
		}
	}
	if score >= len(strengthLabels) {
		return score, strengthLabels[len(strengthLabels)-1]
	}
	return score, strengthLabels[score]
}

// strongPassword requires every criterion PasswordStrength scores.
func strongPassword(p string) bool {
	score, _ := PasswordStrength(p)
	return score == 5
}

func (r Registration) validate() error {
	if strings.TrimSpace(r.FullName) == "" {
		return &ValidationError{Field: "fullName", Reason: "required"}
	}
	if r.Password != r.Confirm {
		return &ValidationError{Field: "password", Reason: "passwords do not match"}
	}
	if !strongPassword(r.Password) {
		return &ValidationError{Field: "password", Reason: "password is not strong enough"}
	}
	if !phoneRe.MatchString(r.Phone) {
		return &ValidationError{Field: "phone", Reason: "not a valid Nepali phone number"}
	}
	if !emailRe.MatchString(r.Email) {
		return &ValidationError{Field: "email", Reason: "not a valid email address"}
	}
	return nil
}

// Register creates a pending member.
func (s *Site) Register(r Registration) (Member, error) {
	if err := r.validate(); err != nil {
		return Member{}, err
	}
	if _, err := s.s.MemberByEmail(r.Email); err == nil {
		return Member{}, ErrEmailTaken
	}

	m := Member{
		ID:        uuid.NewString(),
		FullName:  strings.TrimSpace(r.FullName),
		Email:     strings.TrimSpace(r.Email),
		Phone:     r.Phone,
		Province:  r.Province,
		District:  r.District,
		Village:   r.Village,
		Type:      r.Type,
		Password:  Checksum(r.Password),
		Status:    MemberPending,
		Role:      "user",
		CreatedAt: s.s.now().UTC(),
	}
	if r.Photo != "" {
		pp, err := saveProfilePhoto(s.s.Dir(), m.ID, r.Photo, m.CreatedAt)
		if err != nil {
			klog.Warningf("profile photo for %s: %v", m.Email, err)
		} else {
			m.Photo = pp
		}
	}

	if err := s.s.SaveMember(m); err != nil {
		removeProfilePhoto(s.s.Dir(), m.Photo)
		return Member{}, fmt.Errorf("save member: %w", err)
	}
	klog.Infof("registered %s (%s), pending approval", m.Email, m.ID)
	if err := s.s.AddActivity(ActivityUser, "New registration: "+m.FullName, m.Email); err != nil {
		klog.Warningf("activity: %v", err)
	}
	return m, nil
}

// Authenticate checks a member's credentials without recording anything.
func (s *Site) Authenticate(email, password string) (Member, error) {
	m, err := s.s.MemberByEmail(email)
	if err != nil || m.Password != Checksum(password) {
		return Member{}, ErrBadCredentials
	}

	switch m.Status {
	case MemberPending:
		return Member{}, ErrPendingMember
	case MemberRejected:
		return Member{}, ErrRejectedMember
	}
	return m, nil
}

// Login checks a member's credentials and records the login time.
func (s *Site) Login(email, password string) (Member, error) {
	m, err := s.Authenticate(email, password)
	if err != nil {
		return Member{}, err
	}

	now := s.s.now().UTC()
	m.LastLogin = &now
	if err := s.s.SaveMember(m); err != nil {
		return Member{}, fmt.Errorf("save member: %w", err)
	}
	klog.V(1).Infof("login: %s", m.Email)
	return m, nil
}

// ForgotPassword reports whether email belongs to a member. No mail is sent.
func (s *Site) ForgotPassword(email string) bool {
	_, err := s.s.MemberByEmail(email)
	return err == nil
}

// adminCredentials returns stored credentials, falling back to the configured ones.
func (s *Site) adminCredentials() Credentials {
	if c, ok := s.s.AdminCredentials(); ok {
		return c
	}
	return Credentials{User: s.c.AdminUser, Password: s.c.AdminPassword}
}

// AdminLogin reports whether user and password match the admin credentials.
// An unconfigured password never matches.
func (s *Site) AdminLogin(user, password string) bool {
	c := s.adminCredentials()
	return c.Password != "" && user == c.User && password == c.Password
}

// SetAdminCredentials replaces the admin credentials after verifying the current ones.
func (s *Site) SetAdminCredentials(current, next Credentials) error {
	if !s.AdminLogin(current.User, current.Password) {
		return ErrBadCredentials
	}
	if len(next.User) < 3 {
		return &ValidationError{Field: "username", Reason: "must be at least 3 characters long"}
	}
	if len(next.Password) < 8 {
		return &ValidationError{Field: "password", Reason: "must be at least 8 characters long"}
	}
	if err := s.s.setAdminCredentials(next); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	klog.Infof("admin credentials updated")
	return s.s.AddActivity(ActivitySystem, "Admin credentials updated", next.User)
}
