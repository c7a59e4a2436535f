package chitra

import (
	"time"

	"github.com/tstromberg/chitra/pkg/exifgps"
)

// MemberStatus is where a member stands in the approval workflow.
type MemberStatus string

const (
	MemberPending  MemberStatus = "pending"
	MemberActive   MemberStatus = "active"
	MemberRejected MemberStatus = "rejected"
)

// PhotoStatus is where a photo stands in the approval workflow.
type PhotoStatus string

const (
	PhotoPending  PhotoStatus = "pending"
	PhotoApproved PhotoStatus = "approved"
	PhotoRejected PhotoStatus = "rejected"
)

// ThumbMeta describes a thumbnail.
type ThumbMeta struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	RelPath string `json:"relPath"`
	Path    string `json:"-"`
}

// Member is a registered community member.
type Member struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Province string `json:"province"`
	District string `json:"district"`
	Village  string `json:"village"`
	Type     string `json:"userType"`

	// Password is a checksum, see Checksum.
	Password string `json:"password"`

	Status          MemberStatus `json:"status"`
	Role            string       `json:"role"`
	RejectionReason string       `json:"rejectionReason,omitempty"`

	// Photo is an optional portrait uploaded at registration.
	Photo *ProfilePhoto `json:"photo"`

	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin"`
}

// ProfilePhoto describes a member's portrait stored in the data directory.
type ProfilePhoto struct {
	File       string    `json:"file"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Photo is a gallery submission.
type Photo struct {
	ID       string `json:"id"`
	MemberID string `json:"userId"`

	Title       string   `json:"title"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`

	// File is relative to the data directory.
	File   string               `json:"file"`
	Thumbs map[string]ThumbMeta `json:"thumbs,omitempty"`

	Status          PhotoStatus `json:"status"`
	RejectionReason string      `json:"rejectionReason,omitempty"`

	// GPS is set once at submission and nil when the image carried no coordinates.
	GPS *exifgps.Coordinates `json:"gps"`

	CreatedAt time.Time `json:"createdAt"`
}

// Activity kinds.
const (
	ActivityUser   = "user"
	ActivityPhoto  = "photo"
	ActivitySystem = "system"
)

// Activity is an entry in the admin activity feed.
type Activity struct {
	Kind      string    `json:"type"`
	Message   string    `json:"message"`
	Detail    string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats summarises the store for the admin dashboard.
type Stats struct {
	TotalMembers   int `json:"totalMembers"`
	PendingMembers int `json:"pendingMembers"`
	ActiveMembers  int `json:"activeMembers"`
	TotalPhotos    int `json:"totalPhotos"`
	PendingPhotos  int `json:"pendingPhotos"`

	// StorageBytes is the size of everything in the data directory.
	StorageBytes int64 `json:"storageBytes"`
	// StoreBytes is the size of the record store document.
	StoreBytes int64 `json:"storeBytes"`
}

// Credentials are the admin username and password.
type Credentials struct {
	User     string `json:"username"`
	Password string `json:"password"`
}
