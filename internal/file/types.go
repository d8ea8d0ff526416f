// Package file implements file metadata and the sharing model: direct
// user grants, organization-wide grants and anonymous link grants, with
// a single effective permission computed per caller.
package file

import (
	"fmt"
	"time"
)

// Level orders permission levels. Higher levels include all capabilities
// of the lower ones.
type Level int

const (
	LevelNone Level = iota
	LevelView
	LevelEdit
	LevelAdmin
)

func (l Level) String() string {
	switch l {
	case LevelView:
		return "view"
	case LevelEdit:
		return "edit"
	case LevelAdmin:
		return "admin"
	default:
		return "none"
	}
}

// MarshalJSON renders the level as its wire name.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// ParseLevel maps a wire name to a Level. "none" is not accepted; a
// grant always carries a real level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "view":
		return LevelView, nil
	case "edit":
		return LevelEdit, nil
	case "admin":
		return LevelAdmin, nil
	default:
		return LevelNone, fmt.Errorf("%w: unknown permission level %q", ErrInvalidInput, s)
	}
}

func maxLevel(a, b Level) Level {
	if b > a {
		return b
	}
	return a
}

// Grantee types. A link grant has no grantee id; its own grant id doubles
// as the share token.
const (
	GranteeUser         = "user"
	GranteeOrganization = "organization"
	GranteeLink         = "link"
)

// File is stored metadata. Content storage is out of scope; SizeBytes and
// MimeType describe the blob held elsewhere.
type File struct {
	ID        string    `json:"file_id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Grant is one sharing edge on a file. For link grants the ID is the
// share token and PasswordHash optionally protects redemption. Revocation
// sets RevokedAt and keeps the row as an audit record.
type Grant struct {
	ID           string     `json:"grant_id"`
	FileID       string     `json:"file_id"`
	GranteeType  string     `json:"grantee_type"`
	GranteeID    string     `json:"grantee_id,omitempty"`
	Level        Level      `json:"level"`
	PasswordHash string     `json:"-"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
}

func (g *Grant) expired(now time.Time) bool {
	return g.ExpiresAt != nil && now.After(*g.ExpiresAt)
}

func (g *Grant) revoked() bool {
	return g.RevokedAt != nil
}

// Caller identifies who is asking. OrganizationID may be empty for users
// outside any organization.
type Caller struct {
	UserID         string
	OrganizationID string
}
