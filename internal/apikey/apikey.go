// Package apikey issues and validates long-lived, scope-restricted
// credentials that live independently of session lifecycle.
package apikey

import (
	"errors"
	"time"
)

// SecretPrefix marks every issued key. The full secret is shown exactly
// once at creation; only its hash and a short visible prefix are stored.
const SecretPrefix = "vnx_"

var (
	ErrInvalidScope      = errors.New("apikey: unknown scope")
	ErrInvalidKey        = errors.New("apikey: invalid api key")
	ErrInsufficientScope = errors.New("apikey: insufficient scope")
	ErrNotFound          = errors.New("apikey: not found")
	ErrInvalidInput      = errors.New("apikey: invalid input")
)

// Known scopes. Creation validates every requested scope against this
// registry; an unknown entry rejects the whole request.
const (
	ScopeConversationsRead  = "conversations:read"
	ScopeConversationsWrite = "conversations:write"
	ScopeFilesRead          = "files:read"
	ScopeFilesUpload        = "files:upload"
	ScopeFilesShare         = "files:share"
	ScopeProfileRead        = "profile:read"
)

// Scope describes a registry entry.
type Scope struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

// Registry is the fixed set of scopes a key may be restricted to.
var Registry = []Scope{
	{Key: ScopeConversationsRead, Description: "Read conversations"},
	{Key: ScopeConversationsWrite, Description: "Create and update conversations"},
	{Key: ScopeFilesRead, Description: "Read file metadata and content"},
	{Key: ScopeFilesUpload, Description: "Register and upload files"},
	{Key: ScopeFilesShare, Description: "Manage file sharing and permissions"},
	{Key: ScopeProfileRead, Description: "Read the owning user's profile"},
}

func knownScope(key string) bool {
	for _, s := range Registry {
		if s.Key == key {
			return true
		}
	}
	return false
}

// Key is the stored record of an API key. SecretHash is never serialized;
// Prefix exists for UI display only.
type Key struct {
	ID          string     `json:"key_id"`
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Prefix      string     `json:"prefix"`
	SecretHash  string     `json:"-"`
	Scopes      []string   `json:"scopes"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

// HasScope reports whether the key grants the named scope.
func (k *Key) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ScopeSet returns the key's scopes as a set for principal construction.
func (k *Key) ScopeSet() map[string]struct{} {
	set := make(map[string]struct{}, len(k.Scopes))
	for _, s := range k.Scopes {
		set[s] = struct{}{}
	}
	return set
}
