package auth

import "time"

// Account types. SystemAdmin is a protected singleton identity provisioned
// out-of-band; it can never be created through registration.
const (
	AccountTrial       = "trial"
	AccountPro         = "pro"
	AccountEnterprise  = "enterprise"
	AccountSystemAdmin = "system_admin"
)

// User is an authenticated principal's durable identity.
type User struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Email          string    `json:"email"`
	EmailVerified  bool      `json:"email_verified"`
	AccountType    string    `json:"account_type"`
	PasswordHash   string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Session represents one authenticated login. It is the unit of revocation:
// revoking it invalidates every token chained to it. LiveJTI holds the jti of
// the one currently valid refresh token for the session.
type Session struct {
	ID             string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	LiveJTI        string    `json:"-"`
	Revoked        bool      `json:"-"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// SessionMeta carries request metadata captured at login.
type SessionMeta struct {
	IPAddress string
	UserAgent string
}

// Principal is a resolved caller: a user plus the credential context the
// request arrived with. Scopes is nil for session-authenticated callers
// (no restriction) and the key's scope set for API-key callers.
type Principal struct {
	User      *User
	SessionID string
	Scopes    map[string]struct{}
}

// AllowsScope reports whether the principal's credential permits the scope.
// Session credentials are unrestricted.
func (p Principal) AllowsScope(scope string) bool {
	if p.Scopes == nil {
		return true
	}
	_, ok := p.Scopes[scope]
	return ok
}

func validAccountType(t string) bool {
	switch t {
	case AccountTrial, AccountPro, AccountEnterprise:
		return true
	}
	return false
}
