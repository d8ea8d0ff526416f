package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the identity core.
type Store interface {
	Users(ctx context.Context) UserStore
	Sessions(ctx context.Context) SessionStore
}

// UserStore manages principals.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// SessionStore manages session lifecycle. RotateJTI is the one operation
// with compare-and-swap semantics: the update applies only when the stored
// live jti still equals oldJTI and the session is not revoked; otherwise it
// returns errStaleJTI and the caller treats the rotation as token reuse.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, id string) (*Session, error)
	ListByUser(ctx context.Context, userID string) ([]*Session, error)
	RotateJTI(ctx context.Context, id, oldJTI, newJTI string, now, expiresAt time.Time) error
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID, exceptID string) (int, error)
}
