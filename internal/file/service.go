package file

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"videxa.org/internal/ids"
	"videxa.org/internal/obs"
)

// Service implements file registration, access resolution and sharing.
type Service struct {
	store Store
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service over the given store.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("file: store is required")
	}
	svc := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// LinkRedemption carries an anonymous share token, with the password when
// the link is protected.
type LinkRedemption struct {
	Token    string
	Password string
}

// ShareRequest describes one grant to create. TTL and Password apply to
// link grants only.
type ShareRequest struct {
	GranteeType string
	GranteeID   string
	Level       Level
	Password    string
	TTL         time.Duration
}

// Register records metadata for an uploaded file. The owner holds
// implicit admin permission and never needs a grant row.
func (s *Service) Register(ctx context.Context, ownerID, name, mimeType string, sizeBytes int64) (*File, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if sizeBytes < 0 {
		return nil, fmt.Errorf("%w: negative size", ErrInvalidInput)
	}
	f := &File{
		ID:        ids.New(),
		OwnerID:   ownerID,
		Name:      name,
		MimeType:  strings.TrimSpace(mimeType),
		SizeBytes: sizeBytes,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Files(ctx).Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Get resolves the caller's effective permission and returns the file with
// it. A caller with no applicable grant gets ErrNotFound whether or not
// the file exists. A link token that matches but carries the wrong
// password gets ErrForbidden; the token itself proves the file exists.
func (s *Service) Get(ctx context.Context, caller Caller, fileID string, link *LinkRedemption) (*File, Level, error) {
	f, err := s.store.Files(ctx).Find(ctx, fileID)
	if err != nil {
		return nil, LevelNone, err
	}
	level, err := s.effective(ctx, f, caller, link)
	if err != nil {
		return nil, LevelNone, err
	}
	if level == LevelNone {
		return nil, LevelNone, ErrNotFound
	}
	return f, level, nil
}

// Share creates a grant on the file. Requires admin permission; the
// caller learns the file exists only at view level or above.
func (s *Service) Share(ctx context.Context, caller Caller, fileID string, req ShareRequest) (*Grant, error) {
	f, err := s.requireLevel(ctx, caller, fileID, LevelAdmin)
	if err != nil {
		return nil, err
	}
	if req.Level == LevelNone {
		return nil, fmt.Errorf("%w: level is required", ErrInvalidInput)
	}

	g := &Grant{
		ID:          ids.New(),
		FileID:      f.ID,
		GranteeType: req.GranteeType,
		Level:       req.Level,
		CreatedBy:   caller.UserID,
		CreatedAt:   s.now().UTC(),
	}
	switch req.GranteeType {
	case GranteeUser, GranteeOrganization:
		if req.GranteeID == "" {
			return nil, fmt.Errorf("%w: grantee_id is required for %s grants", ErrInvalidInput, req.GranteeType)
		}
		if req.Password != "" {
			return nil, fmt.Errorf("%w: password applies to link grants only", ErrInvalidInput)
		}
		g.GranteeID = req.GranteeID
	case GranteeLink:
		if req.GranteeID != "" {
			return nil, fmt.Errorf("%w: link grants carry no grantee_id", ErrInvalidInput)
		}
		if req.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, err
			}
			g.PasswordHash = string(hash)
		}
	default:
		return nil, fmt.Errorf("%w: unknown grantee type %q", ErrInvalidInput, req.GranteeType)
	}
	if req.TTL < 0 {
		return nil, fmt.Errorf("%w: expiry must be in the future", ErrInvalidInput)
	}
	if req.TTL > 0 {
		exp := s.now().UTC().Add(req.TTL)
		g.ExpiresAt = &exp
	}

	if err := s.store.Grants(ctx).Create(ctx, g); err != nil {
		return nil, err
	}
	obs.SharesTotal.WithLabelValues(g.GranteeType).Inc()
	return g, nil
}

// Permissions lists all live grants on the file. Admin only: a viewer or
// editor gets ErrForbidden, anyone else ErrNotFound.
func (s *Service) Permissions(ctx context.Context, caller Caller, fileID string) ([]*Grant, error) {
	f, err := s.requireLevel(ctx, caller, fileID, LevelAdmin)
	if err != nil {
		return nil, err
	}
	grants, err := s.store.Grants(ctx).ListByFile(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	live := make([]*Grant, 0, len(grants))
	for _, g := range grants {
		if g.revoked() {
			continue
		}
		if g.expired(now) {
			// Expired grants are purged on sight rather than by a sweeper.
			_ = s.store.Grants(ctx).Delete(ctx, g.ID)
			continue
		}
		live = append(live, g)
	}
	return live, nil
}

// RevokeGrant revokes one grant on the file. Admin only. The row is kept
// as an audit record; link grants stop resolving immediately.
func (s *Service) RevokeGrant(ctx context.Context, caller Caller, fileID, grantID string) error {
	f, err := s.requireLevel(ctx, caller, fileID, LevelAdmin)
	if err != nil {
		return err
	}
	g, err := s.store.Grants(ctx).Find(ctx, grantID)
	if err != nil {
		return err
	}
	if g.FileID != f.ID || g.revoked() {
		return ErrNotFound
	}
	return s.store.Grants(ctx).Revoke(ctx, grantID, s.now().UTC())
}

// Delete removes the file and revokes every grant on it. Admin only.
// Grant rows survive the file.
func (s *Service) Delete(ctx context.Context, caller Caller, fileID string) error {
	f, err := s.requireLevel(ctx, caller, fileID, LevelAdmin)
	if err != nil {
		return err
	}
	if err := s.store.Grants(ctx).RevokeByFile(ctx, f.ID, s.now().UTC()); err != nil {
		return err
	}
	return s.store.Files(ctx).Delete(ctx, f.ID)
}

// requireLevel loads the file and checks the caller holds at least want.
// Callers with no access at all cannot distinguish the file from a
// missing one.
func (s *Service) requireLevel(ctx context.Context, caller Caller, fileID string, want Level) (*File, error) {
	f, err := s.store.Files(ctx).Find(ctx, fileID)
	if err != nil {
		return nil, err
	}
	level, err := s.effective(ctx, f, caller, nil)
	if err != nil {
		return nil, err
	}
	if level == LevelNone {
		return nil, ErrNotFound
	}
	if level < want {
		return nil, ErrForbidden
	}
	return f, nil
}

// effective computes the caller's permission as the maximum over every
// applicable grant. Revoked grants contribute nothing but stay on record;
// expired grants contribute nothing and are purged.
func (s *Service) effective(ctx context.Context, f *File, caller Caller, link *LinkRedemption) (Level, error) {
	if caller.UserID != "" && caller.UserID == f.OwnerID {
		return LevelAdmin, nil
	}
	grants, err := s.store.Grants(ctx).ListByFile(ctx, f.ID)
	if err != nil {
		return LevelNone, err
	}
	now := s.now().UTC()
	level := LevelNone
	for _, g := range grants {
		if g.revoked() {
			continue
		}
		if g.expired(now) {
			_ = s.store.Grants(ctx).Delete(ctx, g.ID)
			continue
		}
		switch g.GranteeType {
		case GranteeUser:
			if caller.UserID != "" && g.GranteeID == caller.UserID {
				level = maxLevel(level, g.Level)
			}
		case GranteeOrganization:
			if caller.OrganizationID != "" && g.GranteeID == caller.OrganizationID {
				level = maxLevel(level, g.Level)
			}
		case GranteeLink:
			if link == nil || g.ID != link.Token {
				continue
			}
			if g.PasswordHash != "" {
				if bcrypt.CompareHashAndPassword([]byte(g.PasswordHash), []byte(link.Password)) != nil {
					return LevelNone, ErrForbidden
				}
			}
			level = maxLevel(level, g.Level)
		}
	}
	return level, nil
}
