package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"videxa.org/internal/obs"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour
)

// Service owns registration, login, token rotation and session lifecycle.
type Service struct {
	store Store
	codec *Codec
	now   func() time.Time

	accessTTL  time.Duration
	refreshTTL time.Duration
	adminEmail string
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token and session lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithAdminEmail reserves the protected system-admin email. Registration
// under it always fails with ErrDuplicate, whether or not the admin row has
// been seeded yet.
func WithAdminEmail(email string) ServiceOption {
	return func(s *Service) {
		s.adminEmail = strings.ToLower(strings.TrimSpace(email))
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service over the given store and token codec.
func NewService(store Store, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	svc := &Service{
		store:      store,
		codec:      codec,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// TokenPair is the result of login and refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	UserID           string
	SessionID        string
	AccessExpiresIn  int64
	RefreshExpiresAt time.Time
}

// Register creates a user account. The system_admin account type is not
// creatable here, and the protected admin email always reports a
// duplicate.
func (s *Service) Register(ctx context.Context, email, password, accountType string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	if accountType == "" {
		accountType = AccountTrial
	}
	if !validAccountType(accountType) {
		return nil, fmt.Errorf("%w: unknown account type %q", ErrInvalidInput, accountType)
	}
	if s.adminEmail != "" && email == s.adminEmail {
		return nil, ErrDuplicate
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		AccountType:  accountType,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials, opens a session and mints a token pair bound
// to it. A missing user and a wrong password are indistinguishable: both
// cost one bcrypt comparison and return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string, meta SessionMeta) (TokenPair, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return TokenPair{}, nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		burnPasswordCheck(password)
		obs.LoginsTotal.WithLabelValues("failure").Inc()
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		obs.LoginsTotal.WithLabelValues("failure").Inc()
		return TokenPair{}, nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	jti := uuid.NewString()
	session := &Session{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		LiveJTI:        jti,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.refreshTTL),
		LastActivityAt: now,
	}
	if err := s.store.Sessions(ctx).Create(ctx, session); err != nil {
		return TokenPair{}, nil, err
	}
	pair, err := s.mintPair(user, session.ID, jti)
	if err != nil {
		return TokenPair{}, nil, err
	}
	obs.LoginsTotal.WithLabelValues("success").Inc()
	return pair, user, nil
}

// Refresh rotates a refresh token. Presenting the session's live jti
// advances the chain and returns a fresh pair; presenting a superseded jti
// is treated as theft: the session is revoked and ErrTokenReuse returned.
// Two concurrent refreshes with the same jti race on the store's
// compare-and-swap; exactly one wins, the other lands in the reuse path.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken, TokenTypeRefresh)
	if err != nil {
		obs.RefreshTotal.WithLabelValues("failure").Inc()
		if errors.Is(err, ErrWrongTokenType) {
			return TokenPair{}, ErrWrongTokenType
		}
		return TokenPair{}, ErrInvalidToken
	}

	sessions := s.store.Sessions(ctx)
	session, err := sessions.Find(ctx, claims.SessionID)
	if err != nil {
		obs.RefreshTotal.WithLabelValues("failure").Inc()
		return TokenPair{}, ErrInvalidToken
	}
	now := s.now().UTC()
	if session.Revoked || now.After(session.ExpiresAt) {
		obs.RefreshTotal.WithLabelValues("failure").Inc()
		return TokenPair{}, ErrInvalidToken
	}

	if session.LiveJTI != claims.ID {
		return TokenPair{}, s.flagCompromised(ctx, session.ID)
	}

	newJTI := uuid.NewString()
	err = sessions.RotateJTI(ctx, session.ID, claims.ID, newJTI, now, now.Add(s.refreshTTL))
	if errors.Is(err, errStaleJTI) {
		// Lost the race against a concurrent refresh of the same token.
		return TokenPair{}, s.flagCompromised(ctx, session.ID)
	}
	if err != nil {
		obs.RefreshTotal.WithLabelValues("failure").Inc()
		return TokenPair{}, ErrInvalidToken
	}

	user, err := s.store.Users(ctx).Find(ctx, session.UserID)
	if err != nil {
		obs.RefreshTotal.WithLabelValues("failure").Inc()
		return TokenPair{}, ErrInvalidToken
	}
	pair, err := s.mintPair(user, session.ID, newJTI)
	if err != nil {
		return TokenPair{}, err
	}
	obs.RefreshTotal.WithLabelValues("success").Inc()
	return pair, nil
}

func (s *Service) flagCompromised(ctx context.Context, sessionID string) error {
	_ = s.store.Sessions(ctx).Revoke(ctx, sessionID)
	obs.ReuseDetectedTotal.Inc()
	obs.RefreshTotal.WithLabelValues("reuse_detected").Inc()
	return ErrTokenReuse
}

// Authenticate resolves a bearer access token into a principal. Session
// liveness is the source of truth: a decodable token bound to a revoked or
// expired session is rejected.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	claims, err := s.codec.Decode(accessToken, TokenTypeAccess)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	session, err := s.store.Sessions(ctx).Find(ctx, claims.SessionID)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	if session.Revoked || s.now().UTC().After(session.ExpiresAt) {
		return Principal{}, ErrInvalidToken
	}
	user, err := s.store.Users(ctx).Find(ctx, claims.Subject)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	return Principal{User: user, SessionID: session.ID}, nil
}

// UserByID loads a principal's identity without credential checks. Used by
// the gateway when an API key has already vouched for the caller.
func (s *Service) UserByID(ctx context.Context, id string) (*User, error) {
	return s.store.Users(ctx).Find(ctx, id)
}

// Sessions lists the caller's live sessions. Token material never leaves
// the store.
func (s *Service) Sessions(ctx context.Context, userID string) ([]*Session, error) {
	all, err := s.store.Sessions(ctx).ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	out := make([]*Session, 0, len(all))
	for _, sess := range all {
		if sess.Revoked || now.After(sess.ExpiresAt) {
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

// RevokeSession revokes one of the caller's own sessions; it need not be
// the one that authenticated the call.
func (s *Service) RevokeSession(ctx context.Context, userID, sessionID string) error {
	session, err := s.store.Sessions(ctx).Find(ctx, sessionID)
	if err != nil {
		return ErrNotFound
	}
	if session.UserID != userID || session.Revoked {
		return ErrNotFound
	}
	return s.store.Sessions(ctx).Revoke(ctx, sessionID)
}

// RevokeAllSessions revokes every live session for the user, optionally
// sparing the one tied to the calling token. Returns the count revoked.
func (s *Service) RevokeAllSessions(ctx context.Context, userID string, keepCurrent bool, currentSessionID string) (int, error) {
	except := ""
	if keepCurrent {
		except = currentSessionID
	}
	return s.store.Sessions(ctx).RevokeAllForUser(ctx, userID, except)
}

// Logout revokes the session behind the calling token. The stateless access
// token stays decodable until its own expiry, but every protected endpoint
// consults session liveness, so authorization ends here.
func (s *Service) Logout(ctx context.Context, principal Principal) error {
	if principal.SessionID == "" {
		return ErrUnauthorized
	}
	return s.RevokeSession(ctx, principal.User.ID, principal.SessionID)
}

func (s *Service) mintPair(user *User, sessionID, refreshJTI string) (TokenPair, error) {
	access, err := s.codec.Encode(Claims{
		Email:            user.Email,
		EmailVerified:    user.EmailVerified,
		AccountType:      user.AccountType,
		SessionID:        sessionID,
		TokenType:        TokenTypeAccess,
		RegisteredClaims: registered(user.ID, uuid.NewString()),
	}, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.codec.Encode(Claims{
		SessionID:        sessionID,
		TokenType:        TokenTypeRefresh,
		RegisteredClaims: registered(user.ID, refreshJTI),
	}, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		UserID:           user.ID,
		SessionID:        sessionID,
		AccessExpiresIn:  int64(s.accessTTL.Seconds()),
		RefreshExpiresAt: s.now().UTC().Add(s.refreshTTL),
	}, nil
}
