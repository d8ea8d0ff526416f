package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"videxa.org/internal/ids"
	"videxa.org/internal/obs"
)

const visiblePrefixLen = 12

// Service issues, lists, authenticates and revokes API keys.
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
		return nil, fmt.Errorf("apikey: store is required")
	}
	svc := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create mints a new key for the user. Every requested scope must exist in
// the registry; one unknown entry rejects the whole request. The returned
// secret is shown to the caller exactly once and never stored.
func (s *Service) Create(ctx context.Context, userID, name, description string, scopes []string, ttl time.Duration) (*Key, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(scopes) == 0 {
		return nil, "", fmt.Errorf("%w: at least one scope is required", ErrInvalidInput)
	}
	cleaned := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if !knownScope(scope) {
			return nil, "", fmt.Errorf("%w: %q", ErrInvalidScope, scope)
		}
		cleaned = append(cleaned, scope)
	}

	if ttl < 0 {
		return nil, "", fmt.Errorf("%w: expiry must be in the future", ErrInvalidInput)
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, "", err
	}
	now := s.now().UTC()
	key := &Key{
		ID:          ids.New(),
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(description),
		Prefix:      secret[:visiblePrefixLen],
		SecretHash:  hashSecret(secret),
		Scopes:      cleaned,
		IsActive:    true,
		CreatedAt:   now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		key.ExpiresAt = &exp
	}
	if err := s.store.Create(ctx, key); err != nil {
		return nil, "", err
	}
	return key, secret, nil
}

// List returns the caller's key metadata. Secrets are not recoverable.
func (s *Service) List(ctx context.Context, userID string) ([]*Key, error) {
	return s.store.ListByUser(ctx, userID)
}

// Authenticate resolves a presented secret to an active, unexpired key.
// The failure is identical whether the key never existed, was revoked or
// expired.
func (s *Service) Authenticate(ctx context.Context, presented string) (*Key, error) {
	presented = strings.TrimSpace(presented)
	if !strings.HasPrefix(presented, SecretPrefix) {
		obs.APIKeyAuthTotal.WithLabelValues("failure").Inc()
		return nil, ErrInvalidKey
	}
	key, err := s.store.FindBySecretHash(ctx, hashSecret(presented))
	if err != nil {
		obs.APIKeyAuthTotal.WithLabelValues("failure").Inc()
		return nil, ErrInvalidKey
	}
	if !key.IsActive {
		obs.APIKeyAuthTotal.WithLabelValues("failure").Inc()
		return nil, ErrInvalidKey
	}
	if key.ExpiresAt != nil && s.now().UTC().After(*key.ExpiresAt) {
		obs.APIKeyAuthTotal.WithLabelValues("failure").Inc()
		return nil, ErrInvalidKey
	}
	_ = s.store.TouchLastUsed(ctx, key.ID)
	obs.APIKeyAuthTotal.WithLabelValues("success").Inc()
	return key, nil
}

// Authorize enforces the key's scope set. Independent of session and
// account-type authorization.
func (s *Service) Authorize(key *Key, requiredScope string) error {
	if !key.HasScope(requiredScope) {
		return fmt.Errorf("%w: %s", ErrInsufficientScope, requiredScope)
	}
	return nil
}

// Revoke deactivates one of the caller's keys. The row is kept.
func (s *Service) Revoke(ctx context.Context, userID, keyID string) error {
	key, err := s.store.Find(ctx, keyID)
	if err != nil {
		return ErrNotFound
	}
	if key.UserID != userID {
		return ErrNotFound
	}
	return s.store.Deactivate(ctx, keyID)
}

func generateSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return SecretPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
