package apikey

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	svc, err := NewService(NewMemoryStore(), WithClock(clk.Now))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, clk
}

func TestCreateReturnsSecretOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	key, secret, err := svc.Create(ctx, "user-1", "ci bot", "deploy pipeline", []string{ScopeFilesUpload}, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(secret, SecretPrefix) {
		t.Fatalf("secret missing prefix: %q", secret)
	}
	if key.Prefix != secret[:len(key.Prefix)] {
		t.Fatalf("visible prefix %q does not match secret", key.Prefix)
	}
	if key.SecretHash == secret {
		t.Fatal("secret stored verbatim")
	}

	listed, err := svc.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 key, got %d", len(listed))
	}
	if listed[0].SecretHash != key.SecretHash {
		t.Fatal("listing lost the stored record")
	}
}

func TestCreateRejectsUnknownScope(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, "user-1", "bad", "", []string{ScopeFilesRead, "warp:speed"}, 0)
	if !errors.Is(err, ErrInvalidScope) {
		t.Fatalf("expected ErrInvalidScope, got %v", err)
	}
	// The whole request is rejected; nothing was stored.
	listed, err := svc.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected no keys, got %d", len(listed))
	}
}

func TestCreateRejectsPastExpiry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// A negative ttl must not fall through to a key without expiry.
	_, _, err := svc.Create(ctx, "user-1", "stale", "", []string{ScopeFilesRead}, -time.Hour)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	listed, err := svc.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected no keys, got %d", len(listed))
	}
}

func TestAuthenticateRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, secret, err := svc.Create(ctx, "user-1", "reader", "", []string{ScopeConversationsRead}, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	key, err := svc.Authenticate(ctx, secret)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if key.ID != created.ID || key.UserID != "user-1" {
		t.Fatalf("authenticated wrong key: %+v", key)
	}

	// Authentication touches last_used_at through the store.
	stored, err := svc.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(stored) != 1 || stored[0].LastUsedAt == nil {
		t.Fatal("last_used_at was not recorded")
	}
}

func TestAuthenticateFailureIsGeneric(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	_, revokedSecret, err := svc.Create(ctx, "user-1", "revoked", "", []string{ScopeFilesRead}, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	revoked, err := svc.Authenticate(ctx, revokedSecret)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := svc.Revoke(ctx, "user-1", revoked.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	_, expiredSecret, err := svc.Create(ctx, "user-1", "expired", "", []string{ScopeFilesRead}, time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	clk.Advance(2 * time.Hour)

	for name, secret := range map[string]string{
		"never existed": SecretPrefix + "nonsense",
		"revoked":       revokedSecret,
		"expired":       expiredSecret,
	} {
		if _, err := svc.Authenticate(ctx, secret); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("%s: expected ErrInvalidKey, got %v", name, err)
		}
	}
}

func TestAuthorizeEnforcesScopes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, secret, err := svc.Create(ctx, "user-1", "reader", "", []string{ScopeConversationsRead}, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	key, err := svc.Authenticate(ctx, secret)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if err := svc.Authorize(key, ScopeConversationsRead); err != nil {
		t.Fatalf("Authorize within scope: %v", err)
	}
	if err := svc.Authorize(key, ScopeFilesUpload); !errors.Is(err, ErrInsufficientScope) {
		t.Fatalf("expected ErrInsufficientScope, got %v", err)
	}
}

func TestRevokeRequiresOwnershipAndKeepsRow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	key, _, err := svc.Create(ctx, "user-1", "mine", "", []string{ScopeFilesRead}, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Revoke(ctx, "someone-else", key.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign key, got %v", err)
	}
	if err := svc.Revoke(ctx, "user-1", key.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	listed, err := svc.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 || listed[0].IsActive {
		t.Fatalf("expected one inactive row, got %+v", listed)
	}
}
