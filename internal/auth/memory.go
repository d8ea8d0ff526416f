package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store with in-process maps. It backs tests and
// single-node deployments without PostgreSQL.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]*User
	byEmail  map[string]string
	sessions map[string]*Session
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*User),
		byEmail:  make(map[string]string),
		sessions: make(map[string]*Session),
	}
}

func (m *MemoryStore) Users(ctx context.Context) UserStore       { return (*memUserStore)(m) }
func (m *MemoryStore) Sessions(ctx context.Context) SessionStore { return (*memSessionStore)(m) }

type memUserStore MemoryStore

func (s *memUserStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, exists := s.byEmail[email]; exists {
		return ErrDuplicate
	}
	cp := *u
	s.users[u.ID] = &cp
	s.byEmail[email] = u.ID
	return nil
}

func (s *memUserStore) Find(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

type memSessionStore MemoryStore

func (s *memSessionStore) Create(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *memSessionStore) Find(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *memSessionStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Session
	for _, sess := range s.sessions {
		if sess.UserID != userID {
			continue
		}
		cp := *sess
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memSessionStore) RotateJTI(ctx context.Context, id, oldJTI, newJTI string, now, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if sess.Revoked || sess.LiveJTI != oldJTI {
		return errStaleJTI
	}
	sess.LiveJTI = newJTI
	sess.LastActivityAt = now
	sess.ExpiresAt = expiresAt
	return nil
}

func (s *memSessionStore) Revoke(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.Revoked = true
	return nil
}

func (s *memSessionStore) RevokeAllForUser(ctx context.Context, userID, exceptID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, sess := range s.sessions {
		if sess.UserID != userID || sess.Revoked || sess.ID == exceptID {
			continue
		}
		sess.Revoked = true
		count++
	}
	return count, nil
}
