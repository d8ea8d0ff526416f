package apikey

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store with in-process maps.
type MemoryStore struct {
	mu     sync.Mutex
	keys   map[string]*Key
	byHash map[string]string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys:   make(map[string]*Key),
		byHash: make(map[string]string),
	}
}

func (m *MemoryStore) Create(ctx context.Context, k *Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := cloneKey(k)
	m.keys[k.ID] = cp
	m.byHash[k.SecretHash] = k.ID
	return nil
}

func (m *MemoryStore) Find(ctx context.Context, id string) (*Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneKey(k), nil
}

func (m *MemoryStore) FindBySecretHash(ctx context.Context, hash string) (*Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneKey(m.keys[id]), nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID string) ([]*Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Key
	for _, k := range m.keys {
		if k.UserID == userID {
			out = append(out, cloneKey(k))
		}
	}
	return out, nil
}

func (m *MemoryStore) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return ErrNotFound
	}
	k.IsActive = false
	return nil
}

func (m *MemoryStore) TouchLastUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	k.LastUsedAt = &now
	return nil
}

func cloneKey(k *Key) *Key {
	cp := *k
	cp.Scopes = append([]string(nil), k.Scopes...)
	if k.ExpiresAt != nil {
		exp := *k.ExpiresAt
		cp.ExpiresAt = &exp
	}
	if k.LastUsedAt != nil {
		used := *k.LastUsedAt
		cp.LastUsedAt = &used
	}
	return &cp
}
