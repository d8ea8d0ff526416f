package file

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store with in-process maps.
type MemoryStore struct {
	mu     sync.Mutex
	files  map[string]*File
	grants map[string]*Grant
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:  make(map[string]*File),
		grants: make(map[string]*Grant),
	}
}

func (m *MemoryStore) Files(ctx context.Context) FileStore   { return (*memFileStore)(m) }
func (m *MemoryStore) Grants(ctx context.Context) GrantStore { return (*memGrantStore)(m) }

type memFileStore MemoryStore

func (m *memFileStore) Create(ctx context.Context, f *File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	m.files[f.ID] = &cp
	return nil
}

func (m *memFileStore) Find(ctx context.Context, id string) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memFileStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return ErrNotFound
	}
	delete(m.files, id)
	return nil
}

type memGrantStore MemoryStore

func (m *memGrantStore) Create(ctx context.Context, g *Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[g.ID] = cloneGrant(g)
	return nil
}

func (m *memGrantStore) Find(ctx context.Context, id string) (*Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneGrant(g), nil
}

func (m *memGrantStore) ListByFile(ctx context.Context, fileID string) ([]*Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Grant
	for _, g := range m.grants {
		if g.FileID == fileID {
			out = append(out, cloneGrant(g))
		}
	}
	return out, nil
}

func (m *memGrantStore) Revoke(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[id]
	if !ok || g.RevokedAt != nil {
		return ErrNotFound
	}
	g.RevokedAt = &at
	return nil
}

func (m *memGrantStore) RevokeByFile(ctx context.Context, fileID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.grants {
		if g.FileID == fileID && g.RevokedAt == nil {
			g.RevokedAt = &at
		}
	}
	return nil
}

func (m *memGrantStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grants[id]; !ok {
		return ErrNotFound
	}
	delete(m.grants, id)
	return nil
}

func cloneGrant(g *Grant) *Grant {
	cp := *g
	if g.ExpiresAt != nil {
		exp := *g.ExpiresAt
		cp.ExpiresAt = &exp
	}
	if g.RevokedAt != nil {
		rev := *g.RevokedAt
		cp.RevokedAt = &rev
	}
	return &cp
}
