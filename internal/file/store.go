package file

import (
	"context"
	"time"
)

// Store provides access to file and grant persistence.
type Store interface {
	Files(ctx context.Context) FileStore
	Grants(ctx context.Context) GrantStore
}

// FileStore persists file metadata.
type FileStore interface {
	Create(ctx context.Context, f *File) error
	Find(ctx context.Context, id string) (*File, error)
	Delete(ctx context.Context, id string) error
}

// GrantStore persists sharing grants. Revoke and RevokeByFile mark rows
// revoked and keep them; Delete physically removes a row and is reserved
// for expired-grant hygiene.
type GrantStore interface {
	Create(ctx context.Context, g *Grant) error
	Find(ctx context.Context, id string) (*Grant, error)
	ListByFile(ctx context.Context, fileID string) ([]*Grant, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeByFile(ctx context.Context, fileID string, at time.Time) error
	Delete(ctx context.Context, id string) error
}
