package apikey

import "context"

// Store describes persistence for API keys. Revocation deactivates rows
// rather than deleting them so audit history survives.
type Store interface {
	Create(ctx context.Context, k *Key) error
	Find(ctx context.Context, id string) (*Key, error)
	FindBySecretHash(ctx context.Context, hash string) (*Key, error)
	ListByUser(ctx context.Context, userID string) ([]*Key, error)
	Deactivate(ctx context.Context, id string) error
	TouchLastUsed(ctx context.Context, id string) error
}
