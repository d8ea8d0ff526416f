package apikey

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. Scopes are stored as a JSONB
// array on the row.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const keyColumns = `id, user_id, name, description, prefix, secret_hash, scopes, is_active, created_at, expires_at, last_used_at`

func (s *PGStore) Create(ctx context.Context, k *Key) error {
	scopes, err := json.Marshal(k.Scopes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into api_keys(id, user_id, name, description, prefix, secret_hash, scopes, is_active, created_at, expires_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		k.ID, k.UserID, k.Name, k.Description, k.Prefix, k.SecretHash, scopes, k.IsActive, k.CreatedAt, k.ExpiresAt,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Key, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+keyColumns+` from api_keys where id=$1`, id)
	return scanKey(row)
}

func (s *PGStore) FindBySecretHash(ctx context.Context, hash string) (*Key, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+keyColumns+` from api_keys where secret_hash=$1`, hash)
	return scanKey(row)
}

func (s *PGStore) ListByUser(ctx context.Context, userID string) ([]*Key, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+keyColumns+` from api_keys where user_id=$1 order by created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Key
	for rows.Next() {
		k, err := scanKeyRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *PGStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update api_keys set is_active=false where id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) TouchLastUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`update api_keys set last_used_at=now() where id=$1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row *sql.Row) (*Key, error) {
	k, err := scanKeyFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return k, nil
}

func scanKeyRows(rows *sql.Rows) (*Key, error) {
	return scanKeyFrom(rows)
}

func scanKeyFrom(sc rowScanner) (*Key, error) {
	var (
		k      Key
		scopes []byte
	)
	if err := sc.Scan(&k.ID, &k.UserID, &k.Name, &k.Description, &k.Prefix, &k.SecretHash,
		&scopes, &k.IsActive, &k.CreatedAt, &k.ExpiresAt, &k.LastUsedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scopes, &k.Scopes); err != nil {
		return nil, err
	}
	return &k, nil
}
