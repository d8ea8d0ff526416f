package file

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. Permission levels are stored
// as their wire names.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Files(ctx context.Context) FileStore   { return &pgFileStore{db: s.db} }
func (s *PGStore) Grants(ctx context.Context) GrantStore { return &pgGrantStore{db: s.db} }

type pgFileStore struct {
	db *sql.DB
}

const fileColumns = `id, owner_id, name, mime_type, size_bytes, created_at`

func (s *pgFileStore) Create(ctx context.Context, f *File) error {
	_, err := s.db.ExecContext(ctx,
		`insert into files(id, owner_id, name, mime_type, size_bytes, created_at)
		 values($1,$2,$3,$4,$5,$6)`,
		f.ID, f.OwnerID, f.Name, f.MimeType, f.SizeBytes, f.CreatedAt,
	)
	return err
}

func (s *pgFileStore) Find(ctx context.Context, id string) (*File, error) {
	var f File
	err := s.db.QueryRowContext(ctx,
		`select `+fileColumns+` from files where id=$1`, id).
		Scan(&f.ID, &f.OwnerID, &f.Name, &f.MimeType, &f.SizeBytes, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (s *pgFileStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from files where id=$1`, id)
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

type pgGrantStore struct {
	db *sql.DB
}

const grantColumns = `id, file_id, grantee_type, grantee_id, level, password_hash, created_by, created_at, expires_at, revoked_at`

func (s *pgGrantStore) Create(ctx context.Context, g *Grant) error {
	_, err := s.db.ExecContext(ctx,
		`insert into file_permissions(id, file_id, grantee_type, grantee_id, level, password_hash, created_by, created_at, expires_at, revoked_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		g.ID, g.FileID, g.GranteeType, g.GranteeID, g.Level.String(), g.PasswordHash, g.CreatedBy, g.CreatedAt, g.ExpiresAt, g.RevokedAt,
	)
	return err
}

func (s *pgGrantStore) Find(ctx context.Context, id string) (*Grant, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+grantColumns+` from file_permissions where id=$1`, id)
	g, err := scanGrant(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

func (s *pgGrantStore) ListByFile(ctx context.Context, fileID string) ([]*Grant, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+grantColumns+` from file_permissions where file_id=$1 order by created_at`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Grant
	for rows.Next() {
		g, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *pgGrantStore) Revoke(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update file_permissions set revoked_at=$2 where id=$1 and revoked_at is null`, id, at)
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

func (s *pgGrantStore) RevokeByFile(ctx context.Context, fileID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update file_permissions set revoked_at=$2 where file_id=$1 and revoked_at is null`, fileID, at)
	return err
}

func (s *pgGrantStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from file_permissions where id=$1`, id)
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

func scanGrant(scan func(dest ...any) error) (*Grant, error) {
	var (
		g     Grant
		level string
	)
	if err := scan(&g.ID, &g.FileID, &g.GranteeType, &g.GranteeID, &level,
		&g.PasswordHash, &g.CreatedBy, &g.CreatedAt, &g.ExpiresAt, &g.RevokedAt); err != nil {
		return nil, err
	}
	parsed, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	g.Level = parsed
	return &g, nil
}
