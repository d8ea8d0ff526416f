package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(ctx context.Context) UserStore       { return &pgUserStore{db: s.db} }
func (s *PGStore) Sessions(ctx context.Context) SessionStore { return &pgSessionStore{db: s.db} }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// User store ---------------------------------------------------------------
type pgUserStore struct{ db *sql.DB }

const userColumns = `id, organization_id, email, email_verified, account_type, password_hash, created_at, updated_at`

func (s *pgUserStore) Create(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, organization_id, email, email_verified, account_type, password_hash)
		 values($1,$2,$3,$4,$5,$6)`,
		u.ID, nullable(u.OrganizationID), u.Email, u.EmailVerified, u.AccountType, u.PasswordHash,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *pgUserStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *pgUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u   User
		org sql.NullString
	)
	if err := row.Scan(&u.ID, &org, &u.Email, &u.EmailVerified, &u.AccountType, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.OrganizationID = org.String
	return &u, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Session store ------------------------------------------------------------
type pgSessionStore struct{ db *sql.DB }

const sessionColumns = `id, user_id, live_jti, revoked, ip_address, user_agent, created_at, expires_at, last_activity_at`

func (s *pgSessionStore) Create(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx,
		`insert into sessions(id, user_id, live_jti, revoked, ip_address, user_agent, created_at, expires_at, last_activity_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sess.ID, sess.UserID, sess.LiveJTI, sess.Revoked, sess.IPAddress, sess.UserAgent,
		sess.CreatedAt, sess.ExpiresAt, sess.LastActivityAt,
	)
	return err
}

func (s *pgSessionStore) Find(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+sessionColumns+` from sessions where id=$1`, id)
	var sess Session
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.LiveJTI, &sess.Revoked, &sess.IPAddress, &sess.UserAgent,
		&sess.CreatedAt, &sess.ExpiresAt, &sess.LastActivityAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *pgSessionStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+sessionColumns+` from sessions where user_id=$1 order by created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.LiveJTI, &sess.Revoked, &sess.IPAddress, &sess.UserAgent,
			&sess.CreatedAt, &sess.ExpiresAt, &sess.LastActivityAt); err != nil {
			return nil, err
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}

// RotateJTI performs the optimistic advance of the refresh chain. The where
// clause on live_jti makes concurrent rotations race on the row update:
// exactly one matches, the other sees zero rows and reports errStaleJTI.
func (s *pgSessionStore) RotateJTI(ctx context.Context, id, oldJTI, newJTI string, now, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update sessions set live_jti=$1, last_activity_at=$2, expires_at=$3
		 where id=$4 and live_jti=$5 and revoked=false`,
		newJTI, now, expiresAt, id, oldJTI,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errStaleJTI
	}
	return nil
}

func (s *pgSessionStore) Revoke(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update sessions set revoked=true where id=$1 and revoked=false`, id)
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

func (s *pgSessionStore) RevokeAllForUser(ctx context.Context, userID, exceptID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`update sessions set revoked=true
		 where user_id=$1 and revoked=false and ($2='' or id<>$2)`,
		userID, exceptID,
	)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
