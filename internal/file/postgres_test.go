package file

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestPGFileFindNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select (.+) from files where id=").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	store := NewPGStore(db)
	if _, err := store.Files(context.Background()).Find(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGGrantListParsesLevels(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "file_id", "grantee_type", "grantee_id", "level",
		"password_hash", "created_by", "created_at", "expires_at", "revoked_at",
	}).
		AddRow("g1", "f1", GranteeUser, "u2", "edit", "", "u1", now, nil, nil).
		AddRow("g2", "f1", GranteeLink, "", "view", "hash", "u1", now, nil, now)

	mock.ExpectQuery("select (.+) from file_permissions where file_id=").
		WithArgs("f1").
		WillReturnRows(rows)

	store := NewPGStore(db)
	grants, err := store.Grants(context.Background()).ListByFile(context.Background(), "f1")
	if err != nil {
		t.Fatalf("ListByFile: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(grants))
	}
	if grants[0].Level != LevelEdit || grants[1].Level != LevelView {
		t.Fatalf("levels parsed wrong: %v %v", grants[0].Level, grants[1].Level)
	}
	if grants[1].PasswordHash != "hash" {
		t.Fatalf("password hash lost: %+v", grants[1])
	}
	if grants[0].RevokedAt != nil || grants[1].RevokedAt == nil {
		t.Fatalf("revoked_at scanned wrong: %v %v", grants[0].RevokedAt, grants[1].RevokedAt)
	}
}

func TestPGGrantRevokeKeepsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("update file_permissions set revoked_at=").
		WithArgs("g1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update file_permissions set revoked_at=").
		WithArgs("g1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	if err := store.Grants(context.Background()).Revoke(context.Background(), "g1", now); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	// An already-revoked grant matches no rows.
	if err := store.Grants(context.Background()).Revoke(context.Background(), "g1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGGrantDeleteNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("delete from file_permissions where id=").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	if err := store.Grants(context.Background()).Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
