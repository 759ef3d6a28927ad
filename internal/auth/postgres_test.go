package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPGUserStoreFindByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "username", "email", "password_hash",
		"refresh_token_hash", "refresh_token_expires_at", "created_at", "updated_at",
	}).AddRow("u1", "alice", "a@x.com", "hash", nil, nil, now, now)

	mock.ExpectQuery("select (.+) from users where username=\\$1").
		WithArgs("alice").
		WillReturnRows(rows)

	store := NewPGStore(db)
	user, err := store.Users(context.Background()).FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if user.Username != "alice" || user.Email != "a@x.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.RefreshTokenHash != "" {
		t.Fatalf("expected empty refresh token hash, got %q", user.RefreshTokenHash)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUserStoreFindByUsernameNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select (.+) from users where username=\\$1").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "email", "password_hash",
			"refresh_token_hash", "refresh_token_expires_at", "created_at", "updated_at",
		}))

	store := NewPGStore(db)
	if _, err := store.Users(context.Background()).FindByUsername(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUserStoreCreateConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`insert into users(id, username, email, password_hash) values($1,$2,$3,$4)`)).
		WithArgs(sqlmock.AnyArg(), "alice", "a@x.com", "hash").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	store := NewPGStore(db)
	err = store.Users(context.Background()).Create(context.Background(), &User{
		Username:     "alice",
		Email:        "a@x.com",
		PasswordHash: "hash",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUserStoreRotateLoserGetsTokenExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update users set refresh_token_hash=\\$3").
		WithArgs("alice", "old-hash", "new-hash", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	err = store.Users(context.Background()).RotateRefreshToken(
		context.Background(), "alice", "old-hash", "new-hash", time.Now().Add(time.Hour))
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired on lost CAS, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUserStoreRotateWinner(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update users set refresh_token_hash=\\$3").
		WithArgs("alice", "old-hash", "new-hash", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGStore(db)
	if err := store.Users(context.Background()).RotateRefreshToken(
		context.Background(), "alice", "old-hash", "new-hash", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RotateRefreshToken: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUserStoreClearRefreshTokenUnknownUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update users set refresh_token_hash=null").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	if err := store.Users(context.Background()).ClearRefreshToken(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGRoleStoreAddUserIsIdempotentInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into user_roles").
		WithArgs("u1", "Admin").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	if err := store.Roles(context.Background()).AddUser(context.Background(), "u1", "Admin"); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGRoleStoreListForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select r.name from roles r").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Admin").AddRow("User"))

	store := NewPGStore(db)
	roles, err := store.Roles(context.Background()).ListForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(roles) != 2 || roles[0] != "Admin" || roles[1] != "User" {
		t.Fatalf("unexpected roles: %v", roles)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
