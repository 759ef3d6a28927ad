package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/romulomf/catalog-api/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL through the pgx stdlib driver.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context.Context) UserStore { return &pgUserStore{db: s.db} }
func (s *PGStore) Roles(context.Context) RoleStore { return &pgRoleStore{db: s.db} }

// User store ---------------------------------------------------------------
type pgUserStore struct{ db *sql.DB }

const userColumns = `id, username, email, password_hash, refresh_token_hash, refresh_token_expires_at, created_at, updated_at`

func (s *pgUserStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, username, email, password_hash) values($1,$2,$3,$4)`,
		u.ID, u.Username, u.Email, u.PasswordHash,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *pgUserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where username=$1`, username)
	return scanUser(row)
}

func (s *pgUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email)
	return scanUser(row)
}

func (s *pgUserStore) SetRefreshToken(ctx context.Context, username, tokenHash string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update users set refresh_token_hash=$2, refresh_token_expires_at=$3, updated_at=now() where username=$1`,
		username, tokenHash, expiresAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RotateRefreshToken commits the rotation in a single guarded update. Zero
// rows affected means the old token was already consumed by a concurrent
// refresh, which must not silently succeed.
func (s *pgUserStore) RotateRefreshToken(ctx context.Context, username, oldHash, newHash string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update users set refresh_token_hash=$3, refresh_token_expires_at=$4, updated_at=now()
		 where username=$1 and refresh_token_hash=$2`,
		username, oldHash, newHash, expiresAt,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTokenExpired
	}
	return nil
}

func (s *pgUserStore) ClearRefreshToken(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set refresh_token_hash=null, refresh_token_expires_at=null, updated_at=now() where username=$1`,
		username,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u         User
		tokenHash sql.NullString
		tokenExp  sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &tokenHash, &tokenExp, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.RefreshTokenHash = tokenHash.String
	u.RefreshTokenExpiresAt = tokenExp.Time
	return &u, nil
}

// Role store ---------------------------------------------------------------
type pgRoleStore struct{ db *sql.DB }

func (s *pgRoleStore) Create(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into roles(id, name) values($1,$2)`, ids.New(), name)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *pgRoleStore) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from roles where name=$1)`, name).Scan(&exists)
	return exists, err
}

func (s *pgRoleStore) AddUser(ctx context.Context, userID, roleName string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into user_roles(user_id, role_id)
		 select $1, id from roles where name=$2
		 on conflict do nothing`,
		userID, roleName,
	)
	return err
}

func (s *pgRoleStore) ListForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select r.name from roles r
		 join user_roles ur on ur.role_id=r.id
		 where ur.user_id=$1 order by r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

// helpers ------------------------------------------------------------------

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
