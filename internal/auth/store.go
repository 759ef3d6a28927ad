package auth

import (
	"context"
	"time"
)

// User is the persisted identity record. The refresh token lives on the user
// row, hashed, with its own expiry: at most one is active per user at any
// time.
type User struct {
	ID                    string
	Username              string
	Email                 string
	PasswordHash          string
	Roles                 []string
	RefreshTokenHash      string
	RefreshTokenExpiresAt time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Role is a named grouping users can be assigned to.
type Role struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Roles(ctx context.Context) RoleStore
}

// UserStore manages user records and their refresh-token state.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)

	// SetRefreshToken unconditionally replaces the stored refresh token hash
	// and expiry (login issues a fresh session).
	SetRefreshToken(ctx context.Context, username, tokenHash string, expiresAt time.Time) error

	// RotateRefreshToken replaces the stored hash only if it still equals
	// oldHash (compare-and-swap), so two concurrent refresh calls racing on
	// the same consumed token cannot both succeed. A lost race reports
	// ErrTokenExpired.
	RotateRefreshToken(ctx context.Context, username, oldHash, newHash string, expiresAt time.Time) error

	// ClearRefreshToken removes the stored refresh token, forcing re-login.
	ClearRefreshToken(ctx context.Context, username string) error
}

// RoleStore manages roles and memberships.
type RoleStore interface {
	Create(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	// AddUser is idempotent: adding an existing membership is a no-op.
	AddUser(ctx context.Context, userID, roleName string) error
	ListForUser(ctx context.Context, userID string) ([]string, error)
}
