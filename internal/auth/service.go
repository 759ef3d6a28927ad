package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service orchestrates login, registration, refresh rotation, revocation, and
// role administration over a Store and a TokenManager. It holds no per-request
// state; the refresh-token row is the only shared mutable resource and its
// rotation is a compare-and-swap in the store.
type Service struct {
	store  Store
	tokens *TokenManager
	now    func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the authentication service.
func NewService(store Store, tokens *TokenManager, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token manager is required")
	}
	s := &Service{store: store, tokens: tokens, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TokenPair is the credential pair returned by login and refresh. ExpiresAt is
// the access token's expiry; the refresh token has its own, longer one tracked
// on the user record.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Login verifies credentials and opens a session: claims are assembled fresh
// from the current user record, both token kinds are issued, and the new
// refresh token replaces whatever was stored before. Credential failures are
// indistinguishable from one another.
func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return TokenPair{}, ErrAuthenticationFailed
	}
	users := s.store.Users(ctx)
	user, err := users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrAuthenticationFailed
		}
		return TokenPair{}, fmt.Errorf("find user: %w", err)
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, ErrAuthenticationFailed
	}

	roles, err := s.store.Roles(ctx).ListForUser(ctx, user.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("list roles: %w", err)
	}

	pair, refreshHash, err := s.mintPair(s.claimsFor(user, roles))
	if err != nil {
		return TokenPair{}, err
	}
	expiresAt := s.now().UTC().Add(s.tokens.RefreshTTL())
	if err := users.SetRefreshToken(ctx, user.Username, refreshHash, expiresAt); err != nil {
		return TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return pair, nil
}

// Register creates a user with a hashed credential and no roles.
func (s *Service) Register(ctx context.Context, username, email, password string) error {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	users := s.store.Users(ctx)
	if _, err := users.FindByUsername(ctx, username); err == nil {
		return fmt.Errorf("%w: user %s", ErrConflict, username)
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("find user: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := users.Create(ctx, &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}); err != nil {
		if errors.Is(err, ErrConflict) {
			return err
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Refresh exchanges an expired access token plus its refresh token for a new
// pair. The access token only has to be correctly signed; the refresh token
// must equal the stored one and be unexpired. Rotation commits through the
// store's compare-and-swap, so the old refresh token is unusable immediately
// and a concurrent call racing on it loses cleanly.
func (s *Service) Refresh(ctx context.Context, accessToken, refreshToken string) (TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return TokenPair{}, ErrInvalidToken
	}
	claims, err := s.tokens.ExtractPrincipal(accessToken, true)
	if err != nil {
		return TokenPair{}, err
	}
	username := claims.Subject()
	if username == "" {
		return TokenPair{}, ErrInvalidToken
	}

	users := s.store.Users(ctx)
	user, err := users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrTokenExpired
		}
		return TokenPair{}, fmt.Errorf("find user: %w", err)
	}

	providedHash := HashRefreshToken(refreshToken)
	if !secureCompare(user.RefreshTokenHash, providedHash) {
		return TokenPair{}, ErrTokenExpired
	}
	if s.now().After(user.RefreshTokenExpiresAt) {
		return TokenPair{}, ErrTokenExpired
	}

	pair, newHash, err := s.mintPair(withFreshTokenID(claims))
	if err != nil {
		return TokenPair{}, err
	}
	expiresAt := s.now().UTC().Add(s.tokens.RefreshTTL())
	if err := users.RotateRefreshToken(ctx, username, providedHash, newHash, expiresAt); err != nil {
		if errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrTokenExpired
		}
		return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	return pair, nil
}

// Revoke clears the stored refresh token unconditionally, forcing re-login.
func (s *Service) Revoke(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	users := s.store.Users(ctx)
	if _, err := users.FindByUsername(ctx, username); err != nil {
		return err
	}
	return users.ClearRefreshToken(ctx, username)
}

// CreateRole creates a named role. Creating one that already exists is a
// conflict, not a crash.
func (s *Service) CreateRole(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	roles := s.store.Roles(ctx)
	exists, err := roles.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("check role: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: role %s", ErrConflict, name)
	}
	return roles.Create(ctx, name)
}

// AddUserToRole assigns an existing role to the user identified by email.
// Re-adding an existing membership is a no-op.
func (s *Service) AddUserToRole(ctx context.Context, email, roleName string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	roleName = strings.TrimSpace(roleName)
	if email == "" || roleName == "" {
		return fmt.Errorf("%w: email and role name are required", ErrInvalidInput)
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	roles := s.store.Roles(ctx)
	exists, err := roles.Exists(ctx, roleName)
	if err != nil {
		return fmt.Errorf("check role: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: role %s", ErrNotFound, roleName)
	}
	return roles.AddUser(ctx, user.ID, roleName)
}

// Authenticate validates an access token strictly (signature and expiry) and
// returns the request principal. Used by the HTTP pipeline before any
// protected handler runs.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := s.tokens.ExtractPrincipal(token, false)
	if err != nil {
		return Principal{}, err
	}
	return NewPrincipal(claims), nil
}

func (s *Service) claimsFor(user *User, roles []string) ClaimSet {
	claims := ClaimSet{
		{Type: ClaimName, Value: user.Username},
		{Type: ClaimEmail, Value: user.Email},
		{Type: ClaimID, Value: user.Username},
		{Type: ClaimTokenID, Value: uuid.NewString()},
	}
	for _, role := range roles {
		claims = append(claims, Claim{Type: ClaimRole, Value: role})
	}
	return claims
}

// mintPair issues both token kinds and returns the pair together with the hash
// the caller must persist.
func (s *Service) mintPair(claims ClaimSet) (TokenPair, string, error) {
	access, expiresAt, err := s.tokens.GenerateAccessToken(claims)
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.NewRefreshToken()
	if err != nil {
		return TokenPair{}, "", err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, HashRefreshToken(refresh), nil
}

// withFreshTokenID reuses the identity claims of a validated token while
// replacing its token-id claim, so every issued token stays unique.
func withFreshTokenID(claims ClaimSet) ClaimSet {
	out := make(ClaimSet, 0, len(claims))
	for _, claim := range claims {
		if claim.Type == ClaimTokenID {
			continue
		}
		out = append(out, claim)
	}
	out = append(out, Claim{Type: ClaimTokenID, Value: uuid.NewString()})
	return out
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
