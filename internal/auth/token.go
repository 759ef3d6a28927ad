package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14

	refreshTokenBytes = 32
)

// TokenConfig holds the signing parameters read from process configuration at
// startup. A missing secret is a constructor error, never a per-request one.
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenManager issues signed access tokens and opaque refresh tokens and
// verifies access tokens. It is stateless with respect to requests and safe
// for concurrent use.
type TokenManager struct {
	cfg TokenConfig
	now func() time.Time
}

// TokenOption configures TokenManager behavior.
type TokenOption func(*TokenManager)

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(m *TokenManager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewTokenManager validates the signing configuration and constructs a manager.
func NewTokenManager(cfg TokenConfig, opts ...TokenOption) (*TokenManager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: signing secret is not configured")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	m := &TokenManager{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// AccessTTL returns the configured access token lifetime.
func (m *TokenManager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (m *TokenManager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

// accessClaims is the JWT payload shape. The "id" claim is the dedicated
// identity claim; roles travel as a plain string list.
type accessClaims struct {
	Name  string   `json:"name,omitempty"`
	Email string   `json:"email,omitempty"`
	ID    string   `json:"id"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// GenerateAccessToken builds a token carrying exactly the supplied claims,
// signs it with HS256 and returns the serialized token with its expiry.
func (m *TokenManager) GenerateAccessToken(claims ClaimSet) (string, time.Time, error) {
	if len(claims) == 0 {
		return "", time.Time{}, fmt.Errorf("%w: empty claim set", ErrInvalidInput)
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.cfg.AccessTTL)

	payload := accessClaims{
		Roles: claims.Roles(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if m.cfg.Audience != "" {
		payload.Audience = jwt.ClaimStrings{m.cfg.Audience}
	}
	payload.Name, _ = claims.First(ClaimName)
	payload.Email, _ = claims.First(ClaimEmail)
	payload.ID, _ = claims.First(ClaimID)
	payload.RegisteredClaims.ID, _ = claims.First(ClaimTokenID)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	signed, err := token.SignedString(m.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// NewRefreshToken returns a fresh opaque token with no embedded structure.
// The randomness source is crypto/rand; predictability here would be a
// security defect.
func (m *TokenManager) NewRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashRefreshToken returns the hex sha256 digest stored in place of the raw
// refresh token value.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ExtractPrincipal verifies the token signature and, unless ignoreExpiry is
// set, its expiry, returning the embedded claims. The refresh flow passes
// ignoreExpiry=true: a correctly signed but merely expired token still proves
// who the caller is. Any signature, format, or algorithm mismatch yields
// ErrInvalidToken; an expiry failure alone yields ErrTokenExpired.
func (m *TokenManager) ExtractPrincipal(token string, ignoreExpiry bool) (ClaimSet, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &accessClaims{}, func(t *jwt.Token) (any, error) {
		// Pinning the method rejects "none" and any downgrade attempt.
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return m.cfg.Secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, ErrInvalidToken
	}
	payload, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := m.validateClaims(payload, ignoreExpiry); err != nil {
		return nil, err
	}
	return claimSetFromPayload(payload), nil
}

func (m *TokenManager) validateClaims(payload *accessClaims, ignoreExpiry bool) error {
	if m.cfg.Issuer != "" && payload.Issuer != m.cfg.Issuer {
		return ErrInvalidToken
	}
	if m.cfg.Audience != "" && !containsAudience(payload.Audience, m.cfg.Audience) {
		return ErrInvalidToken
	}
	if strings.TrimSpace(payload.ID) == "" {
		return ErrInvalidToken
	}
	if !ignoreExpiry {
		if payload.ExpiresAt == nil || m.now().UTC().After(payload.ExpiresAt.Time) {
			return ErrTokenExpired
		}
	}
	return nil
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

func claimSetFromPayload(payload *accessClaims) ClaimSet {
	claims := make(ClaimSet, 0, 4+len(payload.Roles))
	if payload.Name != "" {
		claims = append(claims, Claim{Type: ClaimName, Value: payload.Name})
	}
	if payload.Email != "" {
		claims = append(claims, Claim{Type: ClaimEmail, Value: payload.Email})
	}
	claims = append(claims, Claim{Type: ClaimID, Value: payload.ID})
	if payload.RegisteredClaims.ID != "" {
		claims = append(claims, Claim{Type: ClaimTokenID, Value: payload.RegisteredClaims.ID})
	}
	for _, role := range payload.Roles {
		claims = append(claims, Claim{Type: ClaimRole, Value: role})
	}
	return claims
}
