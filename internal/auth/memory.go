package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/romulomf/catalog-api/internal/ids"
)

var _ Store = (*Memory)(nil)

// Memory is a mutex-guarded in-memory Store used by tests and local runs.
// Rotation performs its compare-and-swap under the lock, matching the
// guarantees of the SQL implementation.
type Memory struct {
	mu      sync.Mutex
	users   map[string]*User    // keyed by username
	byEmail map[string]string   // email -> username
	roles   map[string]*Role    // keyed by name
	members map[string][]string // user ID -> role names
}

func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
		roles:   make(map[string]*Role),
		members: make(map[string][]string),
	}
}

func (m *Memory) Users(context.Context) UserStore { return (*memUserStore)(m) }
func (m *Memory) Roles(context.Context) RoleStore { return (*memRoleStore)(m) }

type memUserStore Memory

func (s *memUserStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return ErrConflict
	}
	if _, ok := s.byEmail[u.Email]; ok {
		return ErrConflict
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := time.Now().UTC()
	stored := *u
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.users[u.Username] = &stored
	s.byEmail[u.Email] = u.Username
	return nil
}

func (s *memUserStore) FindByUsername(_ context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	username, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s.users[username]
	return &copied, nil
}

func (s *memUserStore) SetRefreshToken(_ context.Context, username, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return ErrNotFound
	}
	u.RefreshTokenHash = tokenHash
	u.RefreshTokenExpiresAt = expiresAt
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memUserStore) RotateRefreshToken(_ context.Context, username, oldHash, newHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return ErrNotFound
	}
	if u.RefreshTokenHash == "" || u.RefreshTokenHash != oldHash {
		return ErrTokenExpired
	}
	u.RefreshTokenHash = newHash
	u.RefreshTokenExpiresAt = expiresAt
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memUserStore) ClearRefreshToken(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return ErrNotFound
	}
	u.RefreshTokenHash = ""
	u.RefreshTokenExpiresAt = time.Time{}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

type memRoleStore Memory

func (s *memRoleStore) Create(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[name]; ok {
		return ErrConflict
	}
	s.roles[name] = &Role{ID: ids.New(), Name: name, CreatedAt: time.Now().UTC()}
	return nil
}

func (s *memRoleStore) Exists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.roles[name]
	return ok, nil
}

func (s *memRoleStore) AddUser(_ context.Context, userID, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleName]; !ok {
		return fmt.Errorf("%w: role %s", ErrNotFound, roleName)
	}
	for _, existing := range s.members[userID] {
		if existing == roleName {
			return nil
		}
	}
	s.members[userID] = append(s.members[userID], roleName)
	return nil
}

func (s *memRoleStore) ListForUser(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles := make([]string, len(s.members[userID]))
	copy(roles, s.members[userID])
	return roles, nil
}
