package auth

import "strings"

// Claim types carried in access tokens. ClaimID mirrors the dedicated identity
// claim of the original catalog API: its value is the username.
const (
	ClaimName    = "name"
	ClaimEmail   = "email"
	ClaimID      = "id"
	ClaimTokenID = "jti"
	ClaimRole    = "role"
)

// Claim is a typed fact about an authenticated principal.
type Claim struct {
	Type  string
	Value string
}

// ClaimSet is the ordered collection of claims assembled at login from the
// current user record. It is never persisted; tokens are its only carrier.
type ClaimSet []Claim

// First returns the value of the first claim with the given type.
func (c ClaimSet) First(claimType string) (string, bool) {
	for _, claim := range c {
		if claim.Type == claimType {
			return claim.Value, true
		}
	}
	return "", false
}

// Has reports whether the set contains a claim with the exact type and value.
func (c ClaimSet) Has(claimType, value string) bool {
	for _, claim := range c {
		if claim.Type == claimType && claim.Value == value {
			return true
		}
	}
	return false
}

// HasRole reports whether the set contains a matching role claim.
// Role names compare case-insensitively, matching the original's behavior.
func (c ClaimSet) HasRole(role string) bool {
	for _, claim := range c {
		if claim.Type == ClaimRole && strings.EqualFold(claim.Value, role) {
			return true
		}
	}
	return false
}

// Roles returns all role claim values in declaration order.
func (c ClaimSet) Roles() []string {
	var roles []string
	for _, claim := range c {
		if claim.Type == ClaimRole {
			roles = append(roles, claim.Value)
		}
	}
	return roles
}

// Subject returns the identity claim value, the username the token was issued to.
func (c ClaimSet) Subject() string {
	v, _ := c.First(ClaimID)
	return v
}

// Principal is the authenticated caller of a request. It is constructed once by
// the authentication middleware and passed explicitly to policy evaluation;
// there is no ambient lookup.
type Principal struct {
	Claims ClaimSet
}

// NewPrincipal wraps a verified claim set.
func NewPrincipal(claims ClaimSet) Principal {
	return Principal{Claims: claims}
}

// Name returns the principal's username.
func (p Principal) Name() string {
	return p.Claims.Subject()
}

// HasRole reports whether the principal carries the role.
func (p Principal) HasRole(role string) bool {
	return p.Claims.HasRole(role)
}
