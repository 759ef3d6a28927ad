package auth

import (
	"fmt"
	"strings"
)

// Built-in policy names. Routes reference these; unknown names are rejected
// when the evaluator is wired, not at request time.
const (
	PolicyAdminOnly      = "AdminOnly"
	PolicyUserOnly       = "UserOnly"
	PolicySuperAdminOnly = "SuperAdminOnly"
	PolicyExclusiveOnly  = "ExclusiveOnly"
)

// Role names the built-in policies refer to.
const (
	RoleAdmin      = "Admin"
	RoleUser       = "User"
	RoleSuperAdmin = "SuperAdmin"
)

// Rule is one node of a declarative policy. New policies are added by
// composing rules, not by touching the evaluator.
type Rule interface {
	Allows(p Principal) bool
}

// RoleRule allows principals carrying a matching role claim.
type RoleRule struct {
	Role string
}

func (r RoleRule) Allows(p Principal) bool {
	return p.HasRole(r.Role)
}

// ClaimRule allows principals carrying a claim with the exact type and value.
type ClaimRule struct {
	Type  string
	Value string
}

func (r ClaimRule) Allows(p Principal) bool {
	return p.Claims.Has(r.Type, r.Value)
}

// AllOf allows only when every sub-rule allows.
type AllOf []Rule

func (r AllOf) Allows(p Principal) bool {
	for _, sub := range r {
		if !sub.Allows(p) {
			return false
		}
	}
	return true
}

// AnyOf allows when at least one sub-rule allows.
type AnyOf []Rule

func (r AnyOf) Allows(p Principal) bool {
	for _, sub := range r {
		if sub.Allows(p) {
			return true
		}
	}
	return false
}

// Evaluator decides whether a principal's claims satisfy a named policy.
// Policies are static configuration; the evaluator holds no request state.
type Evaluator struct {
	policies map[string]Rule
}

// NewEvaluator validates and indexes the policy set.
func NewEvaluator(policies map[string]Rule) (*Evaluator, error) {
	if len(policies) == 0 {
		return nil, fmt.Errorf("%w: no policies configured", ErrInvalidInput)
	}
	indexed := make(map[string]Rule, len(policies))
	for name, rule := range policies {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: policy with empty name", ErrInvalidInput)
		}
		if rule == nil {
			return nil, fmt.Errorf("%w: policy %s has no rule", ErrInvalidInput, name)
		}
		indexed[name] = rule
	}
	return &Evaluator{policies: indexed}, nil
}

// Known reports whether a policy name is configured. Route wiring uses this to
// fail fast at startup instead of silently denying every request.
func (e *Evaluator) Known(name string) bool {
	_, ok := e.policies[name]
	return ok
}

// Evaluate returns whether the principal satisfies the named policy. An
// unknown name is a configuration error, not a denial.
func (e *Evaluator) Evaluate(name string, p Principal) (bool, error) {
	rule, ok := e.policies[name]
	if !ok {
		return false, fmt.Errorf("%w: unknown policy %s", ErrInvalidInput, name)
	}
	return rule.Allows(p), nil
}

// Require is Evaluate folded into the error taxonomy: a denial is
// ErrUnauthorized.
func (e *Evaluator) Require(name string, p Principal) error {
	allowed, err := e.Evaluate(name, p)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: policy %s denied", ErrUnauthorized, name)
	}
	return nil
}

// DefaultPolicies returns the built-in rule set. exclusiveUser is the identity
// claim value granted the exclusive policies; role administration requires the
// compound rule, token revocation the assertion rule.
func DefaultPolicies(exclusiveUser string) map[string]Rule {
	return map[string]Rule{
		PolicyAdminOnly: RoleRule{Role: RoleAdmin},
		PolicyUserOnly:  RoleRule{Role: RoleUser},
		PolicySuperAdminOnly: AllOf{
			RoleRule{Role: RoleAdmin},
			ClaimRule{Type: ClaimID, Value: exclusiveUser},
		},
		PolicyExclusiveOnly: AnyOf{
			ClaimRule{Type: ClaimID, Value: exclusiveUser},
			RoleRule{Role: RoleSuperAdmin},
		},
	}
}
