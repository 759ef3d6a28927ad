package auth

import (
	"errors"
	"testing"
)

func principalWith(claims ...Claim) Principal {
	return NewPrincipal(ClaimSet(claims))
}

func TestDefaultPolicies(t *testing.T) {
	eval, err := NewEvaluator(DefaultPolicies("owner"))
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	tests := []struct {
		name      string
		policy    string
		principal Principal
		want      bool
	}{
		{"admin passes AdminOnly", PolicyAdminOnly, principalWith(Claim{ClaimRole, "Admin"}), true},
		{"user fails AdminOnly", PolicyAdminOnly, principalWith(Claim{ClaimRole, "User"}), false},
		{"user passes UserOnly", PolicyUserOnly, principalWith(Claim{ClaimRole, "User"}), true},
		{"owner id passes ExclusiveOnly", PolicyExclusiveOnly, principalWith(Claim{ClaimID, "owner"}, Claim{ClaimRole, "User"}), true},
		{"superadmin role passes ExclusiveOnly without id", PolicyExclusiveOnly, principalWith(Claim{ClaimRole, "SuperAdmin"}), true},
		{"plain user fails ExclusiveOnly", PolicyExclusiveOnly, principalWith(Claim{ClaimID, "bob"}, Claim{ClaimRole, "User"}), false},
		{"admin with owner id passes SuperAdminOnly", PolicySuperAdminOnly, principalWith(Claim{ClaimID, "owner"}, Claim{ClaimRole, "Admin"}), true},
		{"admin without owner id fails SuperAdminOnly", PolicySuperAdminOnly, principalWith(Claim{ClaimID, "bob"}, Claim{ClaimRole, "Admin"}), false},
		{"owner id without admin role fails SuperAdminOnly", PolicySuperAdminOnly, principalWith(Claim{ClaimID, "owner"}, Claim{ClaimRole, "User"}), false},
		{"no claims fail ExclusiveOnly", PolicyExclusiveOnly, principalWith(), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := eval.Evaluate(tc.policy, tc.principal)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Evaluate(%s) = %v, want %v", tc.policy, got, tc.want)
			}
		})
	}
}

func TestEvaluateUnknownPolicyIsConfigError(t *testing.T) {
	eval, err := NewEvaluator(DefaultPolicies("owner"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eval.Evaluate("Nonexistent", principalWith(Claim{ClaimRole, "Admin"})); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if eval.Known("Nonexistent") {
		t.Fatal("Known reported an unconfigured policy")
	}
	if !eval.Known(PolicyAdminOnly) {
		t.Fatal("Known missed a configured policy")
	}
}

func TestRequireMapsDenialToUnauthorized(t *testing.T) {
	eval, err := NewEvaluator(DefaultPolicies("owner"))
	if err != nil {
		t.Fatal(err)
	}
	if err := eval.Require(PolicyAdminOnly, principalWith(Claim{ClaimRole, "Admin"})); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
	if err := eval.Require(PolicyAdminOnly, principalWith(Claim{ClaimRole, "User"})); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRoleMatchingIsCaseInsensitive(t *testing.T) {
	eval, err := NewEvaluator(DefaultPolicies("owner"))
	if err != nil {
		t.Fatal(err)
	}
	allowed, err := eval.Evaluate(PolicyAdminOnly, principalWith(Claim{ClaimRole, "admin"}))
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Fatal("lowercase role claim should satisfy AdminOnly")
	}
}

func TestNewEvaluatorValidation(t *testing.T) {
	if _, err := NewEvaluator(nil); err == nil {
		t.Fatal("expected error for empty policy set")
	}
	if _, err := NewEvaluator(map[string]Rule{"": RoleRule{Role: "Admin"}}); err == nil {
		t.Fatal("expected error for empty policy name")
	}
	if _, err := NewEvaluator(map[string]Rule{"Broken": nil}); err == nil {
		t.Fatal("expected error for nil rule")
	}
}
