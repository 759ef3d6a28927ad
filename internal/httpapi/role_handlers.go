package httpapi

import (
	"net/http"

	"github.com/romulomf/catalog-api/internal/audit"
	"github.com/romulomf/catalog-api/internal/auth"
)

type createRoleRequest struct {
	Name string `json:"name"`
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.requirePolicy(w, r, auth.PolicySuperAdminOnly) {
		return
	}
	var req createRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.auth.CreateRole(r.Context(), req.Name); err != nil {
		writeAuthError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "auth.role.create", map[string]any{"role": req.Name})
	writeJSON(w, http.StatusOK, statusResponse{Status: "Success", Message: "role created successfully"})
}

type addUserToRoleRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (a *API) handleAddUserToRole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.requirePolicy(w, r, auth.PolicySuperAdminOnly) {
		return
	}
	var req addUserToRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.auth.AddUserToRole(r.Context(), req.Email, req.Role); err != nil {
		writeAuthError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "auth.role.assign", map[string]any{"email": req.Email, "role": req.Role})
	writeJSON(w, http.StatusOK, statusResponse{Status: "Success", Message: "user added to role successfully"})
}
