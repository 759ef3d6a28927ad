package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/romulomf/catalog-api/internal/audit"
	"github.com/romulomf/catalog-api/internal/auth"
	"github.com/romulomf/catalog-api/internal/obs"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	Expiration   string `json:"expiration"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pair, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		obs.ObserveLogin("denied")
		audit.LogEvent(r.Context(), "auth.login.denied", map[string]any{"username": req.Username})
		writeAuthError(w, r, err)
		return
	}
	obs.ObserveLogin("ok")
	audit.LogEvent(r.Context(), "auth.login", map[string]any{"username": req.Username})
	writeJSON(w, http.StatusOK, loginResponse{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Expiration:   pair.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.auth.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		writeAuthError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "auth.register", map[string]any{"username": req.Username})
	writeJSON(w, http.StatusCreated, statusResponse{Status: "Success", Message: "user created successfully"})
}

type refreshRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pair, err := a.auth.Refresh(r.Context(), req.AccessToken, req.RefreshToken)
	if err != nil {
		obs.ObserveRefresh("denied")
		writeAuthError(w, r, err)
		return
	}
	obs.ObserveRefresh("ok")
	audit.LogEvent(r.Context(), "auth.refresh", nil)
	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (a *API) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.requirePolicy(w, r, auth.PolicyExclusiveOnly) {
		return
	}
	username := strings.TrimPrefix(r.URL.Path, "/api/auth/revoke/")
	if username == "" || strings.Contains(username, "/") {
		writeError(w, r, http.StatusBadRequest, "username is required")
		return
	}
	if err := a.auth.Revoke(r.Context(), username); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "user not found")
			return
		}
		writeAuthError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "auth.revoke", map[string]any{"username": username})
	w.WriteHeader(http.StatusNoContent)
}
