package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/romulomf/catalog-api/internal/audit"
	"github.com/romulomf/catalog-api/internal/auth"
	"github.com/romulomf/catalog-api/internal/obs"
)

// ReadyProbe reports whether the process can serve traffic. DB is optional;
// when nil the readiness check only confirms the process is up.
type ReadyProbe struct {
	DB *sql.DB
}

func (p ReadyProbe) Check(ctx context.Context) error {
	if p.DB == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.DB.PingContext(ctx)
}

// Options tune the HTTP surface. Zero values fall back to safe defaults.
type Options struct {
	MaxBodyBytes int64
	RateBurst    int
	RatePerSec   float64
}

// API owns the HTTP routes and their middleware chain.
type API struct {
	mux      *http.ServeMux
	auth     *auth.Service
	policies *auth.Evaluator
	ready    ReadyProbe
	version  string
	opts     Options
}

// requiredPolicies are the policy names routes dispatch on. New verifies the
// evaluator knows all of them so a misconfigured policy set fails at startup
// instead of at request time.
var requiredPolicies = []string{
	auth.PolicyExclusiveOnly,
	auth.PolicySuperAdminOnly,
}

func New(ready ReadyProbe, version string, svc *auth.Service, policies *auth.Evaluator, opts Options) (*API, error) {
	if svc == nil {
		return nil, errors.New("httpapi: auth service is required")
	}
	if policies == nil {
		return nil, errors.New("httpapi: policy evaluator is required")
	}
	for _, name := range requiredPolicies {
		if !policies.Known(name) {
			return nil, fmt.Errorf("httpapi: policy %q is not registered", name)
		}
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 10
	}
	a := &API{
		mux:      http.NewServeMux(),
		auth:     svc,
		policies: policies,
		ready:    ready,
		version:  version,
		opts:     opts,
	}
	a.routes()
	return a, nil
}

func (a *API) routes() {
	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/register", a.handleRegister)
	a.mux.HandleFunc("/api/auth/refresh-token", a.handleRefresh)
	a.mux.HandleFunc("/api/auth/revoke/", a.handleRevoke)
	a.mux.HandleFunc("/api/auth/roles", a.handleCreateRole)
	a.mux.HandleFunc("/api/auth/roles/members", a.handleAddUserToRole)
	a.mux.HandleFunc("/healthz", a.handleHealthz)
	a.mux.HandleFunc("/readyz", a.handleReadyz)
	a.mux.Handle("/metrics", obs.Handler())
}

// Handler returns the fully wired middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = RateLimit(h, a.opts.RateBurst, a.opts.RatePerSec)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": a.version})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if err := a.ready.Check(r.Context()); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	body := map[string]string{"error": msg}
	if id := audit.RequestIDFromContext(r.Context()); id != "" {
		body["request_id"] = id
	}
	writeJSON(w, code, body)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeAuthError maps the auth error taxonomy onto HTTP statuses. Unknown
// errors deliberately collapse to a generic 500 so internals never leak.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrAuthenticationFailed):
		writeError(w, r, http.StatusUnauthorized, "authentication failed")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenExpired):
		writeError(w, r, http.StatusBadRequest, "invalid access token or refresh token")
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, strings.TrimPrefix(err.Error(), "auth: "))
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, strings.TrimPrefix(err.Error(), "auth: "))
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, strings.TrimPrefix(err.Error(), "auth: "))
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
