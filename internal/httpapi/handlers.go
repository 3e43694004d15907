package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"hostelhub.org/internal/audit"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/authz"
	"hostelhub.org/internal/obs"
	"hostelhub.org/internal/tenancy"
)

const serviceName = "hostelhub-api"

type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyCheck pings the backing stores that are configured.
type ReadyCheck struct {
	DB    *sql.DB
	Redis *redis.Client
}

func (rp ReadyCheck) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Redis != nil {
		if err := rp.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Deps are the collaborators the HTTP layer drives.
type Deps struct {
	Tokens     *auth.TokenService
	Principals auth.PrincipalStore
	Resolver   *tenancy.Resolver
	Approvals  *authz.Engine
	Audit      *audit.Writer
	Policy     audit.Policy
	// Domain holds tenant-bearing entities (rooms, complaints).
	Domain *gorm.DB
	Ready  readinessChecker

	Version      string
	StoreTimeout time.Duration
	RateBurst    int
	RatePerSec   float64
}

// API is the HTTP boundary.
type API struct {
	mux          *http.ServeMux
	tokens       *auth.TokenService
	principals   auth.PrincipalStore
	resolver     *tenancy.Resolver
	approvals    *authz.Engine
	audit        *audit.Writer
	policy       audit.Policy
	domain       *gorm.DB
	readyCheck   readinessChecker
	version      string
	storeTimeout time.Duration
	rateBurst    int
	ratePerSec   float64
}

// New wires the routes. Tokens, Principals, Resolver, Approvals and Audit
// are required.
func New(d Deps) (*API, error) {
	if d.Tokens == nil || d.Principals == nil || d.Resolver == nil || d.Approvals == nil || d.Audit == nil {
		return nil, errors.New("httpapi: tokens, principals, resolver, approvals and audit are required")
	}
	a := &API{
		mux:          http.NewServeMux(),
		tokens:       d.Tokens,
		principals:   d.Principals,
		resolver:     d.Resolver,
		approvals:    d.Approvals,
		audit:        d.Audit,
		policy:       d.Policy,
		domain:       d.Domain,
		readyCheck:   d.Ready,
		version:      d.Version,
		storeTimeout: d.StoreTimeout,
		rateBurst:    d.RateBurst,
		ratePerSec:   d.RatePerSec,
	}
	if a.readyCheck == nil {
		a.readyCheck = ReadyCheck{}
	}
	if a.storeTimeout <= 0 {
		a.storeTimeout = 5 * time.Second
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 50
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 20
	}
	a.routes()
	return a, nil
}

func (a *API) routes() {
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("POST /v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("POST /v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("POST /v1/auth/logout-all", a.handleLogoutAll)
	a.mux.HandleFunc("GET /v1/me", a.handleMe)

	a.mux.HandleFunc("GET /v1/tenants", a.handleListTenants)
	a.mux.HandleFunc("POST /v1/tenants", a.handleCreateTenant)
	a.mux.HandleFunc("POST /v1/tenants/switch", a.handleSwitchTenant)
	a.mux.HandleFunc("DELETE /v1/tenants/session", a.handleDeactivateSession)
	a.mux.HandleFunc("DELETE /v1/tenants/{id}", a.handleDeleteTenant)
	a.mux.HandleFunc("POST /v1/tenants/{id}/admins", a.handleAssignAdmin)
	a.mux.HandleFunc("DELETE /v1/tenants/{id}/admins/{principal_id}", a.handleUnassignAdmin)

	a.mux.HandleFunc("GET /v1/principals", a.handleListPrincipals)
	a.mux.HandleFunc("POST /v1/principals", a.handleCreatePrincipal)
	a.mux.HandleFunc("GET /v1/principals/{id}", a.handleGetPrincipal)
	a.mux.HandleFunc("DELETE /v1/principals/{id}", a.handleDeletePrincipal)

	a.mux.HandleFunc("GET /v1/rooms", a.handleListRooms)
	a.mux.HandleFunc("POST /v1/rooms", a.handleCreateRoom)
	a.mux.HandleFunc("GET /v1/rooms/{id}", a.handleGetRoom)
	a.mux.HandleFunc("PATCH /v1/rooms/{id}", a.handleUpdateRoom)
	a.mux.HandleFunc("DELETE /v1/rooms/{id}", a.handleDeleteRoom)

	a.mux.HandleFunc("GET /v1/complaints", a.handleListComplaints)
	a.mux.HandleFunc("POST /v1/complaints", a.handleCreateComplaint)
	a.mux.HandleFunc("GET /v1/complaints/{id}", a.handleGetComplaint)

	a.mux.HandleFunc("GET /v1/approvals/pending", a.handlePendingApprovals)
	a.mux.HandleFunc("GET /v1/approvals/mine", a.handleMyApprovals)
	a.mux.HandleFunc("GET /v1/approvals/{id}", a.handleGetApproval)
	a.mux.HandleFunc("POST /v1/approvals/{id}/decision", a.handleDecideApproval)
	a.mux.HandleFunc("POST /v1/approvals/{id}/cancel", a.handleCancelApproval)

	a.mux.HandleFunc("GET /v1/audit", a.handleListAudit)
}

// Handler returns the full middleware pipeline around the routes.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = Deadline(h, a.storeTimeout)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyCheck.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
