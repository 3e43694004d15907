package httpapi

import (
	"net/http"
	"strings"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/audit"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/tenancy"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	Remember   bool   `json:"remember"`
}

type loginResponse struct {
	auth.TokenPair
	Principal auth.Principal `json:"principal"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type meResponse struct {
	Principal      auth.Principal    `json:"principal"`
	Permissions    []auth.Permission `json:"permissions"`
	ActiveTenantID string            `json:"active_tenant_id,omitempty"`
	Accessible     []tenancy.Tenant  `json:"accessible_tenants"`
	Bypass         bool              `json:"bypass_tenant_filter"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Identifier) == "" || req.Password == "" {
		writeAppError(w, r, apperr.Invalid("identifier and password are required"))
		return
	}
	pair, p, err := a.tokens.Login(r.Context(), req.Identifier, req.Password, req.Remember)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"principal_id": p.ID,
		"remember":     req.Remember,
	})
	writeJSON(w, http.StatusOK, loginResponse{TokenPair: pair, Principal: p})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, err)
		return
	}
	pair, err := a.tokens.Rotate(r.Context(), req.RefreshToken)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, err)
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeAppError(w, r, apperr.Invalid("refresh_token is required"))
		return
	}
	if _, err := a.tokens.Revoke(r.Context(), req.RefreshToken); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	p, _, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	n, err := a.tokens.RevokeAll(r.Context(), p.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revoked": n})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	p, scope, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	tenants, err := a.resolver.AccessibleTenants(r.Context(), p)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		Principal:      p,
		Permissions:    auth.PermissionsOf(p.Role),
		ActiveTenantID: scope.ActiveTenantID,
		Accessible:     tenants,
		Bypass:         scope.Bypass,
	})
}
