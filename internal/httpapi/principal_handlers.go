package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/authz"
	"hostelhub.org/internal/obs"
	"hostelhub.org/internal/repo"
)

const actionDeletePrincipal = "delete_principal"

type createPrincipalRequest struct {
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	DisplayName  string `json:"display_name"`
	Role         string `json:"role"`
	HomeTenantID string `json:"home_tenant_id"`
	Password     string `json:"password"`
}

func (a *API) handleListPrincipals(w http.ResponseWriter, r *http.Request) {
	p, scope, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := authz.RequirePermission(p, auth.PermPrincipalRead); err != nil {
		writeAppError(w, r, err)
		return
	}
	list, err := repo.NewPrincipals(a.principals, scope).List(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"principals":           list,
		"bypass_tenant_filter": scope.Bypass,
	})
}

func (a *API) handleGetPrincipal(w http.ResponseWriter, r *http.Request) {
	p, scope, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := authz.RequirePermission(p, auth.PermPrincipalRead); err != nil {
		writeAppError(w, r, err)
		return
	}
	pr, err := repo.NewPrincipals(a.principals, scope).Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

func (a *API) handleCreatePrincipal(w http.ResponseWriter, r *http.Request) {
	p, scope, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := authz.RequirePermission(p, auth.PermPrincipalCreate); err != nil {
		writeAppError(w, r, err)
		return
	}
	var req createPrincipalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, err)
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		writeAppError(w, r, apperr.Invalid("%v", err))
		return
	}
	if err := authz.RequireManage(p, role); err != nil {
		writeAppError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" && strings.TrimSpace(req.Phone) == "" {
		writeAppError(w, r, apperr.Invalid("email or phone is required"))
		return
	}
	pr := &auth.Principal{
		Email:        req.Email,
		Phone:        req.Phone,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Role:         role,
		HomeTenantID: strings.TrimSpace(req.HomeTenantID),
		Active:       true,
	}
	if req.Password != "" {
		if err := auth.ValidatePasswordStrength(req.Password); err != nil {
			writeAppError(w, r, apperr.Invalid("%v", err))
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		pr.PasswordHash = hash
	}
	if err := repo.NewPrincipals(a.principals, scope).Create(r.Context(), pr); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/principals/%s", pr.ID))
	writeJSON(w, http.StatusCreated, pr)
}

// handleDeletePrincipal anonymizes a principal and revokes its refresh
// tokens. The id survives for audit references.
func (a *API) handleDeletePrincipal(w http.ResponseWriter, r *http.Request) {
	p, scope, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	directory := repo.NewPrincipals(a.principals, scope)
	target, err := directory.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if target.ID == p.ID {
		writeAppError(w, r, apperr.Invalid("cannot delete yourself"))
		return
	}
	if err := authz.RequireManage(p, target.Role); err != nil {
		writeAppError(w, r, err)
		return
	}
	err = a.authorizeGated(r.Context(), p, auth.PermPrincipalDelete, authz.Action{
		Name:         actionDeletePrincipal,
		ResourceType: "principal",
		ResourceID:   target.ID,
		TenantID:     target.HomeTenantID,
		Details:      map[string]any{"role": target.Role},
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if _, err := directory.Anonymize(r.Context(), target.ID); err != nil {
		writeAppError(w, r, err)
		return
	}
	revoked, err := a.tokens.RevokeAll(r.Context(), target.ID)
	if err != nil {
		obs.Logger().Error().Err(err).Str("principal_id", target.ID).Msg("revoke_tokens_failed")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             target.ID,
		"deleted":        true,
		"revoked_tokens": revoked,
	})
}
