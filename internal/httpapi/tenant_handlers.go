package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/authz"
	"hostelhub.org/internal/tenancy"
)

const actionDeleteTenant = "delete_tenant"

type createTenantRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type switchTenantRequest struct {
	TenantID string `json:"tenant_id"`
}

type assignAdminRequest struct {
	PrincipalID string `json:"principal_id"`
}

func (a *API) handleListTenants(w http.ResponseWriter, r *http.Request) {
	p, _, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := authz.RequirePermission(p, auth.PermTenantRead); err != nil {
		writeAppError(w, r, err)
		return
	}
	tenants, err := a.resolver.AccessibleTenants(r.Context(), p)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

func (a *API) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	p, _, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := authz.RequirePermission(p, auth.PermTenantCreate); err != nil {
		writeAppError(w, r, err)
		return
	}
	var req createTenantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, err)
		return
	}
	t := &tenancy.Tenant{
		ID:      strings.TrimSpace(req.ID),
		Name:    strings.TrimSpace(req.Name),
		Address: strings.TrimSpace(req.Address),
		Active:  true,
	}
	if t.Name == "" {
		writeAppError(w, r, apperr.Invalid("name is required"))
		return
	}
	if err := a.resolver.Store().CreateTenant(r.Context(), t); err != nil {
		writeAppError(w, r, apperr.Infra(err))
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/tenants/%s", t.ID))
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) handleSwitchTenant(w http.ResponseWriter, r *http.Request) {
	p, _, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := authz.RequirePermission(p, auth.PermTenantSwitch); err != nil {
		writeAppError(w, r, err)
		return
	}
	var req switchTenantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, err)
		return
	}
	sess, err := a.resolver.Switch(r.Context(), p, strings.TrimSpace(req.TenantID))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (a *API) handleDeactivateSession(w http.ResponseWriter, r *http.Request) {
	p, _, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	ok, err := a.resolver.Deactivate(r.Context(), p, strings.TrimSpace(r.URL.Query().Get("session_id")))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deactivated": ok})
}

// handleDeleteTenant retires a tenant. Tenants are never hard-deleted because
// audit records and assignments keep referring to them.
func (a *API) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	p, scope, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	id := r.PathValue("id")
	t, err := a.resolver.Store().GetTenant(r.Context(), id)
	if err != nil {
		writeAppError(w, r, apperr.Infra(err))
		return
	}
	if !scope.CanAccess(t.ID) {
		writeAppError(w, r, apperr.NotFound("tenant"))
		return
	}
	err = a.authorizeGated(r.Context(), p, auth.PermTenantDelete, authz.Action{
		Name:         actionDeleteTenant,
		ResourceType: "tenant",
		ResourceID:   t.ID,
		TenantID:     t.ID,
		Details:      map[string]any{"name": t.Name},
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := a.resolver.Store().SetTenantActive(r.Context(), t.ID, false); err != nil {
		writeAppError(w, r, apperr.Infra(err))
		return
	}
	t.Active = false
	writeJSON(w, http.StatusOK, t)
}

func (a *API) handleAssignAdmin(w http.ResponseWriter, r *http.Request) {
	p, _, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := authz.RequirePermission(p, auth.PermTenantAssign); err != nil {
		writeAppError(w, r, err)
		return
	}
	var req assignAdminRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, err)
		return
	}
	tenantID := r.PathValue("id")
	if _, err := a.resolver.Store().GetTenant(r.Context(), tenantID); err != nil {
		writeAppError(w, r, apperr.Infra(err))
		return
	}
	target, err := a.principals.Get(r.Context(), strings.TrimSpace(req.PrincipalID))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeAppError(w, r, apperr.Invalid("principal_id does not name a principal"))
			return
		}
		writeAppError(w, r, apperr.Infra(err))
		return
	}
	if !target.Role.UsesAssignments() {
		writeAppError(w, r, apperr.Invalid("only admins take tenant assignments"))
		return
	}
	if err := a.resolver.Store().Assign(r.Context(), target.ID, tenantID); err != nil {
		writeAppError(w, r, apperr.Infra(err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"principal_id": target.ID, "tenant_id": tenantID})
}

func (a *API) handleUnassignAdmin(w http.ResponseWriter, r *http.Request) {
	p, _, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := authz.RequirePermission(p, auth.PermTenantAssign); err != nil {
		writeAppError(w, r, err)
		return
	}
	ok, err := a.resolver.Store().Unassign(r.Context(), r.PathValue("principal_id"), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, apperr.Infra(err))
		return
	}
	if !ok {
		writeAppError(w, r, apperr.NotFound("assignment"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
