package httpapi

import (
	"net/http"
	"strings"

	"hostelhub.org/internal/audit"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/authz"
)

type decisionRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

func (a *API) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	p, scope, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := authz.RequirePermission(p, auth.PermApprovalDecide); err != nil {
		writeAppError(w, r, err)
		return
	}
	list, err := a.approvals.PendingFor(r.Context(), scope)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": nonNil(list)})
}

func (a *API) handleMyApprovals(w http.ResponseWriter, r *http.Request) {
	p, _, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	list, err := a.approvals.MyPending(r.Context(), p.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": nonNil(list)})
}

func (a *API) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	_, scope, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	req, err := a.approvals.Status(r.Context(), r.PathValue("id"), scope)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (a *API) handleDecideApproval(w http.ResponseWriter, r *http.Request) {
	p, scope, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := authz.RequirePermission(p, auth.PermApprovalDecide); err != nil {
		writeAppError(w, r, err)
		return
	}
	var body decisionRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeAppError(w, r, err)
		return
	}
	decision := authz.Decision(strings.ToLower(strings.TrimSpace(body.Decision)))
	req, err := a.approvals.Decide(r.Context(), r.PathValue("id"), scope, decision, strings.TrimSpace(body.Notes))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "approval.decided", map[string]any{
		"approval_request_id": req.ID,
		"action":              req.Action,
		"status":              req.Status,
		"approver_id":         req.ApproverID,
	})
	writeJSON(w, http.StatusOK, req)
}

func (a *API) handleCancelApproval(w http.ResponseWriter, r *http.Request) {
	p, _, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	req, err := a.approvals.Cancel(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
