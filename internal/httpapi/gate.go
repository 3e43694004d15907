package httpapi

import (
	"context"
	"net/http"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/audit"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/authz"
)

// deferral carries an approval deferral from the handler back to withAuth,
// so the audit record of a 202 names the request it opened.
type deferral struct {
	approval *apperr.ApprovalRequiredError
}

type deferralKey struct{}

func withDeferral(r *http.Request) (*http.Request, *deferral) {
	d := &deferral{}
	return r.WithContext(context.WithValue(r.Context(), deferralKey{}, d)), d
}

func noteDeferral(ctx context.Context, approval *apperr.ApprovalRequiredError) {
	if d, ok := ctx.Value(deferralKey{}).(*deferral); ok {
		d.approval = approval
	}
}

// authorizeGated checks an action that may be deferred for approval. Holders
// of perm at or above the action's threshold proceed; anyone allowed to
// submit approvals goes through the engine, which either consumes a prior
// approval or records a new pending request.
func (a *API) authorizeGated(ctx context.Context, p auth.Principal, perm auth.Permission, action authz.Action) error {
	if _, gated := a.approvals.Threshold(action.Name); !gated {
		return authz.RequirePermission(p, perm)
	}
	if !auth.HasPermission(p.Role, perm) {
		if err := authz.RequirePermission(p, auth.PermApprovalSubmit); err != nil {
			return err
		}
	}
	err := a.approvals.Gate(ctx, p, action)
	if approval, ok := authz.IsApprovalRequired(err); ok {
		_ = audit.LogEvent(ctx, "approval.submitted", map[string]any{
			"approval_request_id": approval.RequestID,
			"action":              approval.Action,
			"threshold_level":     approval.Threshold,
			"resource_type":       action.ResourceType,
			"resource_id":         action.ResourceID,
			"tenant_id":           action.TenantID,
		})
	}
	return err
}
