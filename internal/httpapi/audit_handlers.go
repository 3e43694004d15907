package httpapi

import (
	"net/http"
	"strings"

	"hostelhub.org/internal/audit"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/authz"
)

func (a *API) handleListAudit(w http.ResponseWriter, r *http.Request) {
	p, scope, err := caller(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := authz.RequirePermission(p, auth.PermAuditRead); err != nil {
		writeAppError(w, r, err)
		return
	}
	f, err := scope.Filter()
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	q := r.URL.Query()
	limit, err := parseBoundedInt("limit", q.Get("limit"), audit.MaxLimit, 1, audit.MaxLimit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	records, err := a.audit.List(r.Context(), audit.Query{
		Filter:  f,
		ActorID: strings.TrimSpace(q.Get("actor_id")),
		Action:  strings.ToUpper(strings.TrimSpace(q.Get("action"))),
		Limit:   limit,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": nonNil(records)})
}
