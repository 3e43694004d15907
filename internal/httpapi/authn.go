package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/audit"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/tenancy"
)

const (
	authHeader   = "Authorization"
	bearer       = "Bearer "
	tenantHeader = "X-Tenant-ID"
	tenantParam  = "tenant"
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/v1/auth/logout",
	"/metrics",
	"/healthz",
	"/readyz",
}

// withAuth runs the request pipeline: authenticate, resolve the tenant
// scope, run the handler, then audit the outcome when policy demands it.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		principal, token, err := a.authenticate(r)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		metaFromContext(r.Context()).setPrincipal(principal.ID)

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		scope, err := a.resolver.Resolve(ctx, principal, tenantHint(r))
		if err != nil {
			writeAppError(w, r.WithContext(ctx), err)
			return
		}
		ctx = tenancy.ContextWithScope(ctx, scope)
		r, deferred := withDeferral(r.WithContext(ctx))

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		if sw.code < http.StatusMultipleChoices && a.policy.ShouldRecord(principal.Role, r.Method, scope.Bypass) {
			details := map[string]any{"status": sw.code}
			if deferred.approval != nil {
				details["outcome"] = "pending_approval"
				details["approval_request_id"] = deferred.approval.RequestID
				details["approval_action"] = deferred.approval.Action
			}
			a.audit.Record(ctx, scope, audit.Entry{
				Action:    r.Method,
				Resource:  r.URL.Path,
				IP:        clientIP(r),
				UserAgent: r.UserAgent(),
				Details:   details,
			})
		}
	})
}

func (a *API) authenticate(r *http.Request) (auth.Principal, string, error) {
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		return auth.Principal{}, "", err
	}
	claims, err := a.tokens.VerifyAccess(token)
	if err != nil {
		return auth.Principal{}, "", err
	}
	principal, err := a.tokens.PrincipalForClaims(r.Context(), claims)
	if err != nil {
		return auth.Principal{}, "", err
	}
	return principal, token, nil
}

// caller returns what withAuth attached to the request.
func caller(ctx context.Context) (auth.Principal, tenancy.Scope, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return auth.Principal{}, tenancy.Scope{}, apperr.ErrUnauthenticated
	}
	scope, ok := tenancy.ScopeFromContext(ctx)
	if !ok {
		return auth.Principal{}, tenancy.Scope{}, apperr.ErrUnauthenticated
	}
	return p, scope, nil
}

func tenantHint(r *http.Request) string {
	if v := strings.TrimSpace(r.URL.Query().Get(tenantParam)); v != "" {
		return v
	}
	return strings.TrimSpace(r.Header.Get(tenantHeader))
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", fmt.Errorf("%w: missing bearer token", apperr.ErrUnauthenticated)
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", fmt.Errorf("%w: invalid authorization scheme", apperr.ErrUnauthenticated)
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", fmt.Errorf("%w: missing bearer token", apperr.ErrUnauthenticated)
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
