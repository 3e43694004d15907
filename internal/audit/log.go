package audit

import (
	"context"
	"errors"
	"maps"
	"strings"

	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes a security event line enriched with request and principal
// context. Events go to the log only; persisted records go through Writer.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	ev := obs.Logger().Info().Str("type", "audit").Str("event", event)
	if rid := RequestIDFromContext(ctx); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		ev = ev.Str("principal_id", p.ID).Str("role", string(p.Role))
	}
	copied := map[string]any{}
	if len(fields) > 0 {
		copied = maps.Clone(fields)
	}
	ev.Interface("fields", copied).Msg("audit_event")
	return nil
}
