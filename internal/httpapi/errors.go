package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/obs"
)

type approvalPendingResponse struct {
	Status            string `json:"status"`
	ApprovalRequestID string `json:"approval_request_id"`
	Action            string `json:"action"`
	ThresholdLevel    int    `json:"threshold_level"`
	RequestID         string `json:"request_id,omitempty"`
}

// writeAppError maps the error vocabulary onto HTTP statuses.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var approval *apperr.ApprovalRequiredError
	switch {
	case errors.As(err, &approval):
		noteDeferral(r.Context(), approval)
		writeJSON(w, http.StatusAccepted, approvalPendingResponse{
			Status:            "pending_approval",
			ApprovalRequestID: approval.RequestID,
			Action:            approval.Action,
			ThresholdLevel:    approval.Threshold,
			RequestID:         RequestIDFromContext(r.Context()),
		})
	case errors.Is(err, apperr.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", `Bearer realm="hostelhub"`)
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, apperr.ErrAccessDenied):
		logDenied(r, err)
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, apperr.ErrPreconditionFailed), errors.Is(err, apperr.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrInvalidRequest):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case apperr.Retryable(err), errors.Is(err, context.DeadlineExceeded):
		obs.Logger().Warn().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("store_unavailable")
		writeError(w, r, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		obs.Logger().Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("request_failed")
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func logDenied(r *http.Request, err error) {
	ev := obs.Logger().Warn().
		Str("request_id", RequestIDFromContext(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path)
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		ev = ev.Str("principal_id", p.ID).Str("role", string(p.Role))
	}
	ev.Str("reason", err.Error()).Msg("access_denied")
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("request body is required")
		}
		return apperr.Invalid("%v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Invalid("unexpected data after JSON body")
	}
	return nil
}

func parseBoundedInt(name, raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Invalid("%s must be an integer", name)
	}
	if val < min || val > max {
		return 0, apperr.Invalid("%s must be between %d and %d", name, min, max)
	}
	return val, nil
}
