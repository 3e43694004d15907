package audit

import (
	"context"
	"maps"
	"time"

	"github.com/rs/zerolog"

	"hostelhub.org/internal/ids"
	"hostelhub.org/internal/obs"
	"hostelhub.org/internal/tenancy"
)

const defaultWriteTimeout = 3 * time.Second

// Writer is the single sink for audit records. Writes are best-effort.
type Writer struct {
	store   Store
	log     *zerolog.Logger
	now     func() time.Time
	timeout time.Duration
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) WriterOption {
	return func(w *Writer) {
		if fn != nil {
			w.now = fn
		}
	}
}

// WithLogger overrides the logger that receives write failures.
func WithLogger(l *zerolog.Logger) WriterOption {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// WithTimeout bounds each write.
func WithTimeout(d time.Duration) WriterOption {
	return func(w *Writer) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// NewWriter returns a Writer appending to store.
func NewWriter(store Store, opts ...WriterOption) *Writer {
	w := &Writer{store: store, log: obs.Logger(), now: time.Now, timeout: defaultWriteTimeout}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Entry is what a caller knows about a finished action.
type Entry struct {
	Action    string
	Resource  string
	IP        string
	UserAgent string
	Details   map[string]any
}

// Record appends an entry for the principal and tenant of scope. It outlives
// request cancellation and never fails the caller; failures are logged and
// counted.
func (w *Writer) Record(ctx context.Context, scope tenancy.Scope, e Entry) {
	details := map[string]any{}
	if len(e.Details) > 0 {
		details = maps.Clone(e.Details)
	}
	details["bypass_tenant_filter"] = scope.Bypass
	details["role"] = string(scope.Role)
	if rid := RequestIDFromContext(ctx); rid != "" {
		details["request_id"] = rid
	}
	rec := &Record{
		ID:        ids.New(),
		ActorID:   scope.PrincipalID,
		Action:    e.Action,
		Resource:  e.Resource,
		TenantID:  scope.ActiveTenantID,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Details:   details,
		CreatedAt: w.now().UTC(),
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()
	if err := w.store.Append(wctx, rec); err != nil {
		obs.AuditWriteFailed()
		w.log.Error().Err(err).
			Str("actor_id", rec.ActorID).
			Str("action", rec.Action).
			Str("resource", rec.Resource).
			Msg("audit_write_failed")
	}
}

// List returns records visible through q.Filter, capping the page size.
func (w *Writer) List(ctx context.Context, q Query) ([]Record, error) {
	if q.Limit <= 0 || q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return w.store.List(ctx, q)
}
