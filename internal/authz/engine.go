package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/obs"
	"hostelhub.org/internal/tenancy"
)

// Engine gates high-impact actions behind approval thresholds.
type Engine struct {
	store      Store
	thresholds map[string]int
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// NewEngine builds an engine. thresholds maps action names to the minimum
// role level that may act without approval; it is copied.
func NewEngine(store Store, thresholds map[string]int, opts ...Option) *Engine {
	e := &Engine{store: store, thresholds: maps.Clone(thresholds), now: time.Now}
	if e.thresholds == nil {
		e.thresholds = map[string]int{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold returns the configured level for action.
func (e *Engine) Threshold(action string) (int, bool) {
	lvl, ok := e.thresholds[action]
	return lvl, ok
}

// Gate decides whether p may perform a now. It returns nil to proceed, an
// *apperr.ApprovalRequiredError after recording a pending request, or any
// other error. An approved request from p for the same target is consumed
// once and lets the action proceed.
func (e *Engine) Gate(ctx context.Context, p auth.Principal, a Action) error {
	threshold, gated := e.Threshold(a.Name)
	if !gated || p.Role.Level() >= threshold {
		obs.ObserveAuthz("approval", "allow")
		return nil
	}
	if _, ok, err := e.store.ConsumeApproved(ctx, p.ID, a.Name, a.ResourceType, a.ResourceID, e.now().UTC()); err != nil {
		return apperr.Infra(err)
	} else if ok {
		obs.ObserveAuthz("approval", "approved")
		return nil
	}
	req, err := e.Submit(ctx, p, a, threshold)
	if err != nil {
		return err
	}
	obs.ObserveAuthz("approval", "deferred")
	return &apperr.ApprovalRequiredError{RequestID: req.ID, Action: a.Name, Threshold: threshold}
}

// Submit records a new pending request. Every call creates a new record.
func (e *Engine) Submit(ctx context.Context, requester auth.Principal, a Action, threshold int) (Request, error) {
	if a.Name == "" || a.ResourceType == "" {
		return Request{}, apperr.Invalid("action and resource_type are required")
	}
	if threshold < 1 || threshold > auth.MaxLevel {
		return Request{}, apperr.Invalid("threshold level %d out of range", threshold)
	}
	var details json.RawMessage
	if a.Details != nil {
		raw, err := json.Marshal(a.Details)
		if err != nil {
			return Request{}, apperr.Invalid("details: %v", err)
		}
		details = raw
	}
	req := Request{
		RequesterID:    requester.ID,
		Action:         a.Name,
		ResourceType:   a.ResourceType,
		ResourceID:     a.ResourceID,
		TenantID:       a.TenantID,
		Details:        details,
		ThresholdLevel: threshold,
		Status:         StatusPending,
		CreatedAt:      e.now().UTC(),
	}
	if err := e.store.Create(ctx, &req); err != nil {
		return Request{}, apperr.Infra(err)
	}
	obs.ObserveApproval(req.Action, string(req.Status))
	return req, nil
}

// Decide approves or rejects a pending request. The approver needs a level
// at or above the request's threshold, must not be the requester, and must
// reach the request's tenant. Only the first decision wins.
func (e *Engine) Decide(ctx context.Context, id string, approver tenancy.Scope, d Decision, notes string) (Request, error) {
	to, ok := d.Status()
	if !ok {
		return Request{}, apperr.Invalid("decision must be approve or reject")
	}
	req, err := e.store.Get(ctx, id)
	if err != nil {
		return Request{}, apperr.Infra(err)
	}
	if approver.Role.Level() < req.ThresholdLevel {
		return Request{}, apperr.Denied("approver level below threshold %d", req.ThresholdLevel)
	}
	if approver.PrincipalID == req.RequesterID {
		return Request{}, apperr.Denied("self-approval is not allowed")
	}
	if req.TenantID != "" && !approver.CanAccess(req.TenantID) {
		return Request{}, apperr.Denied("tenant not accessible")
	}
	if req.Status != StatusPending {
		return Request{}, apperr.Precondition("request is %s", req.Status)
	}
	out, err := e.store.Transition(ctx, id, to, approver.PrincipalID, notes, e.now().UTC())
	if err != nil {
		return Request{}, apperr.Infra(err)
	}
	obs.ObserveApproval(out.Action, string(out.Status))
	return out, nil
}

// Cancel withdraws a pending request. Only the requester may cancel.
func (e *Engine) Cancel(ctx context.Context, id string, requester auth.Principal) (Request, error) {
	req, err := e.store.Get(ctx, id)
	if err != nil {
		return Request{}, apperr.Infra(err)
	}
	if req.RequesterID != requester.ID {
		return Request{}, apperr.NotFound("approval request")
	}
	out, err := e.store.Transition(ctx, id, StatusCancelled, requester.ID, "", e.now().UTC())
	if err != nil {
		return Request{}, apperr.Infra(err)
	}
	obs.ObserveApproval(out.Action, string(out.Status))
	return out, nil
}

// PendingFor lists requests the approver is qualified to decide.
func (e *Engine) PendingFor(ctx context.Context, approver tenancy.Scope) ([]Request, error) {
	f := tenancy.Filter{Kind: tenancy.FilterNone}
	if !approver.Bypass {
		f = tenancy.Filter{Kind: tenancy.FilterIn, TenantIDs: approver.Accessible}
		if len(approver.Accessible) == 0 {
			f = tenancy.Filter{Kind: tenancy.FilterDeny}
		}
	}
	list, err := e.store.ListPending(ctx, approver.Role.Level(), f)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	out := list[:0]
	for _, r := range list {
		if r.RequesterID != approver.PrincipalID {
			out = append(out, r)
		}
	}
	return out, nil
}

// MyPending lists the requester's own pending requests.
func (e *Engine) MyPending(ctx context.Context, requesterID string) ([]Request, error) {
	list, err := e.store.ListByRequester(ctx, requesterID, StatusPending)
	return list, apperr.Infra(err)
}

// Status returns a request visible to viewer: its requester, or a principal
// qualified to decide it. Anything else reads as absent.
func (e *Engine) Status(ctx context.Context, id string, viewer tenancy.Scope) (Request, error) {
	req, err := e.store.Get(ctx, id)
	if err != nil {
		return Request{}, apperr.Infra(err)
	}
	if req.RequesterID == viewer.PrincipalID {
		return req, nil
	}
	if viewer.Role.Level() >= req.ThresholdLevel && (req.TenantID == "" || viewer.CanAccess(req.TenantID)) {
		return req, nil
	}
	return Request{}, apperr.NotFound("approval request")
}

// IsApprovalRequired unwraps an approval deferral.
func IsApprovalRequired(err error) (*apperr.ApprovalRequiredError, bool) {
	var target *apperr.ApprovalRequiredError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// ParseThresholds reads "action=level,action=level" pairs.
func ParseThresholds(raw string) (map[string]int, error) {
	out := map[string]int{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, lvl, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("threshold %q: want action=level", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(lvl))
		if err != nil || n < 1 || n > auth.MaxLevel {
			return nil, fmt.Errorf("threshold %q: level must be 1..%d", pair, auth.MaxLevel)
		}
		out[name] = n
	}
	return out, nil
}
