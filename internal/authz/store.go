package authz

import (
	"context"
	"time"

	"hostelhub.org/internal/tenancy"
)

// Store persists approval requests.
type Store interface {
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id string) (Request, error)
	// Transition moves a pending request to status, stamping actor and time.
	// It fails with apperr.ErrPreconditionFailed unless the request is pending.
	Transition(ctx context.Context, id string, to Status, actorID, notes string, at time.Time) (Request, error)
	// ConsumeApproved stamps the oldest approved, unconsumed request matching
	// the requester and target. The bool is false when none matches.
	ConsumeApproved(ctx context.Context, requesterID, action, resourceType, resourceID string, at time.Time) (Request, bool, error)
	// ListPending returns pending requests whose threshold is at most
	// maxThreshold and whose tenant passes f. Tenantless requests always pass.
	ListPending(ctx context.Context, maxThreshold int, f tenancy.Filter) ([]Request, error)
	ListByRequester(ctx context.Context, requesterID string, status Status) ([]Request, error)
}
