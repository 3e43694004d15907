package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/authz"
	"hostelhub.org/internal/ids"
	"hostelhub.org/internal/tenancy"
)

// ApprovalStore implements authz.Store.
type ApprovalStore struct {
	db *sql.DB
}

var _ authz.Store = (*ApprovalStore)(nil)

const approvalColumns = `id, requester_id, action, resource_type, resource_id, tenant_id, details,
	threshold_level, status, approver_id, notes, created_at, decided_at, consumed_at`

func scanApproval(row rowScanner) (authz.Request, error) {
	var (
		r                                authz.Request
		resourceID, tenantID, approverID sql.NullString
		notes                            sql.NullString
		details                          []byte
		status                           string
		decided, consumed                sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.RequesterID, &r.Action, &r.ResourceType, &resourceID, &tenantID, &details,
		&r.ThresholdLevel, &status, &approverID, &notes, &r.CreatedAt, &decided, &consumed); err != nil {
		return authz.Request{}, err
	}
	r.ResourceID = resourceID.String
	r.TenantID = tenantID.String
	r.ApproverID = approverID.String
	r.Notes = notes.String
	if len(details) > 0 {
		r.Details = details
	}
	r.Status = authz.Status(status)
	r.CreatedAt = r.CreatedAt.UTC()
	r.DecidedAt = timePtr(decided)
	r.ConsumedAt = timePtr(consumed)
	return r, nil
}

func (s *ApprovalStore) Create(ctx context.Context, r *authz.Request) error {
	if r.ID == "" {
		r.ID = ids.New()
	}
	var details any
	if len(r.Details) > 0 {
		details = []byte(r.Details)
	}
	_, err := s.db.ExecContext(ctx, `
		insert into approval_requests(id, requester_id, action, resource_type, resource_id, tenant_id,
			details, threshold_level, status, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, r.ID, r.RequesterID, r.Action, r.ResourceType, nullIfEmpty(r.ResourceID), nullIfEmpty(r.TenantID),
		details, r.ThresholdLevel, string(r.Status), r.CreatedAt)
	if isUniqueViolation(err) {
		return apperr.ErrConflict
	}
	return err
}

func (s *ApprovalStore) Get(ctx context.Context, id string) (authz.Request, error) {
	r, err := scanApproval(s.db.QueryRowContext(ctx,
		`select `+approvalColumns+` from approval_requests where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return authz.Request{}, apperr.NotFound("approval request")
	}
	return r, err
}

func (s *ApprovalStore) Transition(ctx context.Context, id string, to authz.Status, actorID, notes string, at time.Time) (authz.Request, error) {
	r, err := scanApproval(s.db.QueryRowContext(ctx, `
		update approval_requests
		set status = $2, approver_id = $3, notes = $4, decided_at = $5
		where id = $1 and status = 'pending'
		returning `+approvalColumns, id, string(to), actorID, nullIfEmpty(notes), at))
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return authz.Request{}, err
	}
	var current string
	err = s.db.QueryRowContext(ctx, `select status from approval_requests where id = $1`, id).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return authz.Request{}, apperr.NotFound("approval request")
	case err != nil:
		return authz.Request{}, err
	}
	return authz.Request{}, apperr.Precondition("request is %s", current)
}

func (s *ApprovalStore) ConsumeApproved(ctx context.Context, requesterID, action, resourceType, resourceID string, at time.Time) (authz.Request, bool, error) {
	r, err := scanApproval(s.db.QueryRowContext(ctx, `
		update approval_requests set consumed_at = $5
		where id = (
			select id from approval_requests
			where requester_id = $1 and action = $2 and resource_type = $3
				and coalesce(resource_id, '') = $4
				and status = 'approved' and consumed_at is null
			order by created_at, id
			limit 1
			for update skip locked
		)
		returning `+approvalColumns, requesterID, action, resourceType, resourceID, at))
	if errors.Is(err, sql.ErrNoRows) {
		return authz.Request{}, false, nil
	}
	if err != nil {
		return authz.Request{}, false, err
	}
	return r, true, nil
}

func (s *ApprovalStore) ListPending(ctx context.Context, maxThreshold int, f tenancy.Filter) ([]authz.Request, error) {
	clause, args := f.SQL("tenant_id", 2)
	query := fmt.Sprintf(`select %s from approval_requests
		where status = 'pending' and threshold_level <= $1 and (tenant_id is null or %s)
		order by created_at, id`, approvalColumns, clause)
	return s.query(ctx, query, append([]any{maxThreshold}, args...)...)
}

func (s *ApprovalStore) ListByRequester(ctx context.Context, requesterID string, status authz.Status) ([]authz.Request, error) {
	return s.query(ctx, `select `+approvalColumns+` from approval_requests
		where requester_id = $1 and ($2 = '' or status = $2)
		order by created_at, id`, requesterID, string(status))
}

func (s *ApprovalStore) query(ctx context.Context, query string, args ...any) ([]authz.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]authz.Request, 0)
	for rows.Next() {
		r, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
