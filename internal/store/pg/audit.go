package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"hostelhub.org/internal/audit"
	"hostelhub.org/internal/ids"
)

// AuditStore implements audit.Store. The table rejects updates and deletes.
type AuditStore struct {
	db *sql.DB
}

var _ audit.Store = (*AuditStore)(nil)

func (s *AuditStore) Append(ctx context.Context, r *audit.Record) error {
	if r.ID == "" {
		r.ID = ids.New()
	}
	details := r.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_records(id, actor_id, action, resource, tenant_id, ip, user_agent, details, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, r.ID, r.ActorID, r.Action, r.Resource, nullIfEmpty(r.TenantID), r.IP, r.UserAgent, raw, r.CreatedAt)
	return err
}

func (s *AuditStore) List(ctx context.Context, q audit.Query) ([]audit.Record, error) {
	clause, args := q.Filter.SQL("tenant_id", 1)
	conds := []string{clause}
	if q.ActorID != "" {
		args = append(args, q.ActorID)
		conds = append(conds, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if q.Action != "" {
		args = append(args, q.Action)
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)))
	}
	limit := q.Limit
	if limit <= 0 || limit > audit.MaxLimit {
		limit = audit.MaxLimit
	}
	args = append(args, limit)
	query := fmt.Sprintf(`select id, actor_id, action, resource, tenant_id, ip, user_agent, details, created_at
		from audit_records where %s
		order by created_at desc, id desc
		limit $%d`, strings.Join(conds, " and "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]audit.Record, 0)
	for rows.Next() {
		var (
			r        audit.Record
			tenantID sql.NullString
			raw      []byte
		)
		if err := rows.Scan(&r.ID, &r.ActorID, &r.Action, &r.Resource, &tenantID, &r.IP, &r.UserAgent, &raw, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.TenantID = tenantID.String
		r.CreatedAt = r.CreatedAt.UTC()
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &r.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
