package pg

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/audit"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/authz"
	"hostelhub.org/internal/tenancy"
)

// passthrough lets slice arguments reach the mock the way pgx receives them.
type passthrough struct{}

func (passthrough) ConvertValue(v any) (driver.Value, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		return valuer.Value()
	}
	return v, nil
}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(passthrough{}))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return New(db), mock
}

var principalCols = []string{"id", "email", "phone", "display_name", "role", "home_tenant_id", "active",
	"email_verified", "phone_verified", "password_hash", "created_at", "updated_at", "deleted_at"}

func TestPrincipalCreateConflict(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("insert into principals").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	p := auth.Principal{Email: "Dup@Example.com", Role: auth.RoleMember}
	err := s.Principals().Create(context.Background(), &p)
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "dup@example.com", p.Email)
	assert.NotEmpty(t, p.ID)
}

func TestPrincipalCreateUnknownTenant(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("insert into principals").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	p := auth.Principal{Email: "a@example.com", Role: auth.RoleMember, HomeTenantID: "nope"}
	require.ErrorIs(t, s.Principals().Create(context.Background(), &p), apperr.ErrInvalidRequest)
}

func TestPrincipalGetAndFind(t *testing.T) {
	s, mock := newMock(t)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery("select .* from principals where id=\\$1").
		WithArgs("22").
		WillReturnRows(sqlmock.NewRows(principalCols).
			AddRow("22", "staff@example.com", nil, "Staff", "staff", "7", true, true, false, "hash", now, now, nil))
	mock.ExpectQuery("from principals\\s+where deleted_at is null and phone = \\$1").
		WithArgs("+15550100000").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("select .* from principals where id=\\$1").
		WithArgs("bad").
		WillReturnRows(sqlmock.NewRows(principalCols).
			AddRow("bad", "x@example.com", nil, "X", "overlord", nil, true, false, false, nil, now, now, nil))

	p, err := s.Principals().Get(context.Background(), "22")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStaff, p.Role)
	assert.Equal(t, "7", p.HomeTenantID)
	assert.Empty(t, p.Phone)
	assert.Nil(t, p.DeletedAt)

	_, err = s.Principals().FindByIdentifier(context.Background(), "+15550100000")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.Principals().Get(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestFindByIdentifierQueriesOneColumn(t *testing.T) {
	s, mock := newMock(t)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery("from principals\\s+where deleted_at is null and email = \\$1\\s*$").
		WithArgs("15551234567@sms.example").
		WillReturnRows(sqlmock.NewRows(principalCols).
			AddRow("a", "15551234567@sms.example", nil, "A", "member", "7", true, true, false, "hash", now, now, nil))
	mock.ExpectQuery("from principals\\s+where deleted_at is null and phone = \\$1\\s*$").
		WithArgs("15551234567").
		WillReturnRows(sqlmock.NewRows(principalCols).
			AddRow("b", nil, "15551234567", "B", "member", "7", true, false, true, "hash", now, now, nil))

	byEmail, err := s.Principals().FindByIdentifier(context.Background(), "15551234567@SMS.example")
	require.NoError(t, err)
	assert.Equal(t, "a", byEmail.ID)

	byPhone, err := s.Principals().FindByIdentifier(context.Background(), "1 555 123 4567")
	require.NoError(t, err)
	assert.Equal(t, "b", byPhone.ID)

	_, err = s.Principals().FindByIdentifier(context.Background(), "  ")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPrincipalListAndAnonymize(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("from principals where home_tenant_id = any\\(\\$1\\)").
		WithArgs([]string{"3", "5"}).
		WillReturnRows(sqlmock.NewRows(principalCols).
			AddRow("40", "r@example.com", nil, "R", "member", "3", true, false, false, nil, now, now, nil))
	mock.ExpectExec("update principals\\s+set email = \\$2").
		WithArgs("40", "deleted+40@invalid", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update principals").
		WithArgs("40", "deleted+40@invalid", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	list, err := s.Principals().ListByHomeTenant(context.Background(), []string{"3", "5"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.Principals().Anonymize(context.Background(), "40", now))
	require.ErrorIs(t, s.Principals().Anonymize(context.Background(), "40", now), apperr.ErrNotFound)
}

func TestRefreshConsumeIsConditional(t *testing.T) {
	s, mock := newMock(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(time.Hour)
	mock.ExpectQuery("update refresh_tokens set revoked = true\\s+where token = \\$1 and revoked = false and expires_at > \\$2").
		WithArgs("tok", now).
		WillReturnRows(sqlmock.NewRows([]string{"principal_id", "expires_at", "remember", "created_at"}).
			AddRow("22", exp, true, now))
	mock.ExpectQuery("update refresh_tokens set revoked = true").
		WithArgs("tok", now).
		WillReturnError(sql.ErrNoRows)

	rec, err := s.RefreshTokens().Consume(context.Background(), "tok", now)
	require.NoError(t, err)
	assert.Equal(t, "22", rec.PrincipalID)
	assert.True(t, rec.Revoked)
	assert.True(t, rec.Remember)

	_, err = s.RefreshTokens().Consume(context.Background(), "tok", now)
	require.ErrorIs(t, err, apperr.ErrInvalidCredential)
}

func TestRefreshRevocations(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectExec("update refresh_tokens set revoked = true where token = \\$1").
		WithArgs("tok").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("where principal_id = \\$1 and revoked = false").
		WithArgs("22").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("delete from refresh_tokens where expires_at <= \\$1").
		WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 2))

	ok, err := s.RefreshTokens().Revoke(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, ok)
	n, err := s.RefreshTokens().RevokeAll(context.Background(), "22")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = s.RefreshTokens().DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestActivateRunsInOneTransaction(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec("select pg_advisory_xact_lock").WithArgs("10").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("update active_sessions set active = false").
		WithArgs("10", "3", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("insert into active_sessions").
		WithArgs("10", "3", at, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "principal_id", "tenant_id", "active", "updated_at"}).
			AddRow("s1", "10", "3", true, at))
	mock.ExpectCommit()

	sess, err := s.Tenancy().Activate(context.Background(), "10", "3", at)
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.True(t, sess.Active)
}

func TestActivateRollsBackOnFailure(t *testing.T) {
	s, mock := newMock(t)
	at := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec("select pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("update active_sessions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("insert into active_sessions").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})
	mock.ExpectRollback()

	_, err := s.Tenancy().Activate(context.Background(), "10", "ghost", at)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTenantQueries(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	cols := []string{"id", "name", "address", "active", "created_at"}
	mock.ExpectQuery("from tenants where id = any\\(\\$1\\) order by id").
		WithArgs([]string{"3", "5"}).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("3", "North", "", true, now).AddRow("5", "South", "", false, now))
	mock.ExpectQuery("select tenant_id from tenant_assignments where principal_id = \\$1").
		WithArgs("10").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow("3").AddRow("5"))
	mock.ExpectExec("update tenants set active = \\$2 where id = \\$1").
		WithArgs("9", false).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("from active_sessions where principal_id = \\$1 and active").
		WithArgs("10").WillReturnError(sql.ErrNoRows)

	ts, err := s.Tenancy().ListTenantsByID(context.Background(), []string{"3", "5"})
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.False(t, ts[1].Active)

	empty, err := s.Tenancy().ListTenantsByID(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	ids, err := s.Tenancy().TenantIDsFor(context.Background(), "10")
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "5"}, ids)

	require.ErrorIs(t, s.Tenancy().SetTenantActive(context.Background(), "9", false), apperr.ErrNotFound)

	_, ok, err := s.Tenancy().ActiveSession(context.Background(), "10")
	require.NoError(t, err)
	assert.False(t, ok)
}

var approvalCols = []string{"id", "requester_id", "action", "resource_type", "resource_id", "tenant_id", "details",
	"threshold_level", "status", "approver_id", "notes", "created_at", "decided_at", "consumed_at"}

func TestApprovalTransitionLosingRace(t *testing.T) {
	s, mock := newMock(t)
	at := time.Now().UTC()
	mock.ExpectQuery("update approval_requests\\s+set status = \\$2, approver_id = \\$3, notes = \\$4, decided_at = \\$5\\s+where id = \\$1 and status = 'pending'").
		WithArgs("7", "approved", "11", nil, at).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("select status from approval_requests where id = \\$1").
		WithArgs("7").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("approved"))

	_, err := s.Approvals().Transition(context.Background(), "7", authz.StatusApproved, "11", "", at)
	require.ErrorIs(t, err, apperr.ErrPreconditionFailed)
}

func TestApprovalTransitionWins(t *testing.T) {
	s, mock := newMock(t)
	at := time.Now().UTC()
	mock.ExpectQuery("update approval_requests").
		WithArgs("7", "approved", "10", "ok", at).
		WillReturnRows(sqlmock.NewRows(approvalCols).
			AddRow("7", "22", "delete_principal", "principal", "400", "7", []byte(`{"why":"left"}`),
				4, "approved", "10", "ok", at, at, nil))

	r, err := s.Approvals().Transition(context.Background(), "7", authz.StatusApproved, "10", "ok", at)
	require.NoError(t, err)
	assert.Equal(t, authz.StatusApproved, r.Status)
	assert.Equal(t, "10", r.ApproverID)
	require.NotNil(t, r.DecidedAt)
	assert.Nil(t, r.ConsumedAt)
	assert.JSONEq(t, `{"why":"left"}`, string(r.Details))
}

func TestApprovalListPendingUsesTenantFilter(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("where status = 'pending' and threshold_level <= \\$1 and \\(tenant_id is null or tenant_id = any\\(\\$2\\)\\)").
		WithArgs(4, []string{"3", "5"}).
		WillReturnRows(sqlmock.NewRows(approvalCols))
	mock.ExpectQuery("threshold_level <= \\$1 and \\(tenant_id is null or false\\)").
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows(approvalCols))

	_, err := s.Approvals().ListPending(context.Background(), 4, tenancy.Filter{Kind: tenancy.FilterIn, TenantIDs: []string{"3", "5"}})
	require.NoError(t, err)
	_, err = s.Approvals().ListPending(context.Background(), 4, tenancy.Filter{Kind: tenancy.FilterDeny})
	require.NoError(t, err)
}

func TestApprovalConsumeNoMatch(t *testing.T) {
	s, mock := newMock(t)
	at := time.Now()
	mock.ExpectQuery("update approval_requests set consumed_at = \\$5").
		WithArgs("22", "delete_principal", "principal", "400", at).
		WillReturnError(sql.ErrNoRows)

	_, ok, err := s.Approvals().ConsumeApproved(context.Background(), "22", "delete_principal", "principal", "400", at)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuditAppendAndList(t *testing.T) {
	s, mock := newMock(t)
	at := time.Now().UTC()
	mock.ExpectExec("insert into audit_records").
		WithArgs("a1", "1", "GET", "/v1/principals", nil, "10.0.0.1", "curl", sqlmock.AnyArg(), at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	details, _ := json.Marshal(map[string]any{"bypass_tenant_filter": true})
	mock.ExpectQuery("from audit_records where tenant_id = \\$1 and actor_id = \\$2\\s+order by created_at desc, id desc\\s+limit \\$3").
		WithArgs("3", "10", 200).
		WillReturnRows(sqlmock.NewRows([]string{"id", "actor_id", "action", "resource", "tenant_id", "ip", "user_agent", "details", "created_at"}).
			AddRow("a2", "10", "PATCH", "/v1/rooms/x", "3", "", "", details, at))

	rec := audit.Record{ID: "a1", ActorID: "1", Action: "GET", Resource: "/v1/principals", IP: "10.0.0.1", UserAgent: "curl", CreatedAt: at}
	require.NoError(t, s.Audit().Append(context.Background(), &rec))

	list, err := s.Audit().List(context.Background(), audit.Query{
		Filter:  tenancy.Filter{Kind: tenancy.FilterEquals, TenantIDs: []string{"3"}},
		ActorID: "10",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "3", list[0].TenantID)
	assert.Equal(t, true, list[0].Details["bypass_tenant_filter"])
}
