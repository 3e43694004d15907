package obs

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                "/",
		"/metrics":                        "/metrics",
		"/v1/rooms/abc":                   "/v1/rooms/:id",
		"/v1/rooms?tenant=3":              "/v1/rooms",
		"/v1/tenants/01HX/admins":         "/v1/tenants/:id/admins",
		"/v1/tenants/t1/admins/p9":        "/v1/tenants/:id/admins/:principal_id",
		"/v1/tenants/switch":              "/v1/tenants/switch",
		"/v1/tenants/session":             "/v1/tenants/session",
		"/v1/approvals/pending":           "/v1/approvals/pending",
		"/v1/approvals/01HX/decision":     "/v1/approvals/:id/decision",
		"/v1/approvals/01HX/extra":        "/v1/approvals/01HX/extra",
		"/v1/principals/p1":               "/v1/principals/:id",
		"/v1/auth/login":                  "/v1/auth/login",
		"/v1/complaints/c1/attachments/2": "/v1/complaints/c1/attachments/2",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(auditWriteFailures)
	AuditWriteFailed()
	require.Equal(t, before+1, testutil.ToFloat64(auditWriteFailures))

	ObserveAuthz("permission", "deny")
	require.GreaterOrEqual(t, testutil.ToFloat64(authzDecisions.WithLabelValues("permission", "deny")), 1.0)

	ObserveApproval("delete_room", "pending")
	require.GreaterOrEqual(t, testutil.ToFloat64(approvalRequests.WithLabelValues("delete_room", "pending")), 1.0)
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "warn")
	l.Info().Msg("hidden")
	l.Warn().Str("k", "v").Msg("shown")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	require.Equal(t, "shown", entry["message"])
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "hostelhub", entry["service"])

	buf.Reset()
	fallback := NewLogger(&buf, "bogus")
	fallback.Debug().Msg("hidden")
	fallback.Info().Msg("shown")
	require.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}
