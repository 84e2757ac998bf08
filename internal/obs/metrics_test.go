package obs

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zapcore"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                         "/",
		"/metrics":                 "/metrics",
		"/api/access/payroll/read": "/api/access/:module/:action",
		"/api/admin/users/01J0ABC/module-overrides":     "/api/admin/users/:id/module-overrides",
		"/api/platform/roles/org_manager/module-access": "/api/platform/roles/:key/module-access",
		"/api/docs/index.html":                          "/api/docs/*",
		"/api/audit?limit=10":                           "/api/audit",
		"/api/platform/organizations/":                  "/api/platform/organizations",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentCountsStatus(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/access/:module/:action", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/access/payroll/read", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/access/:module/:action", "418"))
	if after-before != 1 {
		t.Fatalf("expected one request counted, got %v", after-before)
	}
}

func TestRecordDecision(t *testing.T) {
	before := testutil.ToFloat64(authzDecisions.WithLabelValues("payroll", "read", "deny"))
	RecordDecision("payroll", "read", "deny")
	if got := testutil.ToFloat64(authzDecisions.WithLabelValues("payroll", "read", "deny")) - before; got != 1 {
		t.Fatalf("expected deny counter +1, got %v", got)
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	l, err := NewLogger("not-a-level")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug should be disabled at default level")
	}
	if OrNop(nil) == nil {
		t.Fatal("OrNop returned nil")
	}
}

func TestInitBuildInfoKeepsSingleSeries(t *testing.T) {
	InitBuildInfo(BuildInfo{Version: "v1", Commit: "abc", Store: "memory", RateLimit: "memory"})
	InitBuildInfo(BuildInfo{Version: "v2", Store: "postgres", RateLimit: "redis"})
	if n := testutil.CollectAndCount(buildInfo); n != 1 {
		t.Fatalf("expected one build_info series, got %d", n)
	}
	if got := testutil.ToFloat64(buildInfo.WithLabelValues("v2", "unknown", runtime.Version(), "postgres", "redis")); got != 1 {
		t.Fatalf("expected build_info=1, got %v", got)
	}
}
