package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.LoginAttempt("success")
	m.OTPVerification("mismatch")
	m.TokenIssued("access")
	m.TokenRevoked()
	m.Pruned("otp", 3)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rr.Code)
	}
}

func TestAuthCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.LoginAttempt("success")
	m.LoginAttempt("success")
	m.LoginAttempt("invalid_credentials")
	m.TokenRevoked()
	m.Pruned("revocations", 0)
	m.Pruned("revocations", 4)

	if got := testutil.ToFloat64(m.LoginAttemptsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("success logins = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TokensRevokedTotal); got != 1 {
		t.Errorf("revoked = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PrunedTotal.WithLabelValues("revocations")); got != 4 {
		t.Errorf("pruned = %v, want 4", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Patch("/api/admins/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, id := range []string{"1", "2", "3"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("PATCH", "/api/admins/"+id+"/status", nil))
	}

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("PATCH", "/api/admins/{id}/status", "204"))
	if got != 3 {
		t.Errorf("requests = %v, want 3", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(nil)
	m.TokenIssued("refresh")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `loyalbridge_tokens_issued_total{type="refresh"} 1`) {
		t.Errorf("exposition missing token counter:\n%s", rr.Body.String())
	}
}
