package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	b, _ := io.ReadAll(rec.Body)
	return string(b)
}

func TestMetrics_Exposed(t *testing.T) {
	m := New()
	m.IncHooksResolved(2)
	m.IncHookRejected("too_short")
	m.ObserveRender(3 * time.Second)
	m.IncClipFailed("render")

	body := scrape(t, m)
	for _, want := range []string{
		"hookcut_hooks_resolved_total 2",
		`hookcut_hooks_rejected_total{reason="too_short"} 1`,
		"hookcut_clips_rendered_total 1",
		`hookcut_clips_failed_total{stage="render"} 1`,
		"hookcut_render_duration_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.IncHooksResolved(1)
	m.IncHookRejected("x")
	m.ObserveRender(time.Second)
	m.IncClipFailed("x")
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	for _, p := range []string{"/ok", "/bad", "/bad"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	body := scrape(t, m)
	if !strings.Contains(body, `hookcut_http_requests_total{code="2xx"} 1`) ||
		!strings.Contains(body, `hookcut_http_requests_total{code="4xx"} 2`) {
		t.Fatalf("unexpected counters:\n%s", body)
	}
}
