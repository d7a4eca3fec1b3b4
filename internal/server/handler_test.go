package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/forPelevin/hookcut/internal/domain/hooks"
	"github.com/forPelevin/hookcut/internal/domain/render"
	"github.com/forPelevin/hookcut/internal/platform/metrics"
)

func newTestRouter(t *testing.T) (http.Handler, *metrics.Metrics) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	met := metrics.New()
	h := NewHandler(log, met, hooks.DefaultPolicy(), render.DefaultProfile())
	return NewRouter(h, log, met), met
}

func post(t *testing.T, r http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestResolveHooks(t *testing.T) {
	r, _ := newTestRouter(t)
	body := `{"hooks":[
		{"segments":[{"start":0,"end":30},{"start":120,"end":150}],"virality_score":150,"title":"arc"},
		{"segments":[{"start":0,"end":10}],"title":"short"},
		{"segments":[]}
	]}`
	rec, out := post(t, r, "/v1/hooks/resolve", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	clips := out["clips"].([]any)
	if len(clips) != 1 {
		t.Fatalf("expected 1 clip, got %v", clips)
	}
	clip := clips[0].(map[string]any)
	if clip["total_duration"] != float64(60) || clip["virality_score"] != float64(100) {
		t.Fatalf("unexpected clip %v", clip)
	}
	rejs := out["rejections"].([]any)
	if len(rejs) != 2 || rejs[0].(map[string]any)["reason"] != "too_short" || rejs[1].(map[string]any)["reason"] != "no_segments" {
		t.Fatalf("unexpected rejections %v", rejs)
	}
}

func TestResolveHooks_PolicyOverrideAndRawText(t *testing.T) {
	r, _ := newTestRouter(t)
	raw, _ := json.Marshal("```json\n[{\"segments\":[{\"start\":0,\"end\":100}]}]\n```")
	body := `{"hooks":` + string(raw) + `,"policy":{"min_total":10,"max_total":40,"mode":"clamp"}}`
	rec, out := post(t, r, "/v1/hooks/resolve", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	clip := out["clips"].([]any)[0].(map[string]any)
	if clip["total_duration"] != float64(40) {
		t.Fatalf("expected clamp to 40s, got %v", clip)
	}
}

func TestResolveHooks_Errors(t *testing.T) {
	r, _ := newTestRouter(t)
	tests := []struct {
		name string
		body string
		code int
	}{
		{"not json", "nope", http.StatusBadRequest},
		{"unknown field", `{"hookz":[]}`, http.StatusBadRequest},
		{"bad policy", `{"hooks":[],"policy":{"mode":"stretch"}}`, http.StatusBadRequest},
		{"no candidate list", `{"hooks":{"answer":"none"}}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := post(t, r, "/v1/hooks/resolve", tt.body)
			if rec.Code != tt.code || out["error"] == "" {
				t.Fatalf("expected %d with error, got %d %v", tt.code, rec.Code, out)
			}
		})
	}
}

func TestPlanClips(t *testing.T) {
	r, _ := newTestRouter(t)
	body := `{
		"source": "https://cdn.example/v.mp4",
		"hooks": [{"segments":[{"start":10,"end":40},{"start":100,"end":130}],"title":"arc","virality_score":80}],
		"words": [
			{"text":"setup","start":10,"end":11},
			{"text":"line","start":11,"end":12},
			{"text":"payoff","start":100,"end":101}
		],
		"profile": {"media_strategy":"concat"}
	}`
	rec, out := post(t, r, "/v1/clips/plan", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	job := out["jobs"].([]any)[0].(map[string]any)
	caps := job["clip"].(map[string]any)["captions"].([]any)
	if len(caps) != 2 || caps[1].(map[string]any)["start"] != float64(30) {
		t.Fatalf("expected payoff caption at 30s, got %v", caps)
	}
	plan := job["plan"].(map[string]any)
	if plan["duration"] != float64(60) || plan["strategy"] != "concat" || plan["audio_out"] != "cat_a" {
		t.Fatalf("unexpected plan %v", plan)
	}
	if g := plan["filter_graph"].(string); !strings.HasPrefix(g, "[0:v][0:a][1:v][1:a]concat=n=2") {
		t.Fatalf("unexpected filter graph %s", g)
	}

	mrec := httptest.NewRecorder()
	r.ServeHTTP(mrec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(mrec.Body.String(), "hookcut_hooks_resolved_total 1") {
		t.Fatalf("expected resolved counter, got:\n%s", mrec.Body.String())
	}
}

func TestPlanClips_Errors(t *testing.T) {
	r, _ := newTestRouter(t)
	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing source", `{"hooks":[]}`, http.StatusBadRequest},
		{"bad profile", `{"source":"s","hooks":[],"profile":{"width":-2}}`, http.StatusBadRequest},
		{"malformed hooks", `{"source":"s","hooks":"no json here"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := post(t, r, "/v1/clips/plan", tt.body)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestNilLoggerAndMetrics(t *testing.T) {
	h := NewHandler(nil, nil, hooks.DefaultPolicy(), render.DefaultProfile())
	r := NewRouter(h, nil, nil)
	for body, code := range map[string]int{`{"hooks":[]}`: http.StatusOK, `not json`: http.StatusBadRequest} {
		rec, _ := post(t, r, "/v1/hooks/resolve", body)
		if rec.Code != code {
			t.Fatalf("expected %d for %q, got %d: %s", code, body, rec.Code, rec.Body.String())
		}
	}
}
