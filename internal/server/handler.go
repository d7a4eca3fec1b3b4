package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/forPelevin/hookcut/internal/domain/hooks"
	"github.com/forPelevin/hookcut/internal/domain/render"
	"github.com/forPelevin/hookcut/internal/platform/logger"
	"github.com/forPelevin/hookcut/internal/platform/metrics"
	"github.com/forPelevin/hookcut/internal/types"
	"github.com/forPelevin/hookcut/internal/usecase"
)

const maxBodyBytes = 8 << 20

// Handler exposes hook resolution and render planning over HTTP. Nothing here
// touches the network or the render engine.
type Handler struct {
	log     *slog.Logger
	metrics *metrics.Metrics
	policy  hooks.Policy
	profile render.Profile
}

// NewHandler returns a Handler with the given defaults. Log and metrics may be nil.
func NewHandler(log *slog.Logger, m *metrics.Metrics, policy hooks.Policy, profile render.Profile) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{log: log, metrics: m, policy: policy, profile: profile}
}

// ResolveHooks handles POST /v1/hooks/resolve.
// Body: {"hooks": <oracle output>, "policy": {"min_total": 60, "max_total": 180, "mode": "reject"}}.
func (h *Handler) ResolveHooks(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !h.decode(w, r, &req) {
		return
	}
	policy := req.Policy.apply(h.policy)
	if err := policy.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cands, elemErrs, err := hooks.ParseCandidates(oracleText(req.Hooks))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	specs, rejs := hooks.ResolveAll(cands, policy, h.log)
	h.count(len(specs), rejs, elemErrs)

	clips := make([]clipView, 0, len(specs))
	for _, s := range specs {
		clips = append(clips, newClipView(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"clips":      clips,
		"rejections": rejectionViews(rejs, elemErrs),
	})
}

// PlanClips handles POST /v1/clips/plan: resolution, stitching, captions and
// render plans for every hook, in seconds.
func (h *Handler) PlanClips(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, errors.New("source is required"))
		return
	}
	profile := h.profile
	if len(req.Profile) > 0 {
		if err := json.Unmarshal(req.Profile, &profile); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	tr := usecase.TranscriptFrom(req.payload())
	prep, err := usecase.Prepare(oracleText(req.Hooks), tr, req.Source, req.Policy.apply(h.policy), profile, h.log)
	if err != nil {
		var mi *types.MalformedInputError
		if errors.As(err, &mi) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.count(len(prep.Jobs), prep.Rejections, prep.Malformed)
	writeJSON(w, http.StatusOK, PlanResponse(prep))
}

// PlanResponse is the wire form of prepared jobs, shared with the plan command.
func PlanResponse(prep usecase.Prepared) map[string]any {
	jobs := make([]jobView, 0, len(prep.Jobs))
	for _, j := range prep.Jobs {
		v := jobView{Clip: newClipView(j.Spec)}
		if j.Err != nil {
			v.Error = j.Err.Error()
		} else {
			v.Plan = newPlanView(j.Plan)
		}
		jobs = append(jobs, v)
	}
	return map[string]any{
		"jobs":       jobs,
		"rejections": rejectionViews(prep.Rejections, prep.Malformed),
	}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) count(accepted int, rejs []*hooks.Rejection, malformed []error) {
	h.metrics.IncHooksResolved(accepted)
	for _, r := range rejs {
		h.metrics.IncHookRejected(string(r.Reason))
	}
	for range malformed {
		h.metrics.IncHookRejected("malformed")
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.log.Debug("invalid request body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
