package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/internal/pipeline"
	"github.com/wonny/marginrecon/internal/window"
	"github.com/wonny/marginrecon/pkg/logger"
	"github.com/wonny/marginrecon/pkg/redis"
)

// Runner is the reconciliation runner behind the run endpoints
type Runner interface {
	Start(opts pipeline.Options) (string, error)
	LastSummary() *contracts.RunSummary
}

// RunHandler serves reconciliation run endpoints
// ⭐ SSOT: 실행 API 핸들러는 이 구조체에서만
type RunHandler struct {
	runner  Runner
	cache   *redis.Cache
	limiter *redis.RateLimiter
	logger  *logger.Logger
	loc     *time.Location
}

// NewRunHandler creates a run handler
func NewRunHandler(runner Runner, cache *redis.Cache, limiter *redis.RateLimiter, log *logger.Logger) *RunHandler {
	return &RunHandler{
		runner:  runner,
		cache:   cache,
		limiter: limiter,
		logger:  log,
		loc:     time.Local,
	}
}

// WithLocation sets the zone an as_of date is read in
func (h *RunHandler) WithLocation(loc *time.Location) *RunHandler {
	h.loc = loc
	return h
}

// GetLatest returns the summary of the most recent run
// GET /api/runs/latest
func (h *RunHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	var summary contracts.RunSummary
	found, err := h.cache.Get(r.Context(), redis.LatestRunKey, &summary)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to read cached run summary")
	}
	if found {
		respondJSON(w, http.StatusOK, summary)
		return
	}

	if last := h.runner.LastSummary(); last != nil {
		respondJSON(w, http.StatusOK, last)
		return
	}

	respondError(w, http.StatusNotFound, "No reconciliation run yet")
}

// GetRun returns the summary of one run
// GET /api/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var summary contracts.RunSummary
	found, err := h.cache.Get(r.Context(), redis.RunKey(id), &summary)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to read cached run summary")
	}
	if found {
		respondJSON(w, http.StatusOK, summary)
		return
	}

	if last := h.runner.LastSummary(); last != nil && last.RunID == id {
		respondJSON(w, http.StatusOK, last)
		return
	}

	respondError(w, http.StatusNotFound, "Run not found")
}

// TriggerRequest represents a manual run request. All fields are optional.
type TriggerRequest struct {
	AsOf              string   `json:"as_of"` // YYYY-MM-DD, default today
	Reports           []string `json:"reports"`
	FailOnDiscrepancy bool     `json:"fail_on_discrepancy"`
}

// Trigger starts a reconciliation run in the background
// POST /api/runs
func (h *RunHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	decision, err := h.limiter.Allow(r.Context(), redis.RunTriggerRateLimit)
	if err != nil {
		h.logger.WithError(err).Warn("Rate limiter unavailable, allowing request")
		decision = redis.Decision{Allowed: true}
	}
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	if !decision.Allowed {
		secs := int(math.Ceil(decision.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		respondError(w, http.StatusTooManyRequests, "Too many run requests")
		return
	}

	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	asOf, err := window.ParseAsOf(req.AsOf, h.loc)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID, err := h.runner.Start(pipeline.Options{
		AsOf:              asOf,
		Reports:           req.Reports,
		FailOnDiscrepancy: req.FailOnDiscrepancy,
	})
	if errors.Is(err, pipeline.ErrRunInProgress) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "accepted",
		"run_id": runID,
		"as_of":  asOf.Format(window.DateLayout),
	})
}
