package handlers

import (
	"net/http"

	"github.com/wonny/marginrecon/internal/scheduler"
)

// JobStatser exposes scheduler statistics
type JobStatser interface {
	GetJobStats() map[string]scheduler.JobStats
}

// JobHandler serves scheduler job statistics
type JobHandler struct {
	scheduler JobStatser
}

// NewJobHandler creates a job handler
func NewJobHandler(s JobStatser) *JobHandler {
	return &JobHandler{scheduler: s}
}

// GetStats returns per-job statistics
// GET /api/jobs
func (h *JobHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scheduler.GetJobStats())
}
