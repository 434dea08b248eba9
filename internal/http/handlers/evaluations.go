package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"evalserver/internal/domain"
)

type submitResponse struct {
	JobID          string           `json:"job_id"`
	Status         domain.JobStatus `json:"status"`
	TargetURL      string           `json:"target_url"`
	TotalQuestions int              `json:"total_questions"`
	Message        string           `json:"message,omitempty"`
}

// EvaluateSubmit accepts a batch evaluation request and returns 202 with the
// job id for polling. A request whose idempotency key matches an existing job
// returns that job instead of creating a new one.
func (a *App) EvaluateSubmit(w http.ResponseWriter, r *http.Request) {
	var req domain.EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := req.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	jobID, duplicate, err := a.Evaluations.Submit(req)
	if err != nil {
		a.Logger.Error().Err(err).Msg("submit evaluation failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}

	status, err := a.Evaluations.GetStatus(jobID)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("submitted job missing from registry")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}

	resp := submitResponse{
		JobID:          jobID,
		Status:         status.Status,
		TargetURL:      status.TargetURL,
		TotalQuestions: status.TotalQuestions,
	}
	if duplicate {
		resp.Message = "duplicate request_id detected, returning existing job"
	}
	a.json(w, http.StatusAccepted, resp)
}

// EvaluateStatus reports the lifecycle view of one job. Progress is present
// only while the job is running.
func (a *App) EvaluateStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	status, err := a.Evaluations.GetStatus(jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", fmt.Sprintf("job %s not found", jobID))
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("get status failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, status)
}

// EvaluateResults returns the full results payload of a completed job.
func (a *App) EvaluateResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	results, err := a.Evaluations.GetResults(jobID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", fmt.Sprintf("job %s not found", jobID))
		return
	case errors.Is(err, domain.ErrInvalidState):
		a.error(w, http.StatusBadRequest, "invalid_state", err.Error())
		return
	case err != nil:
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("get results failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load results")
		return
	}
	a.json(w, http.StatusOK, results)
}
