// Package registry implements the in-memory job registry: the single source
// of truth for evaluation job status, progress and results. All state lives
// behind one coarse mutex; every operation is an O(1) or O(n) map touch and
// never blocks on I/O while holding the lock.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"evalserver/internal/domain"
)

// Registry is a thread-safe store of evaluation jobs with optional
// idempotency-key deduplication. Jobs are retained for the lifetime of the
// process; the registry is volatile and not durable across restarts.
type Registry struct {
	mu     sync.Mutex
	jobs   map[string]*domain.Job
	byKey  map[string]string // idempotency key -> job id, never overwritten
	logger zerolog.Logger
	now    func() time.Time
}

// New creates an empty registry.
func New(logger zerolog.Logger) *Registry {
	return &Registry{
		jobs:   make(map[string]*domain.Job),
		byKey:  make(map[string]string),
		logger: logger,
		now:    time.Now,
	}
}

// NewJobID generates a collision-resistant job identifier combining a UTC
// timestamp with a random suffix, e.g. eval_20240501_103000_1a2b3c.
func NewJobID() string {
	return fmt.Sprintf("eval_%s_%s",
		time.Now().UTC().Format("20060102_150405"),
		uuid.NewString()[:6])
}

// FindByIdempotencyKey returns the job id previously registered under key,
// or "" when no such job exists. Safe to call concurrently with Create.
func (r *Registry) FindByIdempotencyKey(key string) string {
	if key == "" {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byKey[key]
}

// Create registers a new queued job for the request. The idempotency-key
// mapping and the job record are written under one lock section, so a lookup
// can never observe a key mapped to a record that does not exist yet.
//
// Returns domain.ErrDuplicateOperation when the request carries a key that is
// already mapped (the caller resolves to the original job), and an error when
// the job id itself already exists.
func (r *Registry) Create(jobID string, req domain.EvaluationRequest, unitsPerQuestion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[jobID]; exists {
		return fmt.Errorf("job %s already exists", jobID)
	}
	if req.IdempotencyKey != "" {
		if _, taken := r.byKey[req.IdempotencyKey]; taken {
			return domain.ErrDuplicateOperation
		}
		r.byKey[req.IdempotencyKey] = jobID
	}

	questions := len(req.Questions)
	r.jobs[jobID] = &domain.Job{
		ID:             jobID,
		IdempotencyKey: req.IdempotencyKey,
		Status:         domain.JobStatusQueued,
		Request:        req.Clone(),
		SubmittedAt:    r.now().UTC(),
		Progress: domain.Progress{
			QuestionsTotal: questions,
			UnitsTotal:     questions * unitsPerQuestion,
		},
	}
	return nil
}

// Get returns a snapshot copy of the job, or nil when absent.
func (r *Registry) Get(jobID string) *domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[jobID].Clone()
}

// UpdateStatus applies a lifecycle transition. It is a no-op when the job is
// absent; transitions that would regress the state machine are rejected and
// logged since they indicate a caller bug. Timestamps are first-write-wins:
// started_at on the first move into running, completed_at on the first move
// into a terminal state.
func (r *Registry) UpdateStatus(jobID string, status domain.JobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return
	}
	if !job.Status.CanTransitionTo(status) {
		r.logger.Error().
			Str("job_id", jobID).
			Str("from", string(job.Status)).
			Str("to", string(status)).
			Msg("registry: rejected status transition")
		return
	}
	job.Status = status
	now := r.now().UTC()
	switch {
	case status == domain.JobStatusRunning && job.StartedAt == nil:
		job.StartedAt = &now
	case status.Terminal() && job.CompletedAt == nil:
		job.CompletedAt = &now
	}
}

// UpdateProgress records partial completion counters and recomputes the
// derived percentage. No-op when the job is absent.
func (r *Registry) UpdateProgress(jobID string, questionsCompleted, unitsCompleted int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return
	}
	job.Progress.QuestionsCompleted = questionsCompleted
	job.Progress.UnitsCompleted = unitsCompleted
	job.Progress.Percent = domain.ComputePercent(unitsCompleted, job.Progress.UnitsTotal)
}

// SetResults attaches results to the job. It does not change status: callers
// set results first, then transition to completed, so a reader that observes
// the completed status always observes the results as well (both happen under
// this lock). No-op when the job is absent.
func (r *Registry) SetResults(jobID string, results *domain.EvaluationResults) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return
	}
	job.Results = results.Clone()
}

// SetError records the failure message and forces the job into the failed
// state, stamping completed_at if unset. No-op when the job is absent or
// already completed.
func (r *Registry) SetError(jobID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return
	}
	if !job.Status.CanTransitionTo(domain.JobStatusFailed) {
		r.logger.Error().
			Str("job_id", jobID).
			Str("from", string(job.Status)).
			Msg("registry: rejected failure transition")
		return
	}
	job.ErrorMessage = message
	job.Status = domain.JobStatusFailed
	if job.CompletedAt == nil {
		now := r.now().UTC()
		job.CompletedAt = &now
	}
}

// List returns snapshot copies of all jobs in no particular order.
func (r *Registry) List() []*domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	return out
}
