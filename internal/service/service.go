// Package service is the submission facade over the job registry: it maps
// inbound requests to registry operations, schedules background execution and
// shapes status/results views for the HTTP layer.
package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"evalserver/internal/domain"
	"evalserver/internal/registry"
	"evalserver/internal/runner"
)

// Evaluations coordinates submission, background execution and polling.
type Evaluations struct {
	registry *registry.Registry
	runner   runner.Runner
	scorers  []domain.Scorer
	exporter Exporter
	sem      *semaphore.Weighted
	logger   zerolog.Logger

	tasks sync.WaitGroup
}

// Options configures the evaluation service.
type Options struct {
	Registry *registry.Registry
	Runner   runner.Runner

	// Scorers is the scorer set applied to every question; it drives the
	// scoring-unit totals in job progress. Defaults to domain.DefaultScorers.
	Scorers []domain.Scorer

	// Exporter, when non-nil, receives completed results after the job is
	// marked completed. Export failures are logged and never affect the job.
	Exporter Exporter

	// MaxConcurrent bounds simultaneously running evaluations. Zero or
	// negative means effectively unbounded.
	MaxConcurrent int

	Logger zerolog.Logger
}

// New creates the evaluation service.
func New(opts Options) *Evaluations {
	scorers := opts.Scorers
	if len(scorers) == 0 {
		scorers = domain.DefaultScorers()
	}
	limit := int64(opts.MaxConcurrent)
	if limit <= 0 {
		limit = 1 << 20
	}
	return &Evaluations{
		registry: opts.Registry,
		runner:   opts.Runner,
		scorers:  scorers,
		exporter: opts.Exporter,
		sem:      semaphore.NewWeighted(limit),
		logger:   opts.Logger,
	}
}

// Scorers returns the configured scorer set.
func (s *Evaluations) Scorers() []domain.Scorer {
	return append([]domain.Scorer(nil), s.scorers...)
}

// Submit registers a job for the request and schedules its execution.
// Requests carrying an idempotency key resolve to the originally created job:
// duplicate is true when an existing job was returned instead of a new one.
func (s *Evaluations) Submit(req domain.EvaluationRequest) (jobID string, duplicate bool, err error) {
	if err := req.Validate(); err != nil {
		return "", false, err
	}

	if req.IdempotencyKey != "" {
		if existing := s.registry.FindByIdempotencyKey(req.IdempotencyKey); existing != "" {
			return existing, true, nil
		}
	}

	jobID = registry.NewJobID()
	if err := s.registry.Create(jobID, req, len(s.scorers)); err != nil {
		if err == domain.ErrDuplicateOperation {
			// Lost the race against a concurrent submission with the same
			// key; the mapping now points at the winner.
			return s.registry.FindByIdempotencyKey(req.IdempotencyKey), true, nil
		}
		return "", false, fmt.Errorf("create job: %w", err)
	}

	s.logger.Info().
		Str("job_id", jobID).
		Str("target_url", req.TargetURL).
		Int("questions", len(req.Questions)).
		Msg("evaluation job queued")

	s.launch(jobID)
	return jobID, false, nil
}

// StatusView is the polling shape for one job.
type StatusView struct {
	JobID          string           `json:"job_id"`
	Status         domain.JobStatus `json:"status"`
	SubmittedAt    time.Time        `json:"submitted_at"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	TargetURL      string           `json:"target_url"`
	TotalQuestions int              `json:"total_questions"`
	Progress       *domain.Progress `json:"progress,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// GetStatus returns the current lifecycle view of a job. Progress is only
// populated while the job is running.
func (s *Evaluations) GetStatus(jobID string) (*StatusView, error) {
	job := s.registry.Get(jobID)
	if job == nil {
		return nil, domain.ErrNotFound
	}
	view := &StatusView{
		JobID:          job.ID,
		Status:         job.Status,
		SubmittedAt:    job.SubmittedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
		TargetURL:      job.Request.TargetURL,
		TotalQuestions: len(job.Request.Questions),
		Error:          job.ErrorMessage,
	}
	if job.Status == domain.JobStatusRunning {
		p := job.Progress
		view.Progress = &p
	}
	return view, nil
}

// GetResults returns the full results of a completed job.
func (s *Evaluations) GetResults(jobID string) (*domain.EvaluationResults, error) {
	job := s.registry.Get(jobID)
	if job == nil {
		return nil, domain.ErrNotFound
	}
	if job.Status != domain.JobStatusCompleted {
		return nil, fmt.Errorf("%w: job status is %s", domain.ErrInvalidState, job.Status)
	}
	if job.Results == nil {
		// Completed without results would mean a registry invariant broke.
		s.logger.Error().Str("job_id", jobID).Msg("completed job has no results")
		return nil, fmt.Errorf("results missing for job %s", jobID)
	}
	return job.Results, nil
}

// Summary is the list shape for one job.
type Summary struct {
	JobID          string           `json:"job_id"`
	Status         domain.JobStatus `json:"status"`
	SubmittedAt    time.Time        `json:"submitted_at"`
	TotalQuestions int              `json:"total_questions"`
}

// List returns summaries of all known jobs.
func (s *Evaluations) List() []Summary {
	jobs := s.registry.List()
	out := make([]Summary, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, Summary{
			JobID:          job.ID,
			Status:         job.Status,
			SubmittedAt:    job.SubmittedAt,
			TotalQuestions: len(job.Request.Questions),
		})
	}
	return out
}
