package service

import (
	"context"
	"fmt"
	"time"

	"evalserver/internal/domain"
	"evalserver/internal/runner"
)

// Exporter ships completed results to an external analytical store.
type Exporter interface {
	Export(ctx context.Context, results *domain.EvaluationResults) error
}

// launch spawns the background task for one job. Execution is fire-and-forget
// from the submitter's point of view; the semaphore bounds how many runs are
// in flight at once, queued jobs simply wait their turn.
func (s *Evaluations) launch(jobID string) {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Str("job_id", jobID).Interface("panic", rec).Msg("evaluation task panicked")
				s.registry.SetError(jobID, fmt.Sprintf("internal error: %v", rec))
			}
		}()

		// Acquire cannot fail with a background context.
		_ = s.sem.Acquire(context.Background(), 1)
		defer s.sem.Release(1)

		s.process(jobID)
	}()
}

// Wait blocks until all launched evaluation tasks have finished. Used on
// shutdown and in tests; submissions racing with Wait are not accounted for.
func (s *Evaluations) Wait() {
	s.tasks.Wait()
}

// process drives one job through its lifecycle: running, progress updates
// while the runner streams, then results+completed or a recorded failure.
// The registry is the only synchronization point; the blocking runner call
// happens entirely outside its lock.
func (s *Evaluations) process(jobID string) {
	job := s.registry.Get(jobID)
	if job == nil {
		s.logger.Error().Str("job_id", jobID).Msg("launched task for unknown job")
		return
	}

	s.registry.UpdateStatus(jobID, domain.JobStatusRunning)

	out, err := s.runner.Run(context.Background(), runner.Input{
		JobID:     jobID,
		TargetURL: job.Request.TargetURL,
		Questions: job.Request.Questions,
		Scorers:   s.scorers,
		OnProgress: func(questionsCompleted, unitsCompleted int) {
			s.registry.UpdateProgress(jobID, questionsCompleted, unitsCompleted)
		},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("evaluation run failed")
		s.registry.SetError(jobID, err.Error())
		return
	}

	questions := len(job.Request.Questions)
	s.registry.UpdateProgress(jobID, questions, questions*len(s.scorers))

	// Re-read for the started_at stamp set by the running transition.
	fresh := s.registry.Get(jobID)
	now := time.Now().UTC()
	results := &domain.EvaluationResults{
		JobID:              jobID,
		Status:             domain.JobStatusCompleted,
		SubmittedAt:        job.SubmittedAt,
		StartedAt:          fresh.StartedAt,
		CompletedAt:        &now,
		TargetURL:          job.Request.TargetURL,
		TotalQuestions:     questions,
		QuestionsCompleted: questions,
		OverallScore:       out.OverallScore,
		QuestionResults:    out.QuestionResults,
		ReportJSONPath:     out.ReportJSONPath,
		ReportHTMLPath:     out.ReportHTMLPath,
	}

	// Results before the status transition, so no reader ever observes a
	// completed job without them.
	s.registry.SetResults(jobID, results)
	s.registry.UpdateStatus(jobID, domain.JobStatusCompleted)

	s.logger.Info().
		Str("job_id", jobID).
		Float64("overall_score", results.OverallScore).
		Msg("evaluation job completed")

	if s.exporter != nil {
		if err := s.exporter.Export(context.Background(), results); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("results export failed")
		}
	}
}
