package domain

import "time"

// JobStatus enumerates evaluation job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed out of s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether moving from s to next respects the
// lifecycle order queued -> running -> {completed|failed}. A queued job may
// fail directly when setup breaks before execution starts. Re-applying the
// current status is allowed and treated as a no-op by callers.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case JobStatusQueued:
		return next == JobStatusRunning || next == JobStatusFailed
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// Progress tracks completion counters for a running evaluation. A scoring
// unit is one (question x scorer) pair.
type Progress struct {
	QuestionsCompleted int `json:"questions_completed"`
	QuestionsTotal     int `json:"questions_total"`
	UnitsCompleted     int `json:"scorers_completed"`
	UnitsTotal         int `json:"scorers_total"`
	Percent            int `json:"percent"`
}

// ComputePercent returns the integer completion percentage for the given
// counters. A zero total yields zero rather than a division panic.
func ComputePercent(unitsCompleted, unitsTotal int) int {
	if unitsTotal <= 0 {
		return 0
	}
	pct := unitsCompleted * 100 / unitsTotal
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Job encapsulates one batch evaluation request and its lifecycle state.
// Status, timestamps, progress and results are mutated only through the
// registry; the request payload is immutable after creation.
type Job struct {
	ID             string
	IdempotencyKey string
	Status         JobStatus
	Request        EvaluationRequest
	SubmittedAt    time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	Progress       Progress
	Results        *EvaluationResults
	ErrorMessage   string
}

// Clone returns a deep copy of the job so registry readers never observe
// live mutable state.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	cp.Request = j.Request.Clone()
	cp.Results = j.Results.Clone()
	return &cp
}
