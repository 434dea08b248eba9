package domain

import (
	"fmt"
	"strings"
	"time"
)

// ExpectedOutcome is the ground truth attached to a question: the reference
// response, the agent expected to handle it, and the routing rationale.
type ExpectedOutcome struct {
	Response string `json:"response" yaml:"response"`
	Agent    string `json:"agent" yaml:"agent"`
	Reason   string `json:"reason" yaml:"reason"`
}

// Question pairs a prompt with its expected outcome.
type Question struct {
	Question        string          `json:"question" yaml:"question"`
	ExpectedOutcome ExpectedOutcome `json:"expected_outcome" yaml:"expected_outcome"`
}

// EvaluationRequest is the submitted payload for one batch evaluation.
type EvaluationRequest struct {
	TargetURL      string     `json:"target_url"`
	Questions      []Question `json:"questions"`
	IdempotencyKey string     `json:"request_id,omitempty"`
}

// Validate checks the request is executable.
func (r *EvaluationRequest) Validate() error {
	if strings.TrimSpace(r.TargetURL) == "" {
		return fmt.Errorf("target_url is required")
	}
	if len(r.Questions) == 0 {
		return fmt.Errorf("questions must not be empty")
	}
	for i, q := range r.Questions {
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("questions[%d]: question text is required", i)
		}
	}
	return nil
}

// Clone returns a copy whose question slice is not aliased to the original.
func (r EvaluationRequest) Clone() EvaluationRequest {
	cp := r
	cp.Questions = append([]Question(nil), r.Questions...)
	return cp
}

// ScorerResult is one scorer's verdict on one question.
type ScorerResult struct {
	ScorerName    string  `json:"scorer_name"`
	Score         float64 `json:"score"`
	Weight        float64 `json:"weight"`
	WeightedScore float64 `json:"weighted_score"`
	Rationale     string  `json:"rationale,omitempty"`
}

// QuestionResult aggregates all scorer verdicts for one question.
type QuestionResult struct {
	Question            string          `json:"question"`
	ExpectedOutcome     ExpectedOutcome `json:"expected_outcome"`
	ActualResponse      string          `json:"actual_response,omitempty"`
	ActualAgent         string          `json:"actual_agent,omitempty"`
	ActualRoutingReason string          `json:"actual_routing_reason,omitempty"`
	ScorerResults       []ScorerResult  `json:"scorer_results"`
	OverallScore        float64         `json:"overall_score"`
}

// EvaluationResults is the complete outcome of a finished evaluation job.
type EvaluationResults struct {
	JobID              string           `json:"job_id"`
	Status             JobStatus        `json:"status"`
	SubmittedAt        time.Time        `json:"submitted_at"`
	StartedAt          *time.Time       `json:"started_at,omitempty"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
	TargetURL          string           `json:"target_url"`
	TotalQuestions     int              `json:"total_questions"`
	QuestionsCompleted int              `json:"questions_completed"`
	OverallScore       float64          `json:"overall_score"`
	QuestionResults    []QuestionResult `json:"question_results"`
	ReportJSONPath     string           `json:"report_json_path,omitempty"`
	ReportHTMLPath     string           `json:"report_html_path,omitempty"`
}

// Clone returns a deep copy of the results.
func (r *EvaluationResults) Clone() *EvaluationResults {
	if r == nil {
		return nil
	}
	cp := *r
	if r.StartedAt != nil {
		t := *r.StartedAt
		cp.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	cp.QuestionResults = make([]QuestionResult, len(r.QuestionResults))
	for i, qr := range r.QuestionResults {
		qr.ScorerResults = append([]ScorerResult(nil), qr.ScorerResults...)
		cp.QuestionResults[i] = qr
	}
	return &cp
}
