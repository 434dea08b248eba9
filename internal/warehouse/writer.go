// Package warehouse exports completed evaluation results to an analytical
// Postgres table. The export is fire-and-forget: it runs after a job is
// already completed and its failures are logged, never surfaced to the job.
package warehouse

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"evalserver/internal/domain"
	"evalserver/internal/infra"
)

// Writer flattens evaluation results into one row per (question x scorer).
type Writer struct {
	SQL    infra.SQLExecutor
	Table  string
	Logger zerolog.Logger
}

// NewWriter creates a writer targeting the given table.
func NewWriter(sql infra.SQLExecutor, table string, logger zerolog.Logger) *Writer {
	return &Writer{SQL: sql, Table: table, Logger: logger}
}

const createTableTemplate = `
CREATE TABLE IF NOT EXISTS %s (
	job_id TEXT NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	status TEXT NOT NULL,
	target_url TEXT NOT NULL,
	total_questions INT NOT NULL,
	questions_completed INT NOT NULL,
	overall_score DOUBLE PRECISION,
	question TEXT,
	expected_response TEXT,
	expected_agent TEXT,
	expected_reason TEXT,
	actual_response TEXT,
	actual_agent TEXT,
	actual_routing_reason TEXT,
	scorer_name TEXT,
	scorer_score DOUBLE PRECISION,
	scorer_weight DOUBLE PRECISION,
	scorer_weighted_score DOUBLE PRECISION,
	scorer_rationale TEXT,
	report_json_path TEXT,
	report_html_path TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const insertRowTemplate = `
-- warehouse_insert_result
INSERT INTO %s (
	job_id, submitted_at, started_at, completed_at, status, target_url,
	total_questions, questions_completed, overall_score,
	question, expected_response, expected_agent, expected_reason,
	actual_response, actual_agent, actual_routing_reason,
	scorer_name, scorer_score, scorer_weight, scorer_weighted_score, scorer_rationale,
	report_json_path, report_html_path
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23);`

// EnsureTable creates the results table when it does not exist yet.
func (w *Writer) EnsureTable(ctx context.Context) error {
	if _, err := w.SQL.Exec(ctx, fmt.Sprintf(createTableTemplate, w.Table)); err != nil {
		return fmt.Errorf("ensure warehouse table: %w", err)
	}
	return nil
}

// Export writes the flattened rows for one completed evaluation. Results
// without question detail still produce a single summary row so the job is
// visible in the warehouse.
func (w *Writer) Export(ctx context.Context, results *domain.EvaluationResults) error {
	rows := Flatten(results)
	for _, row := range rows {
		if _, err := w.SQL.Exec(ctx, fmt.Sprintf(insertRowTemplate, w.Table), row...); err != nil {
			return fmt.Errorf("insert result row: %w", err)
		}
	}
	w.Logger.Info().
		Str("job_id", results.JobID).
		Int("rows", len(rows)).
		Msg("warehouse: results exported")
	return nil
}

// Flatten expands results into insert argument tuples, one per
// (question x scorer), columns matching insertRowTemplate order.
func Flatten(results *domain.EvaluationResults) [][]any {
	base := func() []any {
		return []any{
			results.JobID,
			results.SubmittedAt,
			results.StartedAt,
			results.CompletedAt,
			string(results.Status),
			results.TargetURL,
			results.TotalQuestions,
			results.QuestionsCompleted,
			results.OverallScore,
		}
	}

	var rows [][]any
	for _, qr := range results.QuestionResults {
		questionCols := []any{
			qr.Question,
			qr.ExpectedOutcome.Response,
			qr.ExpectedOutcome.Agent,
			qr.ExpectedOutcome.Reason,
			qr.ActualResponse,
			qr.ActualAgent,
			qr.ActualRoutingReason,
		}
		for _, sr := range qr.ScorerResults {
			row := append(base(), questionCols...)
			row = append(row,
				sr.ScorerName, sr.Score, sr.Weight, sr.WeightedScore, sr.Rationale,
				results.ReportJSONPath, results.ReportHTMLPath,
			)
			rows = append(rows, row)
		}
		if len(qr.ScorerResults) == 0 {
			row := append(base(), questionCols...)
			row = append(row, nil, nil, nil, nil, nil, results.ReportJSONPath, results.ReportHTMLPath)
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		row := append(base(), nil, nil, nil, nil, nil, nil, nil)
		row = append(row, nil, nil, nil, nil, nil, results.ReportJSONPath, results.ReportHTMLPath)
		rows = append(rows, row)
	}
	return rows
}
