package warehouse

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"evalserver/internal/domain"
)

type fakeSQL struct {
	execs []execCall
	err   error
}

type execCall struct {
	query string
	args  []any
}

func (f *fakeSQL) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{query: query, args: args})
	return pgconn.CommandTag{}, f.err
}

func (f *fakeSQL) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }

func sampleResults() *domain.EvaluationResults {
	submitted := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &domain.EvaluationResults{
		JobID:              "eval_20240501_100000_abc123",
		Status:             domain.JobStatusCompleted,
		SubmittedAt:        submitted,
		TargetURL:          "http://localhost:6000/chat",
		TotalQuestions:     2,
		QuestionsCompleted: 2,
		OverallScore:       0.83,
		ReportJSONPath:     "/reports/job/report.json",
		QuestionResults: []domain.QuestionResult{
			{
				Question: "q1",
				ScorerResults: []domain.ScorerResult{
					{ScorerName: "numerical_accuracy", Score: 1, Weight: 0.6, WeightedScore: 0.6},
					{ScorerName: "agent_routing", Score: 0.5, Weight: 0.4, WeightedScore: 0.2},
				},
			},
			{
				Question: "q2",
				ScorerResults: []domain.ScorerResult{
					{ScorerName: "numerical_accuracy", Score: 1, Weight: 0.6, WeightedScore: 0.6},
				},
			},
		},
	}
}

func TestFlattenOneRowPerQuestionScorer(t *testing.T) {
	rows := Flatten(sampleResults())
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	for i, row := range rows {
		if len(row) != 23 {
			t.Fatalf("row %d has %d columns, want 23", i, len(row))
		}
		if row[0] != "eval_20240501_100000_abc123" {
			t.Fatalf("row %d job_id = %v", i, row[0])
		}
	}
	if rows[0][16] != "numerical_accuracy" || rows[1][16] != "agent_routing" {
		t.Fatalf("scorer columns out of order: %v, %v", rows[0][16], rows[1][16])
	}
}

func TestFlattenEmptyResultsProducesSummaryRow(t *testing.T) {
	results := sampleResults()
	results.QuestionResults = nil

	rows := Flatten(results)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 summary row", len(rows))
	}
	if rows[0][0] != results.JobID || rows[0][9] != nil {
		t.Fatalf("summary row malformed: %v", rows[0])
	}
}

func TestExportInsertsAllRows(t *testing.T) {
	sql := &fakeSQL{}
	w := NewWriter(sql, "eval_results", zerolog.Nop())

	if err := w.Export(context.Background(), sampleResults()); err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(sql.execs) != 3 {
		t.Fatalf("%d inserts executed, want 3", len(sql.execs))
	}
	for _, call := range sql.execs {
		if !strings.Contains(call.query, "INSERT INTO eval_results") {
			t.Fatalf("unexpected query: %s", call.query)
		}
		if len(call.args) != 23 {
			t.Fatalf("insert got %d args, want 23", len(call.args))
		}
	}
}

func TestExportPropagatesSQLErrors(t *testing.T) {
	sql := &fakeSQL{err: errors.New("connection reset")}
	w := NewWriter(sql, "eval_results", zerolog.Nop())

	if err := w.Export(context.Background(), sampleResults()); err == nil {
		t.Fatal("expected error from failing insert")
	}
}

func TestEnsureTableUsesConfiguredName(t *testing.T) {
	sql := &fakeSQL{}
	w := NewWriter(sql, "custom_results", zerolog.Nop())

	if err := w.EnsureTable(context.Background()); err != nil {
		t.Fatalf("ensure table: %v", err)
	}
	if len(sql.execs) != 1 || !strings.Contains(sql.execs[0].query, "CREATE TABLE IF NOT EXISTS custom_results") {
		t.Fatalf("unexpected DDL: %+v", sql.execs)
	}
}
