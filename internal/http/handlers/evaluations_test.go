package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"evalserver/internal/domain"
	"evalserver/internal/registry"
	"evalserver/internal/runner"
	"evalserver/internal/service"
)

type fakeRunner struct {
	output *runner.Output
	err    error
	block  chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, in runner.Input) (*runner.Output, error) {
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.output != nil {
		return f.output, nil
	}
	return &runner.Output{OverallScore: 0.9}, nil
}

// testRouter mounts the evaluation routes the way the server does, so URL
// params resolve through chi.
func testRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", app.Health)
	r.Get("/scorers", app.ScorersList)
	r.Get("/jobs", app.JobsList)
	r.Route("/evaluate", func(r chi.Router) {
		r.Post("/", app.EvaluateSubmit)
		r.Get("/{job_id}", app.EvaluateStatus)
		r.Get("/{job_id}/results", app.EvaluateResults)
	})
	return r
}

func newTestApp(t *testing.T, rn runner.Runner) (*App, *service.Evaluations) {
	t.Helper()
	logger := zerolog.Nop()
	svc := service.New(service.Options{
		Registry: registry.New(logger),
		Runner:   rn,
		Logger:   logger,
	})
	return NewApp(svc, logger, "test"), svc
}

func submitBody(target, requestID string, questions int) []byte {
	req := domain.EvaluationRequest{TargetURL: target, IdempotencyKey: requestID}
	for i := 0; i < questions; i++ {
		req.Questions = append(req.Questions, domain.Question{
			Question: "What are the store opening hours?",
			ExpectedOutcome: domain.ExpectedOutcome{
				Response: "We open at 9am.",
				Agent:    "faq",
				Reason:   "general store question",
			},
		})
	}
	body, _ := json.Marshal(req)
	return body
}

func TestEvaluateSubmit_QueuesJob(t *testing.T) {
	blocked := &fakeRunner{block: make(chan struct{})}
	app, svc := newTestApp(t, blocked)
	router := testRouter(app)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/evaluate", bytes.NewReader(submitBody("http://target:8000/chat", "", 3))))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: got %d, want 202", rr.Code)
	}

	var resp struct {
		JobID          string `json:"job_id"`
		Status         string `json:"status"`
		TargetURL      string `json:"target_url"`
		TotalQuestions int    `json:"total_questions"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp.JobID, "eval_") {
		t.Fatalf("unexpected job id: %q", resp.JobID)
	}
	if resp.Status != "queued" && resp.Status != "running" {
		t.Fatalf("unexpected status: %q", resp.Status)
	}
	if resp.TotalQuestions != 3 {
		t.Fatalf("expected 3 questions, got %d", resp.TotalQuestions)
	}
	if resp.TargetURL != "http://target:8000/chat" {
		t.Fatalf("unexpected target url: %q", resp.TargetURL)
	}

	close(blocked.block)
	svc.Wait()
}

func TestEvaluateSubmit_RejectsInvalidPayload(t *testing.T) {
	app, _ := newTestApp(t, &fakeRunner{})
	router := testRouter(app)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"target_url": `},
		{"missing target", `{"questions":[{"question":"q"}]}`},
		{"empty questions", `{"target_url":"http://t","questions":[]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest("POST", "/evaluate", strings.NewReader(tc.body)))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("unexpected status code: got %d, want 400", rr.Code)
			}
			var resp map[string]string
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp["error"] != "bad_request" {
				t.Fatalf("unexpected error code: %q", resp["error"])
			}
		})
	}
}

func TestEvaluateSubmit_DuplicateRequestIDReturnsSameJob(t *testing.T) {
	app, svc := newTestApp(t, &fakeRunner{})
	router := testRouter(app)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest("POST", "/evaluate", bytes.NewReader(submitBody("http://target", "req-abc", 1))))
	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest("POST", "/evaluate", bytes.NewReader(submitBody("http://target", "req-abc", 1))))

	var a, b struct {
		JobID   string `json:"job_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(first.Body).Decode(&a); err != nil {
		t.Fatalf("decode first response: %v", err)
	}
	if err := json.NewDecoder(second.Body).Decode(&b); err != nil {
		t.Fatalf("decode second response: %v", err)
	}
	if a.JobID != b.JobID {
		t.Fatalf("expected same job id, got %q and %q", a.JobID, b.JobID)
	}
	if a.Message != "" {
		t.Fatalf("first submission should carry no message, got %q", a.Message)
	}
	if !strings.Contains(b.Message, "duplicate") {
		t.Fatalf("expected duplicate notice, got %q", b.Message)
	}
	svc.Wait()
}

func TestEvaluateStatus_UnknownJob(t *testing.T) {
	app, _ := newTestApp(t, &fakeRunner{})
	router := testRouter(app)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/evaluate/eval_20260101_000000_abcdef", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status code: got %d, want 404", rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "not_found" {
		t.Fatalf("unexpected error code: %q", resp["error"])
	}
}

func TestEvaluateResults_CompletedJob(t *testing.T) {
	out := &runner.Output{
		OverallScore: 0.83,
		QuestionResults: []domain.QuestionResult{{
			Question:       "What are the store opening hours?",
			ActualResponse: "We open at 9am.",
			OverallScore:   0.83,
		}},
		ReportJSONPath: "/reports/eval/report.json",
	}
	app, svc := newTestApp(t, &fakeRunner{output: out})
	router := testRouter(app)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/evaluate", bytes.NewReader(submitBody("http://target", "", 1))))
	var submitted struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	svc.Wait()

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/evaluate/"+submitted.JobID+"/results", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}

	var results domain.EvaluationResults
	if err := json.NewDecoder(rr.Body).Decode(&results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if results.JobID != submitted.JobID {
		t.Fatalf("unexpected job id: %q", results.JobID)
	}
	if results.Status != domain.JobStatusCompleted {
		t.Fatalf("unexpected status: %q", results.Status)
	}
	if results.OverallScore != 0.83 {
		t.Fatalf("unexpected overall score: %v", results.OverallScore)
	}
	if len(results.QuestionResults) != 1 {
		t.Fatalf("expected 1 question result, got %d", len(results.QuestionResults))
	}
	if results.ReportJSONPath != "/reports/eval/report.json" {
		t.Fatalf("unexpected report path: %q", results.ReportJSONPath)
	}
}

func TestEvaluateResults_BeforeCompletion(t *testing.T) {
	blocked := &fakeRunner{block: make(chan struct{})}
	app, svc := newTestApp(t, blocked)
	router := testRouter(app)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/evaluate", bytes.NewReader(submitBody("http://target", "", 1))))
	var submitted struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/evaluate/"+submitted.JobID+"/results", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status code: got %d, want 400", rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "invalid_state" {
		t.Fatalf("unexpected error code: %q", resp["error"])
	}

	close(blocked.block)
	svc.Wait()
}

func TestEvaluateStatus_FailedJob(t *testing.T) {
	app, svc := newTestApp(t, &fakeRunner{err: errors.New("target unreachable: connection refused")})
	router := testRouter(app)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/evaluate", bytes.NewReader(submitBody("http://target", "", 1))))
	var submitted struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	svc.Wait()

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/evaluate/"+submitted.JobID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}
	var status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != "failed" {
		t.Fatalf("unexpected status: %q", status.Status)
	}
	if !strings.Contains(status.Error, "connection refused") {
		t.Fatalf("expected runner error surfaced, got %q", status.Error)
	}
}

func TestScorersList(t *testing.T) {
	app, _ := newTestApp(t, &fakeRunner{})
	router := testRouter(app)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/scorers", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}

	var scorers []domain.Scorer
	if err := json.NewDecoder(rr.Body).Decode(&scorers); err != nil {
		t.Fatalf("decode scorers: %v", err)
	}
	if len(scorers) != 6 {
		t.Fatalf("expected 6 scorers, got %d", len(scorers))
	}
	var sum float64
	for _, s := range scorers {
		sum += s.Weight
	}
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("scorer weights should sum to 1, got %v", sum)
	}
}

func TestJobsList(t *testing.T) {
	app, svc := newTestApp(t, &fakeRunner{})
	router := testRouter(app)

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("POST", "/evaluate", bytes.NewReader(submitBody("http://target", "", 1))))
		if rr.Code != http.StatusAccepted {
			t.Fatalf("submit %d: unexpected status code %d", i, rr.Code)
		}
	}
	svc.Wait()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/jobs", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}

	var payload struct {
		Total int              `json:"total"`
		Jobs  []map[string]any `json:"jobs"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Total != 3 || len(payload.Jobs) != 3 {
		t.Fatalf("expected 3 jobs, got total=%d len=%d", payload.Total, len(payload.Jobs))
	}
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, &fakeRunner{})
	router := testRouter(app)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Fatalf("unexpected status: %q", resp["status"])
	}
	if resp["version"] != "test" {
		t.Fatalf("unexpected version: %q", resp["version"])
	}
}
