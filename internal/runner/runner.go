// Package runner invokes the external evaluation runner that performs the
// actual scoring against a target endpoint. The service treats the runner as
// a black box: questions go in as a YAML dataset, a JSON report comes out,
// progress events stream over stdout while it works.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"evalserver/internal/domain"
)

// Input describes one evaluation run.
type Input struct {
	JobID     string
	TargetURL string
	Questions []domain.Question
	Scorers   []domain.Scorer

	// OnProgress is invoked for each progress event emitted by the runner.
	// Optional; counters are cumulative.
	OnProgress func(questionsCompleted, unitsCompleted int)
}

// Output is the parsed outcome of a successful run.
type Output struct {
	QuestionResults []domain.QuestionResult
	OverallScore    float64
	ReportJSONPath  string
	ReportHTMLPath  string
}

// Runner executes one evaluation run to completion.
type Runner interface {
	Run(ctx context.Context, in Input) (*Output, error)
}

// CLIRunner shells out to the evaluation runner binary. One invocation per
// job; the per-job report directory is created under OutputDir.
type CLIRunner struct {
	Bin               string
	ConfigPath        string
	OutputDir         string
	AuthToken         string
	OpenAIEndpoint    string
	OpenAIKey         string
	OpenAIModel       string
	ScorerTemperature float64
	Logger            zerolog.Logger
}

// progressEvent is the line format the runner prints on stdout as it works.
type progressEvent struct {
	Event              string `json:"event"`
	QuestionsCompleted int    `json:"questions_completed"`
	UnitsCompleted     int    `json:"scorers_completed"`
}

// Run writes the dataset, executes the runner binary and parses the report it
// leaves behind. The temp dataset file is always removed.
func (r *CLIRunner) Run(ctx context.Context, in Input) (*Output, error) {
	datasetPath, err := writeDataset(in.Questions)
	if err != nil {
		return nil, fmt.Errorf("write dataset: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(datasetPath); rmErr != nil {
			r.Logger.Warn().Err(rmErr).Str("job_id", in.JobID).Msg("runner: dataset cleanup failed")
		}
	}()

	outDir := filepath.Join(r.OutputDir, in.JobID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	args, err := r.buildArgs(in, datasetPath, outDir)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, r.Bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attach stdout: %w", err)
	}

	r.Logger.Info().Str("job_id", in.JobID).Str("bin", r.Bin).Msg("runner: starting evaluation")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start runner: %v", domain.ErrRunnerFailure, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		var ev progressEvent
		if err := json.Unmarshal([]byte(line), &ev); err == nil && ev.Event == "progress" {
			if in.OnProgress != nil {
				in.OnProgress(ev.QuestionsCompleted, ev.UnitsCompleted)
			}
			continue
		}
		r.Logger.Debug().Str("job_id", in.JobID).Str("line", line).Msg("runner output")
	}
	if scanErr := scanner.Err(); scanErr != nil {
		// The child may be blocked writing into the full pipe, so Wait
		// would never return. Kill it, drain what is left, then reap.
		r.Logger.Error().Err(scanErr).Str("job_id", in.JobID).Msg("runner: stdout unreadable, killing process")
		_ = cmd.Process.Kill()
		_, _ = io.Copy(io.Discard, stdout)
		_ = cmd.Wait()
		return nil, fmt.Errorf("%w: reading runner output: %v", domain.ErrRunnerFailure, scanErr)
	}

	if err := cmd.Wait(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrRunnerFailure, msg)
	}

	jsonPath, htmlPath := findReports(outDir)
	if jsonPath == "" {
		return nil, fmt.Errorf("%w: no JSON report in %s", domain.ErrRunnerFailure, outDir)
	}

	questionResults, overall, err := parseReport(jsonPath, in.Questions, in.Scorers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRunnerFailure, err)
	}

	return &Output{
		QuestionResults: questionResults,
		OverallScore:    overall,
		ReportJSONPath:  jsonPath,
		ReportHTMLPath:  htmlPath,
	}, nil
}

func (r *CLIRunner) buildArgs(in Input, datasetPath, outDir string) ([]string, error) {
	scorerJSON, err := marshalScorerConfig(in.Scorers)
	if err != nil {
		return nil, fmt.Errorf("marshal scorer config: %w", err)
	}
	return []string{
		"run",
		"--config", r.ConfigPath,
		"--dataset-path", datasetPath,
		"--scorer", scorerJSON,
		"--target-endpoint", in.TargetURL,
		"--out", outDir,
		"--auth-token", r.AuthToken,
		"--openai-chat-endpoint", r.OpenAIEndpoint,
		"--openai-api-key", r.OpenAIKey,
		"--openai-chat-model", r.OpenAIModel,
		"--scorer-temperature", strconv.FormatFloat(r.ScorerTemperature, 'f', -1, 64),
	}, nil
}

// marshalScorerConfig renders the scorer set in the runner's expected shape:
// the first scorer is the main one, the rest are auxiliary.
func marshalScorerConfig(scorers []domain.Scorer) (string, error) {
	type scorerEntry struct {
		Path      string  `json:"path"`
		Callable  string  `json:"callable,omitempty"`
		Weight    float64 `json:"weight"`
		Threshold float64 `json:"threshold"`
		Required  bool    `json:"required,omitempty"`
	}
	cfg := struct {
		Main      *scorerEntry  `json:"main,omitempty"`
		Auxiliary []scorerEntry `json:"auxiliary"`
	}{Auxiliary: []scorerEntry{}}

	for i, s := range scorers {
		entry := scorerEntry{
			Path:      s.Path,
			Callable:  s.Callable,
			Weight:    s.Weight,
			Threshold: s.Threshold,
			Required:  s.Required,
		}
		if i == 0 {
			main := entry
			cfg.Main = &main
			continue
		}
		cfg.Auxiliary = append(cfg.Auxiliary, entry)
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// findReports returns the first JSON and HTML artifacts in dir, if any.
func findReports(dir string) (jsonPath, htmlPath string) {
	if matches, _ := filepath.Glob(filepath.Join(dir, "*.json")); len(matches) > 0 {
		jsonPath = matches[0]
	}
	if matches, _ := filepath.Glob(filepath.Join(dir, "*.html")); len(matches) > 0 {
		htmlPath = matches[0]
	}
	return jsonPath, htmlPath
}
