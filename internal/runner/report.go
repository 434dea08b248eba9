package runner

import (
	"encoding/json"
	"fmt"
	"os"

	"evalserver/internal/domain"
)

// reportFile is the JSON report the runner writes to the output directory.
type reportFile struct {
	Questions []reportQuestion `json:"questions"`
}

type reportQuestion struct {
	Question            string                 `json:"question"`
	ActualResponse      string                 `json:"actual_response"`
	ActualAgent         string                 `json:"actual_agent"`
	ActualRoutingReason string                 `json:"actual_routing_reason"`
	Scores              map[string]reportScore `json:"scores"`
}

type reportScore struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// parseReport folds the runner's report into per-question weighted results.
// Report entries are matched to submitted questions by position; a scorer the
// report does not mention scores zero. The overall score is the mean of the
// per-question weighted sums.
func parseReport(path string, questions []domain.Question, scorers []domain.Scorer) ([]domain.QuestionResult, float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read report: %w", err)
	}
	var report reportFile
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, 0, fmt.Errorf("decode report: %w", err)
	}

	results := make([]domain.QuestionResult, 0, len(questions))
	var total float64
	for i, q := range questions {
		var reported reportQuestion
		if i < len(report.Questions) {
			reported = report.Questions[i]
		}

		qr := domain.QuestionResult{
			Question:            q.Question,
			ExpectedOutcome:     q.ExpectedOutcome,
			ActualResponse:      reported.ActualResponse,
			ActualAgent:         reported.ActualAgent,
			ActualRoutingReason: reported.ActualRoutingReason,
			ScorerResults:       make([]domain.ScorerResult, 0, len(scorers)),
		}
		for _, s := range scorers {
			score := reported.Scores[s.Name]
			weighted := score.Score * s.Weight
			qr.OverallScore += weighted
			qr.ScorerResults = append(qr.ScorerResults, domain.ScorerResult{
				ScorerName:    s.Name,
				Score:         score.Score,
				Weight:        s.Weight,
				WeightedScore: weighted,
				Rationale:     score.Rationale,
			})
		}
		total += qr.OverallScore
		results = append(results, qr)
	}

	var overall float64
	if len(results) > 0 {
		overall = total / float64(len(results))
	}
	return results, overall, nil
}
