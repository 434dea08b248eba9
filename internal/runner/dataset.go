package runner

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"evalserver/internal/domain"
)

// datasetEntry matches the dataset format the runner consumes: the expected
// outcome is carried as a JSON string inside the YAML document, the same
// shape the offline hydration tool produces.
type datasetEntry struct {
	Question        string `yaml:"question"`
	ExpectedOutcome string `yaml:"expected_outcome"`
}

// writeDataset serializes the questions to a temp YAML file and returns its
// path. The caller removes the file when the run finishes.
func writeDataset(questions []domain.Question) (string, error) {
	entries := make([]datasetEntry, 0, len(questions))
	for _, q := range questions {
		expected, err := json.MarshalIndent(q.ExpectedOutcome, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode expected outcome: %w", err)
		}
		entries = append(entries, datasetEntry{
			Question:        q.Question,
			ExpectedOutcome: string(expected),
		})
	}

	raw, err := yaml.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("encode dataset: %w", err)
	}

	f, err := os.CreateTemp("", "eval-dataset-*.yaml")
	if err != nil {
		return "", fmt.Errorf("create dataset file: %w", err)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write dataset file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close dataset file: %w", err)
	}
	return f.Name(), nil
}
