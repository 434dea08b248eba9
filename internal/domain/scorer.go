package domain

// Scorer describes one scoring function applied to every question. Weights
// across a scorer set should sum to 1; the weighted sum of scores is the
// question's overall score.
type Scorer struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Threshold   float64 `json:"threshold,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Description string  `json:"description,omitempty"`

	// Path locates the scorer definition consumed by the evaluation runner:
	// a prompt template for LLM scorers, a callable for programmatic ones.
	Path     string `json:"-"`
	Callable string `json:"-"`
}

// DefaultScorers returns the standard scorer set. The set is configuration:
// the number of scorers drives the scoring-unit totals in job progress, so
// callers must use the same set for submission and execution.
func DefaultScorers() []Scorer {
	return []Scorer{
		{
			Name:        "numerical_accuracy",
			Weight:      0.3,
			Threshold:   1.0,
			Required:    true,
			Description: "Validates numerical precision and calculations",
			Path:        "scorers/llm/numerical_accuracy_scorer.yaml",
		},
		{
			Name:        "data_methodology",
			Weight:      0.3,
			Threshold:   1.0,
			Required:    true,
			Description: "Evaluates data source transparency and methodology",
			Path:        "scorers/llm/data_methodology_scorer.yaml",
		},
		{
			Name:        "agent_routing",
			Weight:      0.2,
			Threshold:   1.0,
			Required:    true,
			Description: "Assesses correct agent selection and routing",
			Path:        "scorers/programmatic/agent_routing_scorer.py",
			Callable:    "AgentRoutingScorer",
		},
		{
			Name:        "completeness",
			Weight:      0.1,
			Threshold:   0.8,
			Description: "Checks response completeness",
			Path:        "scorers/llm/completeness_scorer.yaml",
		},
		{
			Name:        "assumption_transparency",
			Weight:      0.05,
			Threshold:   0.8,
			Description: "Validates disclosure of assumptions and limitations",
			Path:        "scorers/llm/assumption_transparency_scorer.yaml",
		},
		{
			Name:        "error_handling",
			Weight:      0.05,
			Threshold:   0.8,
			Description: "Evaluates error handling and recovery",
			Path:        "scorers/llm/error_handling_scorer.yaml",
		},
	}
}
