// Package hydrate fills evaluation dataset templates with live values. A
// template is a YAML list of test cases whose expected outcomes contain
// {{COLUMN|format}} placeholders backed by a SQL query; hydration runs each
// query and substitutes formatted results. This is an offline data-prep step
// with no runtime interaction with the evaluation service.
package hydrate

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// placeholderPattern matches {{COLUMN_NAME|format}} tokens.
var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\|(\w+)\}\}`)

// numberPrinter renders values with thousands separators.
var numberPrinter = message.NewPrinter(language.English)

// TemplateCase is one entry in a template file. SQLQuery is optional; cases
// without a query or without placeholders pass through untouched.
type TemplateCase struct {
	Question        string `yaml:"question"`
	ExpectedOutcome string `yaml:"expected_outcome"`
	SQLQuery        string `yaml:"sql_query,omitempty"`
}

// HydratedCase is the output shape: the query is stripped so hydrated files
// carry only what the evaluation runner consumes.
type HydratedCase struct {
	Question        string `yaml:"question"`
	ExpectedOutcome string `yaml:"expected_outcome"`
}

// Querier executes one lookup query and returns the first row as
// column-name -> value-string.
type Querier interface {
	QueryValues(ctx context.Context, query string) (map[string]string, error)
}

// Hydrator applies query results to template placeholders.
type Hydrator struct {
	DB     Querier
	Logger zerolog.Logger
}

// HydrateFile reads a template, hydrates every case and returns the results.
func (h *Hydrator) HydrateFile(ctx context.Context, templatePath string) ([]HydratedCase, error) {
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	var cases []TemplateCase
	if err := yaml.Unmarshal(raw, &cases); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}

	out := make([]HydratedCase, 0, len(cases))
	for i, tc := range cases {
		hydrated, err := h.hydrateCase(ctx, tc)
		if err != nil {
			return nil, fmt.Errorf("case %d (%q): %w", i+1, truncate(tc.Question, 50), err)
		}
		out = append(out, hydrated)
	}
	return out, nil
}

// WriteOutput serializes hydrated cases to path.
func WriteOutput(path string, cases []HydratedCase) error {
	raw, err := yaml.Marshal(cases)
	if err != nil {
		return fmt.Errorf("encode hydrated cases: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write hydrated file: %w", err)
	}
	return nil
}

func (h *Hydrator) hydrateCase(ctx context.Context, tc TemplateCase) (HydratedCase, error) {
	query := strings.TrimSpace(tc.SQLQuery)
	if query == "" || !strings.Contains(tc.ExpectedOutcome, "{{") {
		h.Logger.Debug().Str("question", truncate(tc.Question, 50)).Msg("hydrate: skipped, no placeholders or query")
		return HydratedCase{Question: tc.Question, ExpectedOutcome: tc.ExpectedOutcome}, nil
	}

	values, err := h.DB.QueryValues(ctx, query)
	if err != nil {
		return HydratedCase{}, fmt.Errorf("execute query: %w", err)
	}

	outcome := Substitute(tc.ExpectedOutcome, values, h.Logger)
	return HydratedCase{Question: tc.Question, ExpectedOutcome: outcome}, nil
}

// Substitute replaces every {{COLUMN|format}} in outcome with the formatted
// value from values. Unknown columns keep their placeholder so the gap is
// visible in the output.
func Substitute(outcome string, values map[string]string, logger zerolog.Logger) string {
	return placeholderPattern.ReplaceAllStringFunc(outcome, func(token string) string {
		parts := placeholderPattern.FindStringSubmatch(token)
		column, format := parts[1], parts[2]
		raw, ok := values[column]
		if !ok {
			logger.Warn().Str("column", column).Msg("hydrate: column missing from query result")
			return token
		}
		return FormatValue(raw, format)
	})
}

// FormatValue renders a raw value in the requested display format. Values
// that fail to parse are returned untouched.
func FormatValue(raw, format string) string {
	num, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return raw
	}
	switch format {
	case "currency":
		return numberPrinter.Sprintf("€%.2f", num)
	case "percentage":
		return fmt.Sprintf("%.1f%%", num)
	case "units":
		return numberPrinter.Sprintf("%d units", int64(num))
	case "number":
		return numberPrinter.Sprintf("%d", int64(num))
	default:
		return raw
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
