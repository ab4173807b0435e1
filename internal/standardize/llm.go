package standardize

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

const systemPrompt = `You are a data cleaning assistant. Standardize degree program and university names.

Rules:
- Input provides a single string under key "program" that may contain both program and university.
- Split into (program name, university name).
- Trim extra spaces and commas.
- Expand obvious abbreviations (e.g., "McG" -> "McGill University", "UBC" -> "University of British Columbia").
- Use Title Case for program; use official capitalization for university names (e.g., "University of X").
- If university cannot be inferred, return "Unknown".

Return JSON ONLY with keys: standardized_program, standardized_university`

var fewShots = []struct {
	in, program, university string
}{
	{"Information Studies, McGill University", "Information Studies", "McGill University"},
	{"Information, McG", "Information Studies", "McGill University"},
	{"Mathematics, University Of British Columbia", "Mathematics", "University of British Columbia"},
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*?\}`)

// LLMStandardizer asks a language model to split and normalize the
// combined program text. The model is an interface value so tests inject
// a fake; real deployments pass an openai- or ollama-backed llms.Model.
type LLMStandardizer struct {
	model   llms.Model
	timeout time.Duration
}

// NewLLMStandardizer wraps the model with a per-call timeout.
func NewLLMStandardizer(model llms.Model, timeout time.Duration) *LLMStandardizer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &LLMStandardizer{model: model, timeout: timeout}
}

type llmResult struct {
	Program    string `json:"standardized_program"`
	University string `json:"standardized_university"`
}

// Standardize returns the model's split of the program text. Any
// failure, including malformed output, is an error for the fallback
// chain to absorb.
func (s *LLMStandardizer) Standardize(ctx context.Context, program string) (string, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := llms.GenerateFromSinglePrompt(callCtx, s.model, s.buildPrompt(program),
		llms.WithTemperature(0),
		llms.WithMaxTokens(128),
	)
	if err != nil {
		return "", "", fmt.Errorf("llm generate: %w", err)
	}
	return parseLLMOutput(out)
}

func (s *LLMStandardizer) buildPrompt(program string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n")
	for _, shot := range fewShots {
		fmt.Fprintf(&b, "Input: {\"program\": %q}\n", shot.in)
		fmt.Fprintf(&b, "Output: {\"standardized_program\": %q, \"standardized_university\": %q}\n",
			shot.program, shot.university)
	}
	fmt.Fprintf(&b, "Input: {\"program\": %q}\nOutput:", program)
	return b.String()
}

func parseLLMOutput(out string) (string, string, error) {
	raw := jsonObjectRe.FindString(out)
	if raw == "" {
		raw = out
	}
	var res llmResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return "", "", fmt.Errorf("decode llm output: %w", err)
	}
	return strings.TrimSpace(res.Program), strings.TrimSpace(res.University), nil
}
