package standardize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// fakeModel returns a canned completion, or an error, for every call.
type fakeModel struct {
	out string
	err error
}

func (m *fakeModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.out}},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.out, nil
}

func TestLLMStandardizerParsesModelOutput(t *testing.T) {
	t.Parallel()

	model := &fakeModel{out: `Sure! {"standardized_program": "Computer Science", "standardized_university": "Stanford University"}`}
	s := NewLLMStandardizer(model, 0)

	program, university, err := s.Standardize(context.Background(), "CS, Stanford")
	require.NoError(t, err)
	assert.Equal(t, "Computer Science", program)
	assert.Equal(t, "Stanford University", university)
}

func TestLLMStandardizerMalformedOutput(t *testing.T) {
	t.Parallel()

	s := NewLLMStandardizer(&fakeModel{out: "I cannot help with that."}, 0)
	_, _, err := s.Standardize(context.Background(), "CS, Stanford")
	require.Error(t, err)
}

func TestChainUsesPrimary(t *testing.T) {
	t.Parallel()

	model := &fakeModel{out: `{"standardized_program": "Information Studies", "standardized_university": "McGill University"}`}
	chain := NewChain(NewLLMStandardizer(model, 0), nil, zap.NewNop())

	program, university := chain.Standardize(context.Background(), "Information, McG")
	assert.Equal(t, "Information Studies", program)
	assert.Equal(t, "McGill University", university)
}

func TestChainFallsBackOnPrimaryError(t *testing.T) {
	t.Parallel()

	model := &fakeModel{err: errors.New("rate limited")}
	chain := NewChain(NewLLMStandardizer(model, 0), nil, zap.NewNop())

	program, university := chain.Standardize(context.Background(), "computer science, stanford university")
	assert.Equal(t, "Computer Science", program)
	assert.Equal(t, "Stanford University", university)
}

func TestChainRuleOnly(t *testing.T) {
	t.Parallel()

	chain := NewChain(nil, nil, zap.NewNop())

	tests := []struct {
		in         string
		program    string
		university string
	}{
		{"Economics, Yale University", "Economics", "Yale University"},
		{"History at University Of Toronto", "History", "University of Toronto"},
		{"CS, MIT", "Computer Science", "Massachusetts Institute of Technology"},
		{"Linguistics, UC Berkeley", "Linguistics", "University of California, Berkeley"},
		{"Biology, UCLA", "Biology", "University of California, Los Angeles"},
	}
	for _, tc := range tests {
		program, university := chain.Standardize(context.Background(), tc.in)
		assert.Equal(t, tc.program, program, tc.in)
		assert.Equal(t, tc.university, university, tc.in)
	}
}

func TestChainEmptyInput(t *testing.T) {
	t.Parallel()

	chain := NewChain(nil, nil, zap.NewNop())
	program, university := chain.Standardize(context.Background(), "   ")
	assert.Empty(t, program)
	assert.Empty(t, university)
}

func TestChainFuzzyMatchesNearMisses(t *testing.T) {
	t.Parallel()

	chain := NewChain(nil, nil, zap.NewNop())
	program, university := chain.Standardize(context.Background(), "Computr Science, Stanford Universty")
	assert.Equal(t, "Computer Science", program)
	assert.Equal(t, "Stanford University", university)
}

func TestUCCampus(t *testing.T) {
	t.Parallel()

	campus, ok := UCCampus("Statistics, UC Davis")
	require.True(t, ok)
	assert.Equal(t, "University of California, Davis", campus)

	campus, ok = UCCampus("Anthropology, University of California, Santa Cruz")
	require.True(t, ok)
	assert.Equal(t, "University of California, Santa Cruz", campus)

	_, ok = UCCampus("Chemistry, University of California")
	assert.False(t, ok)
}

func TestDefaultCanonicalSet(t *testing.T) {
	t.Parallel()

	canon := DefaultCanonicalSet()
	assert.NotEmpty(t, canon.Programs)
	assert.NotEmpty(t, canon.Universities)
	assert.Contains(t, canon.Universities, "University of California, Berkeley")
}

func TestBestMatchCutoff(t *testing.T) {
	t.Parallel()

	candidates := []string{"Stanford University", "Harvard University"}
	assert.Equal(t, "Stanford University", bestMatch("stanford universty", candidates, 0.92))
	assert.Empty(t, bestMatch("Zanzibar Institute", candidates, 0.92))
	assert.Empty(t, bestMatch("", candidates, 0.92))
}
