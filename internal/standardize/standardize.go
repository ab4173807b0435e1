// Package standardize maps free-text program/university strings to
// canonical names via an LLM primary with rule-based fallback, plus
// fuzzy matching against curated reference lists.
package standardize

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Primary is the first transformation attempted for each record. Any
// error degrades to the rule-based splitter.
type Primary interface {
	Standardize(ctx context.Context, program string) (stdProgram, stdUniversity string, err error)
}

// Thresholds for accepting a fuzzy canonical match. Below the cutoff the
// rule-based candidate is kept to avoid false canonicalization.
const (
	programMatchCutoff    = 0.90
	universityMatchCutoff = 0.92
)

// Chain composes the standardization stages. It implements the
// orchestrator's Standardizer port and never returns an error: total
// failure yields empty strings, since standardized names are an
// enrichment, not a requirement for row acceptance.
type Chain struct {
	primary Primary
	canon   *CanonicalSet
	logger  *zap.Logger
}

// NewChain builds a Chain. primary may be nil, in which case the
// rule-based splitter is the first stage.
func NewChain(primary Primary, canon *CanonicalSet, logger *zap.Logger) *Chain {
	if canon == nil {
		canon = DefaultCanonicalSet()
	}
	return &Chain{primary: primary, canon: canon, logger: logger}
}

// Standardize runs the fallback chain over the combined program text.
func (c *Chain) Standardize(ctx context.Context, program string) (string, string) {
	if strings.TrimSpace(program) == "" {
		return "", ""
	}

	stdProgram, stdUniversity := "", ""
	if c.primary != nil {
		var err error
		stdProgram, stdUniversity, err = c.primary.Standardize(ctx, program)
		if err != nil {
			c.logger.Debug("primary standardizer failed; using rule-based split",
				zap.String("program", program), zap.Error(err))
			stdProgram, stdUniversity = "", ""
		}
	}
	if stdProgram == "" && stdUniversity == "" {
		stdProgram, stdUniversity = splitProgram(program)
	}

	return c.normalizeProgram(stdProgram), c.normalizeUniversity(stdUniversity)
}

func (c *Chain) normalizeProgram(program string) string {
	p := strings.TrimSpace(program)
	if p == "" {
		return ""
	}
	if fixed, ok := commonProgramFixes[p]; ok {
		p = fixed
	}
	p = titleCaser.String(p)
	for _, canon := range c.canon.Programs {
		if p == canon {
			return p
		}
	}
	if match := bestMatch(p, c.canon.Programs, programMatchCutoff); match != "" {
		return match
	}
	return p
}

func (c *Chain) normalizeUniversity(university string) string {
	u := strings.TrimSpace(university)
	if u == "" {
		return ""
	}
	u = expandUniversityAbbrev(u)
	u = strings.TrimSpace(trailingParenRe.ReplaceAllString(u, ""))
	u = titleWithLowerOf(u)

	lower := strings.ToLower(u)
	if strings.Contains(lower, "california") || strings.HasPrefix(lower, "uc") {
		if campus, ok := UCCampus(u); ok {
			return campus
		}
	}

	for _, canon := range c.canon.Universities {
		if u == canon {
			return u
		}
	}
	if match := bestMatch(u, c.canon.Universities, universityMatchCutoff); match != "" {
		return match
	}
	return u
}
