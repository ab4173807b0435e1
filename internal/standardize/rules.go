package standardize

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.AmericanEnglish)

// abbrevUniversities expands institutional acronyms token-for-token.
var abbrevUniversities = []struct {
	pattern *regexp.Regexp
	full    string
}{
	{regexp.MustCompile(`(?i)^mcg(\.|ill)?$`), "McGill University"},
	{regexp.MustCompile(`(?i)^(ubc|u\.?b\.?c\.?)$`), "University of British Columbia"},
	{regexp.MustCompile(`(?i)^uoft$`), "University of Toronto"},
	{regexp.MustCompile(`(?i)^cuny$`), "The City University of New York"},
	{regexp.MustCompile(`(?i)^duke$`), "Duke University"},
	{regexp.MustCompile(`(?i)^mit$`), "Massachusetts Institute of Technology"},
	{regexp.MustCompile(`(?i)^cmu$`), "Carnegie Mellon University"},
	{regexp.MustCompile(`(?i)^jhu$`), "Johns Hopkins University"},
}

var commonProgramFixes = map[string]string{
	"Mathematic":   "Mathematics",
	"Info Studies": "Information Studies",
	"Comp Sci":     "Computer Science",
	"CS":           "Computer Science",
}

// ucCampusPatterns map campus evidence in free text to the specific
// University of California campus name.
var ucCampusPatterns = []struct {
	pattern *regexp.Regexp
	campus  string
}{
	{regexp.MustCompile(`(?i)\b(ucla|los\s*angeles)\b`), "University of California, Los Angeles"},
	{regexp.MustCompile(`(?i)\b(ucb|uc\s*berkeley|berkeley)\b`), "University of California, Berkeley"},
	{regexp.MustCompile(`(?i)\b(ucsd|san\s*diego)\b`), "University of California, San Diego"},
	{regexp.MustCompile(`(?i)\b(ucsb|santa\s*barbara)\b`), "University of California, Santa Barbara"},
	{regexp.MustCompile(`(?i)\b(uci|irvine)\b`), "University of California, Irvine"},
	{regexp.MustCompile(`(?i)\b(ucd|uc\s*davis|davis)\b`), "University of California, Davis"},
	{regexp.MustCompile(`(?i)\b(ucsc|santa\s*cruz)\b`), "University of California, Santa Cruz"},
	{regexp.MustCompile(`(?i)\b(ucr|riverside)\b`), "University of California, Riverside"},
	{regexp.MustCompile(`(?i)\b(ucm|merced)\b`), "University of California, Merced"},
	{regexp.MustCompile(`(?i)\b(ucsf|san\s*francisco)\b`), "University of California, San Francisco"},
}

var (
	whitespaceRe    = regexp.MustCompile(`\s+`)
	splitRe         = regexp.MustCompile(`,| at | @ `)
	trailingParenRe = regexp.MustCompile(`\s*\([A-Za-z]+\)\s*$`)
	lowercaseOfRe   = regexp.MustCompile(`\bOf\b`)
)

// UCCampus resolves campus evidence in text to a specific University of
// California campus name. The second return reports whether any campus
// signal was found.
func UCCampus(text string) (string, bool) {
	for _, p := range ucCampusPatterns {
		if p.pattern.MatchString(text) {
			return p.campus, true
		}
	}
	return "", false
}

// splitProgram is the rule-based fallback: split the combined
// "program, university" text on commas and at/@ connectors.
func splitProgram(text string) (program, university string) {
	s := strings.Trim(whitespaceRe.ReplaceAllString(text, " "), " ,")
	var parts []string
	for _, p := range splitRe.Split(s, -1) {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) > 0 {
		program = parts[0]
	}
	if len(parts) > 1 {
		university = parts[1]
	}
	return program, university
}

func expandUniversityAbbrev(name string) string {
	for _, a := range abbrevUniversities {
		if a.pattern.MatchString(name) {
			return a.full
		}
	}
	return name
}

func titleWithLowerOf(s string) string {
	return lowercaseOfRe.ReplaceAllString(titleCaser.String(s), "of")
}
