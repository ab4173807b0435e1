package standardize

import (
	"bufio"
	_ "embed"
	"io"
	"strings"

	"github.com/antzucaro/matchr"
)

//go:embed canon_universities.txt
var canonUniversitiesRaw string

//go:embed canon_programs.txt
var canonProgramsRaw string

// CanonicalSet holds the curated program and institution names used as
// fuzzy-match targets. Loaded once, read-only for the process lifetime.
type CanonicalSet struct {
	Programs     []string
	Universities []string
}

// DefaultCanonicalSet returns the embedded reference lists.
func DefaultCanonicalSet() *CanonicalSet {
	return &CanonicalSet{
		Programs:     readLines(strings.NewReader(canonProgramsRaw)),
		Universities: readLines(strings.NewReader(canonUniversitiesRaw)),
	}
}

// LoadCanonicalSet reads newline-delimited program and university lists.
func LoadCanonicalSet(programs, universities io.Reader) *CanonicalSet {
	return &CanonicalSet{
		Programs:     readLines(programs),
		Universities: readLines(universities),
	}
}

func readLines(r io.Reader) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// bestMatch fuzzy-matches name against candidates using Jaro-Winkler
// similarity. Below the cutoff it returns "", keeping the caller's
// candidate instead of forcing a canonical name onto a poor match.
func bestMatch(name string, candidates []string, cutoff float64) string {
	if name == "" {
		return ""
	}
	best, bestScore := "", 0.0
	for _, candidate := range candidates {
		score := matchr.JaroWinkler(strings.ToLower(name), strings.ToLower(candidate), false)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}
	if bestScore < cutoff {
		return ""
	}
	return best
}
