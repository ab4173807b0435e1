package store

import (
	"context"
	"fmt"
)

// NameCount pairs a standardized name with how many applicants carry it.
type NameCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// GroupRate is an acceptance rate for one slice of applicants.
type GroupRate struct {
	Group         string  `json:"group"`
	Total         int64   `json:"total"`
	AcceptancePct float64 `json:"acceptance_pct"`
}

// AnalysisReport answers the standing questions about the applicant pool.
// Averages are nil when no row contributes a value.
type AnalysisReport struct {
	Term             string      `json:"term"`
	TotalApplicants  int64       `json:"total_applicants"`
	TermApplicants   int64       `json:"term_applicants"`
	InternationalPct float64     `json:"international_pct"`
	AvgGPA           *float64    `json:"avg_gpa"`
	AvgGRE           *float64    `json:"avg_gre"`
	AvgGREV          *float64    `json:"avg_gre_v"`
	AvgGREAW         *float64    `json:"avg_gre_aw"`
	AmericanTermGPA  *float64    `json:"american_term_gpa"`
	TermAcceptPct    float64     `json:"term_accept_pct"`
	TermAcceptGPA    *float64    `json:"term_accept_gpa"`
	TopPrograms      []NameCount `json:"top_programs"`
	TopUniversities  []NameCount `json:"top_universities"`
	RateByDegree     []GroupRate `json:"rate_by_degree"`
	RateByOrigin     []GroupRate `json:"rate_by_origin"`
}

const analysisTopN = 10

// Analyze computes the report for one admissions term, e.g. "Fall 2026".
// Read-only; runs outside any crawl transaction.
func (s *ApplicantStore) Analyze(ctx context.Context, term string) (*AnalysisReport, error) {
	rep := &AnalysisReport{Term: term}

	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM applicants`,
	).Scan(&rep.TotalApplicants); err != nil {
		return nil, fmt.Errorf("count applicants: %w", err)
	}

	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM applicants WHERE term = $1`, term,
	).Scan(&rep.TermApplicants); err != nil {
		return nil, fmt.Errorf("count term applicants: %w", err)
	}

	if err := s.db.QueryRow(ctx, `
SELECT COALESCE(
	100.0 * COUNT(*) FILTER (WHERE us_or_international ILIKE 'international')
	/ NULLIF(COUNT(*) FILTER (WHERE us_or_international <> ''), 0), 0)::float8
FROM applicants`,
	).Scan(&rep.InternationalPct); err != nil {
		return nil, fmt.Errorf("international percentage: %w", err)
	}

	if err := s.db.QueryRow(ctx, `
SELECT AVG(gpa)::float8, AVG(gre)::float8, AVG(gre_v)::float8, AVG(gre_aw)::float8
FROM applicants`,
	).Scan(&rep.AvgGPA, &rep.AvgGRE, &rep.AvgGREV, &rep.AvgGREAW); err != nil {
		return nil, fmt.Errorf("score averages: %w", err)
	}

	if err := s.db.QueryRow(ctx, `
SELECT AVG(gpa)::float8
FROM applicants
WHERE term = $1 AND us_or_international ILIKE 'american'`, term,
	).Scan(&rep.AmericanTermGPA); err != nil {
		return nil, fmt.Errorf("american gpa: %w", err)
	}

	if err := s.db.QueryRow(ctx, `
SELECT COALESCE(
	100.0 * COUNT(*) FILTER (WHERE status ILIKE '%accepted%')
	/ NULLIF(COUNT(*), 0), 0)::float8
FROM applicants
WHERE term = $1`, term,
	).Scan(&rep.TermAcceptPct); err != nil {
		return nil, fmt.Errorf("term acceptance rate: %w", err)
	}

	if err := s.db.QueryRow(ctx, `
SELECT AVG(gpa)::float8
FROM applicants
WHERE term = $1 AND status ILIKE '%accepted%'`, term,
	).Scan(&rep.TermAcceptGPA); err != nil {
		return nil, fmt.Errorf("accepted gpa: %w", err)
	}

	var err error
	if rep.TopPrograms, err = s.topNames(ctx, "standardized_program"); err != nil {
		return nil, err
	}
	if rep.TopUniversities, err = s.topNames(ctx, "standardized_university"); err != nil {
		return nil, err
	}
	if rep.RateByDegree, err = s.groupRates(ctx, "degree"); err != nil {
		return nil, err
	}
	if rep.RateByOrigin, err = s.groupRates(ctx, "us_or_international"); err != nil {
		return nil, err
	}
	return rep, nil
}

// topNames and groupRates interpolate a column name, so both keep a
// closed allow-list; caller input never reaches them.
var analysisColumns = map[string]bool{
	"standardized_program":    true,
	"standardized_university": true,
	"degree":                  true,
	"us_or_international":     true,
}

func (s *ApplicantStore) topNames(ctx context.Context, column string) ([]NameCount, error) {
	if !analysisColumns[column] {
		return nil, fmt.Errorf("unexpected analysis column %q", column)
	}
	sql := fmt.Sprintf(`
SELECT %[1]s, COUNT(*)
FROM applicants
WHERE %[1]s <> ''
GROUP BY %[1]s
ORDER BY COUNT(*) DESC, %[1]s
LIMIT %[2]d`, column, analysisTopN)

	rows, err := s.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("top %s: %w", column, err)
	}
	defer rows.Close()

	var out []NameCount
	for rows.Next() {
		var nc NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, fmt.Errorf("scan top %s: %w", column, err)
		}
		out = append(out, nc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top %s: %w", column, err)
	}
	return out, nil
}

func (s *ApplicantStore) groupRates(ctx context.Context, column string) ([]GroupRate, error) {
	if !analysisColumns[column] {
		return nil, fmt.Errorf("unexpected analysis column %q", column)
	}
	sql := fmt.Sprintf(`
SELECT %[1]s, COUNT(*),
	COALESCE(100.0 * COUNT(*) FILTER (WHERE status ILIKE '%%accepted%%') / NULLIF(COUNT(*), 0), 0)::float8
FROM applicants
WHERE %[1]s <> ''
GROUP BY %[1]s
ORDER BY COUNT(*) DESC`, column)

	rows, err := s.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("rates by %s: %w", column, err)
	}
	defer rows.Close()

	var out []GroupRate
	for rows.Next() {
		var gr GroupRate
		if err := rows.Scan(&gr.Group, &gr.Total, &gr.AcceptancePct); err != nil {
			return nil, fmt.Errorf("scan rates by %s: %w", column, err)
		}
		out = append(out, gr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rates by %s: %w", column, err)
	}
	return out, nil
}
