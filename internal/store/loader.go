package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/gradcafe-etl/internal/gradcafe"
)

const insertApplicantSQL = `
INSERT INTO applicants (
	program, comments, date_added, url, status, term, us_or_international,
	gpa, gre, gre_v, gre_q, gre_aw,
	degree, standardized_program, standardized_university
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (url) DO NOTHING`

// insertApplicant writes one record, relying on the url unique constraint
// for dedup. It reports whether a row was actually written; conflicts are
// not errors, they are the normal signal that the crawl caught up with
// a previous run.
func insertApplicant(ctx context.Context, q querier, rec gradcafe.SurveyRecord, stdProgram, stdUniversity string) (bool, error) {
	if rec.URL == "" {
		// Without the natural key the conflict clause cannot protect us.
		return false, fmt.Errorf("record has no url: %q", rec.Program)
	}
	tag, err := q.Exec(ctx, insertApplicantSQL,
		sanitize(rec.Program),
		sanitize(rec.Comments),
		parseAddedDate(rec.DateAdded),
		rec.URL,
		sanitize(rec.Status),
		sanitize(rec.Term),
		sanitize(rec.Nationality),
		parseScore(rec.GPA, "GPA"),
		parseScore(rec.GRE, "GRE"),
		parseScore(rec.GREV, "GRE V"),
		parseScore(rec.GREQ, "GRE Q"),
		parseScore(rec.GREAW, "GRE AW"),
		sanitize(rec.Degree),
		sanitize(stdProgram),
		sanitize(stdUniversity),
	)
	if err != nil {
		return false, fmt.Errorf("insert applicant %s: %w", rec.URL, err)
	}
	return tag.RowsAffected() > 0, nil
}

// addedDateLayout matches the scraped "Added on January 2, 2006" text.
const addedDateLayout = "January 2, 2006"

// parseAddedDate coerces the scraped date text to a DATE value. Anything
// that does not match the site's format loads as NULL rather than failing
// the whole run.
func parseAddedDate(raw string) *time.Time {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Added on"))
	if raw == "" {
		return nil
	}
	t, err := time.Parse(addedDateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}

// parseScore turns a literal fragment like "GRE V 162" or "GPA 3.78" into
// a nullable numeric by stripping the label prefix. Empty or malformed
// text loads as NULL.
func parseScore(raw, prefix string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if len(raw) >= len(prefix) && strings.EqualFold(raw[:len(prefix)], prefix) {
		raw = strings.TrimSpace(raw[len(prefix):])
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

// sanitize strips NUL bytes, which Postgres TEXT rejects, and trims the
// result. Survey comments occasionally carry them.
func sanitize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}
