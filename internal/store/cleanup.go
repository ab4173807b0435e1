package store

import (
	"context"
	"fmt"

	"github.com/JakeFAU/gradcafe-etl/internal/gradcafe"
	"github.com/JakeFAU/gradcafe-etl/internal/standardize"
)

// The GRE Analytical Writing section is scored 0-6. Anything above that
// is a scrape artifact (usually a quant score landing in the wrong
// column) and is nulled rather than guessed at.
const fixGREAWSQL = `UPDATE applicants SET gre_aw = NULL WHERE gre_aw > 6`

const selectGenericUCSQL = `
SELECT p_id, program, standardized_university
FROM applicants
WHERE standardized_university ILIKE '%university of california%'
   OR standardized_university ILIKE 'uc %'`

const updateCampusSQL = `UPDATE applicants SET standardized_university = $1 WHERE p_id = $2`

func fixGREAW(ctx context.Context, q querier) (int64, error) {
	tag, err := q.Exec(ctx, fixGREAWSQL)
	if err != nil {
		return 0, fmt.Errorf("null out-of-range gre_aw: %w", err)
	}
	return tag.RowsAffected(), nil
}

// fixCampusNames sharpens generic "University of California" rows to a
// specific campus when the original program text names one. Rows already
// carrying the right campus are left alone, so a second pass over the
// same data changes nothing.
func fixCampusNames(ctx context.Context, q querier) (int64, error) {
	rows, err := q.Query(ctx, selectGenericUCSQL)
	if err != nil {
		return 0, fmt.Errorf("select uc rows: %w", err)
	}

	type campusFix struct {
		id     int
		campus string
	}
	var fixes []campusFix
	for rows.Next() {
		var (
			id      int
			program string
			current string
		)
		if err := rows.Scan(&id, &program, &current); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan uc row: %w", err)
		}
		campus, ok := standardize.UCCampus(program)
		if !ok {
			continue
		}
		if campus == current {
			continue
		}
		fixes = append(fixes, campusFix{id: id, campus: campus})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate uc rows: %w", err)
	}

	var fixed int64
	for _, f := range fixes {
		if _, err := q.Exec(ctx, updateCampusSQL, f.campus, f.id); err != nil {
			return fixed, fmt.Errorf("update campus for p_id %d: %w", f.id, err)
		}
		fixed++
	}
	return fixed, nil
}

// Cleanup runs both data corrections in their own transaction, outside
// any crawl run. Both corrections are idempotent.
func (s *ApplicantStore) Cleanup(ctx context.Context) (greAW, campus int64, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin cleanup transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if greAW, err = fixGREAW(ctx, tx); err != nil {
		return 0, 0, err
	}
	if campus, err = fixCampusNames(ctx, tx); err != nil {
		return 0, 0, err
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit cleanup transaction: %w", err)
	}
	return greAW, campus, nil
}

var _ gradcafe.Loader = (*ApplicantStore)(nil)
