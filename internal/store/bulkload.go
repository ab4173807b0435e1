package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/gradcafe-etl/internal/gradcafe"
)

// bulkBatchSize bounds a single batch round-trip. Survey exports run to
// hundreds of thousands of rows; sending them one batch at a time keeps
// memory flat.
const bulkBatchSize = 500

// LoadJSON bulk-loads a JSON array of survey records, such as the output
// of the scrape-only CLI. The same url conflict clause applies, so
// re-loading a file is safe. standardizer may be nil, in which case the
// standardized columns load empty and a later cleanup or crawl fills them.
func (s *ApplicantStore) LoadJSON(ctx context.Context, r io.Reader, standardizer gradcafe.Standardizer) (total, inserted int64, err error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return 0, 0, fmt.Errorf("read json: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return 0, 0, errors.New("expected a json array of records")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin load transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	batch := &pgx.Batch{}
	for dec.More() {
		var rec gradcafe.SurveyRecord
		if err = dec.Decode(&rec); err != nil {
			return total, inserted, fmt.Errorf("decode record %d: %w", total+1, err)
		}
		if rec.URL == "" {
			continue
		}
		total++

		stdProgram, stdUniversity := "", ""
		if standardizer != nil {
			stdProgram, stdUniversity = standardizer.Standardize(ctx, rec.Program)
		}
		queueInsert(batch, rec, stdProgram, stdUniversity)

		if batch.Len() >= bulkBatchSize {
			var n int64
			if n, err = flushBatch(ctx, tx, batch); err != nil {
				return total, inserted, err
			}
			inserted += n
			batch = &pgx.Batch{}
		}
	}
	if batch.Len() > 0 {
		var n int64
		if n, err = flushBatch(ctx, tx, batch); err != nil {
			return total, inserted, err
		}
		inserted += n
	}

	if err = tx.Commit(ctx); err != nil {
		return total, inserted, fmt.Errorf("commit load transaction: %w", err)
	}
	return total, inserted, nil
}

func queueInsert(batch *pgx.Batch, rec gradcafe.SurveyRecord, stdProgram, stdUniversity string) {
	batch.Queue(insertApplicantSQL,
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
}

func flushBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) (int64, error) {
	results := tx.SendBatch(ctx, batch)
	var inserted int64
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return inserted, fmt.Errorf("batch insert %d: %w", i, err)
		}
		inserted += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return inserted, fmt.Errorf("close batch: %w", err)
	}
	return inserted, nil
}
