package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/gradcafe-etl/internal/gradcafe"
)

func newMockStore(t *testing.T) (*ApplicantStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s, err := NewWithDB(mock)
	require.NoError(t, err)
	return s, mock
}

// anyInsertArgs matches the 15 arguments of insertApplicantSQL without
// checking their values; pgxmock requires the argument count to match
// even when an expectation does not call WithArgs.
func anyInsertArgs() []any {
	args := make([]any, 15)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func sampleRecord() gradcafe.SurveyRecord {
	return gradcafe.SurveyRecord{
		Program:     "Computer Science, Stanford University",
		Degree:      "PhD",
		DateAdded:   "Added on March 15, 2026",
		Status:      "Accepted on 15 Mar",
		URL:         "https://www.thegradcafe.com/result/901234",
		GPA:         "GPA 3.75",
		GRE:         "GRE 325",
		GREV:        "GRE V 160",
		GREAW:       "GRE AW 4.5",
		Term:        "Fall 2026",
		Nationality: "International",
		Comments:    "Funding was mentioned in the letter",
	}
}

func TestInsertNewRow(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO applicants").
		WithArgs(
			"Computer Science, Stanford University",
			"Funding was mentioned in the letter",
			pgxmock.AnyArg(),
			"https://www.thegradcafe.com/result/901234",
			"Accepted on 15 Mar",
			"Fall 2026",
			"International",
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			"PhD",
			"Computer Science",
			"Stanford University",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	inserted, err := tx.Insert(ctx, sampleRecord(), "Computer Science", "Stanford University")
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDuplicateURL(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO applicants").
		WithArgs(anyInsertArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	inserted, err := tx.Insert(ctx, sampleRecord(), "", "")
	require.NoError(t, err)
	assert.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWithoutURL(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	rec := sampleRecord()
	rec.URL = ""
	_, err = tx.Insert(ctx, rec, "", "")
	require.Error(t, err)
}

func TestRunTxCommitAndRollback(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	mock.ExpectBegin()
	mock.ExpectRollback()
	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS applicants").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParseScore(t *testing.T) {
	t.Parallel()

	v := parseScore("GPA 3.75", "GPA")
	require.NotNil(t, v)
	assert.InDelta(t, 3.75, *v, 0.0001)

	v = parseScore("GRE V 160", "GRE V")
	require.NotNil(t, v)
	assert.InDelta(t, 160, *v, 0.0001)

	assert.Nil(t, parseScore("", "GPA"))
	assert.Nil(t, parseScore("GPA not reported", "GPA"))
	assert.Nil(t, parseScore("GPA", "GPA"))
}

func TestParseAddedDate(t *testing.T) {
	t.Parallel()

	d := parseAddedDate("Added on March 15, 2026")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), *d)

	assert.Nil(t, parseAddedDate(""))
	assert.Nil(t, parseAddedDate("Added on yesterday"))
}

func TestSanitizeStripsNULBytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "clean text", sanitize(" clean\x00 text "))
}
