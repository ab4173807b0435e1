// Package store persists applicant rows in Postgres and owns every SQL
// statement in the service. All statements are parameterized; record
// text never reaches the database as SQL.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/gradcafe-etl/internal/gradcafe"
)

// applicantsSchema is the durable contract other components rely on.
// url is the natural key; score columns are nullable REAL coerced from
// the parser's literal text at load time.
const applicantsSchema = `
CREATE TABLE IF NOT EXISTS applicants (
	p_id SERIAL PRIMARY KEY,
	program TEXT,
	comments TEXT,
	date_added DATE,
	url TEXT UNIQUE,
	status TEXT,
	term TEXT,
	us_or_international TEXT,
	gpa REAL,
	gre REAL,
	gre_v REAL,
	gre_q REAL,
	gre_aw REAL,
	degree TEXT,
	standardized_program TEXT,
	standardized_university TEXT
)`

// DB is the pool surface the store needs. pgxpool.Pool satisfies it in
// production and pgxmock stands in for tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// querier is the per-statement surface shared by the pool and an open
// transaction, so the same SQL runs inside or outside a run transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// ApplicantStore is the Postgres-backed loader, cleanup pass, and
// reporting reader for applicant rows.
type ApplicantStore struct {
	db DB
}

// New connects a pool and wraps it in an ApplicantStore.
func New(ctx context.Context, cfg Config) (*ApplicantStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ApplicantStore{db: pool}, nil
}

// NewWithDB constructs a store from an existing pool, primarily for tests.
func NewWithDB(db DB) (*ApplicantStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &ApplicantStore{db: db}, nil
}

// Close releases the underlying pool.
func (s *ApplicantStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}

// EnsureSchema creates the applicants table when absent. Non-destructive:
// existing data is never dropped.
func (s *ApplicantStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, applicantsSchema); err != nil {
		return fmt.Errorf("create applicants table: %w", err)
	}
	return nil
}

// Begin opens the transaction that spans one crawl run. Every insert and
// both cleanup corrections run inside it; commit happens only after the
// whole run succeeds, so a failed run leaves the store untouched.
func (s *ApplicantStore) Begin(ctx context.Context) (gradcafe.RunTx, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin run transaction: %w", err)
	}
	return &runTx{tx: tx}, nil
}

// runTx adapts a pgx transaction to the orchestrator's RunTx port.
type runTx struct {
	tx pgx.Tx
}

func (r *runTx) Insert(ctx context.Context, rec gradcafe.SurveyRecord, stdProgram, stdUniversity string) (bool, error) {
	return insertApplicant(ctx, r.tx, rec, stdProgram, stdUniversity)
}

func (r *runTx) FixGREAW(ctx context.Context) (int64, error) {
	return fixGREAW(ctx, r.tx)
}

func (r *runTx) FixCampusNames(ctx context.Context) (int64, error) {
	return fixCampusNames(ctx, r.tx)
}

func (r *runTx) Commit(ctx context.Context) error {
	if err := r.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run transaction: %w", err)
	}
	return nil
}

func (r *runTx) Rollback(ctx context.Context) error {
	if err := r.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("rollback run transaction: %w", err)
	}
	return nil
}
