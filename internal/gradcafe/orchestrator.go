package gradcafe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Standardizer enriches a record's combined program text into canonical
// program and university names. Failures degrade to empty strings inside
// the implementation; the orchestrator never sees them.
type Standardizer interface {
	Standardize(ctx context.Context, program string) (stdProgram, stdUniversity string)
}

// Loader opens the single transaction that spans a crawl run.
type Loader interface {
	Begin(ctx context.Context) (RunTx, error)
}

// RunTx is the unit of work for one crawl run: every insert and both
// cleanup corrections happen inside it, and it commits only once the
// whole run has succeeded.
type RunTx interface {
	Insert(ctx context.Context, rec SurveyRecord, stdProgram, stdUniversity string) (bool, error)
	FixGREAW(ctx context.Context) (int64, error)
	FixCampusNames(ctx context.Context) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Orchestrator drives fetch-parse-load across survey pages, one page at a
// time, strictly in order, with a politeness delay between fetches.
type Orchestrator struct {
	fetcher      Fetcher
	gate         PolicyGate
	loader       Loader
	standardizer Standardizer
	logger       *zap.Logger

	baseURL string
	pause   func(ctx context.Context, d time.Duration)
}

// NewOrchestrator wires the pipeline components together. standardizer
// may be nil, in which case records are loaded without enrichment.
func NewOrchestrator(
	fetcher Fetcher,
	gate PolicyGate,
	loader Loader,
	standardizer Standardizer,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		fetcher:      fetcher,
		gate:         gate,
		loader:       loader,
		standardizer: standardizer,
		logger:       logger,
		baseURL:      BaseURL,
		pause:        timerPause,
	}
}

// WithBaseURL points the orchestrator at a different survey origin,
// primarily for tests against local fixtures.
func (o *Orchestrator) WithBaseURL(u string) *Orchestrator {
	o.baseURL = u
	return o
}

// Crawl runs the pipeline and reports what it attempted. On failure the
// summary still carries the accounting for pages fetched and records
// scraped and inserted so far, even though the transaction is rolled
// back: the caller is told what was attempted, not what persisted.
func (o *Orchestrator) Crawl(ctx context.Context, opts CrawlOptions) (RunSummary, error) {
	var summary RunSummary

	if !o.gate.Allowed(ctx, o.baseURL) {
		return summary, ErrPolicyDisallowed
	}
	delay := o.gate.CrawlDelay(opts.Delay)

	firstPage, err := o.fetchPage(ctx, 1)
	if err != nil {
		// Nothing is known about total pages; the run is over.
		return summary, err
	}
	totalPages := MaxPages(firstPage)
	pagesToFetch := clampPages(opts.Pages, totalPages)
	o.logger.Info("crawl starting",
		zap.Int("total_pages", totalPages),
		zap.Int("pages_to_fetch", pagesToFetch),
		zap.Duration("delay", delay),
	)

	tx, err := o.loader.Begin(ctx)
	if err != nil {
		return summary, &StoreError{Op: "begin", Err: err}
	}

	caughtUp, err := o.crawlPages(ctx, tx, firstPage, pagesToFetch, delay, opts.StopWhenCaughtUp, &summary)
	if err != nil {
		o.rollback(ctx, tx)
		return summary, err
	}

	if summary.RecordsInserted > 0 {
		if err := o.runCleanup(ctx, tx, &summary); err != nil {
			o.rollback(ctx, tx)
			return summary, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return summary, &StoreError{Op: "commit", Err: err}
	}

	summary.Message = buildRunMessage(summary, caughtUp)
	o.logger.Info("crawl finished",
		zap.Int("pages_fetched", summary.PagesFetched),
		zap.Int("scraped", summary.RecordsScraped),
		zap.Int("inserted", summary.RecordsInserted),
	)
	return summary, nil
}

func (o *Orchestrator) crawlPages(
	ctx context.Context,
	tx RunTx,
	firstPage string,
	pagesToFetch int,
	delay time.Duration,
	stopWhenCaughtUp bool,
	summary *RunSummary,
) (caughtUp bool, err error) {
	pageHTML := firstPage
	for page := 1; page <= pagesToFetch; page++ {
		if page > 1 {
			o.pause(ctx, delay)
			pageHTML, err = o.fetchPage(ctx, page)
			if err != nil {
				return false, err
			}
		}

		records, perr := ParseSurvey(pageHTML)
		if perr != nil {
			var pe *ParseError
			if errors.As(perr, &pe) {
				pe.Page = page
				return false, pe
			}
			return false, &ParseError{Page: page, Err: perr}
		}
		if len(records) == 0 {
			break
		}
		summary.PagesFetched++

		pageInserted, lerr := o.loadBatch(ctx, tx, records, summary)
		if lerr != nil {
			return false, lerr
		}

		if stopWhenCaughtUp && pageInserted == 0 {
			o.logger.Info("caught up", zap.Int("pages_fetched", summary.PagesFetched))
			return true, nil
		}
	}
	return false, nil
}

func (o *Orchestrator) loadBatch(ctx context.Context, tx RunTx, records []SurveyRecord, summary *RunSummary) (int, error) {
	pageInserted := 0
	for _, rec := range records {
		summary.RecordsScraped++
		if rec.URL == "" {
			// Without the natural key the row cannot be deduplicated;
			// one degenerate row must not abort the run.
			o.logger.Debug("skipping record without url", zap.String("program", rec.Program))
			continue
		}
		stdProgram, stdUniversity := "", ""
		if o.standardizer != nil {
			stdProgram, stdUniversity = o.standardizer.Standardize(ctx, rec.Program)
		}
		inserted, err := tx.Insert(ctx, rec, stdProgram, stdUniversity)
		if err != nil {
			return pageInserted, &StoreError{Op: "insert", Err: err}
		}
		if inserted {
			pageInserted++
			summary.RecordsInserted++
		}
	}
	return pageInserted, nil
}

func (o *Orchestrator) runCleanup(ctx context.Context, tx RunTx, summary *RunSummary) error {
	fixed, err := tx.FixGREAW(ctx)
	if err != nil {
		return &StoreError{Op: "cleanup gre_aw", Err: err}
	}
	summary.CleanedGREAW = fixed

	campus, err := tx.FixCampusNames(ctx)
	if err != nil {
		return &StoreError{Op: "cleanup campus", Err: err}
	}
	summary.CleanedCampus = campus
	return nil
}

func (o *Orchestrator) fetchPage(ctx context.Context, page int) (string, error) {
	pageURL := o.baseURL
	if page > 1 {
		pageURL = fmt.Sprintf("%s?page=%d", o.baseURL, page)
	}
	text, err := o.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		var ne *NetworkError
		if errors.As(err, &ne) {
			ne.Page = page
			return "", ne
		}
		return "", &NetworkError{URL: pageURL, Page: page, Err: err}
	}
	return text, nil
}

func (o *Orchestrator) rollback(ctx context.Context, tx RunTx) {
	if err := tx.Rollback(ctx); err != nil {
		o.logger.Warn("rollback failed", zap.Error(err))
	}
}

func clampPages(requested, total int) int {
	if requested <= 0 {
		// The "all" sentinel.
		return total
	}
	if requested > MaxRequestedPages {
		requested = MaxRequestedPages
	}
	if requested > total {
		return total
	}
	return requested
}

func buildRunMessage(s RunSummary, caughtUp bool) string {
	if s.RecordsInserted == 0 {
		return fmt.Sprintf("Already up to date. Checked %d page(s), no new entries found.", s.PagesFetched)
	}
	msg := fmt.Sprintf("Scraped %d page(s), %d entries checked, %d new rows added.",
		s.PagesFetched, s.RecordsScraped, s.RecordsInserted)
	if caughtUp {
		msg = "Caught up! " + msg
	}
	if s.CleanedGREAW > 0 || s.CleanedCampus > 0 {
		msg += fmt.Sprintf(" Cleaned: %d GRE AW, %d campus names.", s.CleanedGREAW, s.CleanedCampus)
	}
	return msg
}

func timerPause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
