// Package gradcafe implements the scrape-parse-normalize pipeline for the
// GradCafe admissions survey.
package gradcafe

import "time"

// BaseURL is the survey listing the pipeline targets.
const BaseURL = "https://www.thegradcafe.com/survey/"

// SiteOrigin is used to resolve relative result links.
const SiteOrigin = "https://www.thegradcafe.com"

// SurveyRecord is one parsed survey submission. Every field is always
// present; unreported values are empty strings, never missing keys, so
// downstream code does not special-case absence. Score fields keep the
// full matched fragment ("GPA 3.75", "GRE V 160") exactly as the site
// formatted it; numeric coercion happens at the loader boundary.
type SurveyRecord struct {
	Program     string `json:"program"`
	Degree      string `json:"degree"`
	DateAdded   string `json:"date_added"`
	Status      string `json:"status"`
	URL         string `json:"url"`
	GPA         string `json:"gpa"`
	GRE         string `json:"gre"`
	GREV        string `json:"gre_v"`
	GREQ        string `json:"gre_q"`
	GREAW       string `json:"gre_aw"`
	Term        string `json:"term"`
	Nationality string `json:"nationality"`
	Comments    string `json:"comments"`
}

// CrawlOptions are the per-run knobs accepted by the orchestrator.
type CrawlOptions struct {
	// Pages is the requested page count. Zero is the "all" sentinel;
	// anything else is clamped to [1, MaxRequestedPages].
	Pages int
	// Delay is the wait before every fetch after the first, used when
	// robots.txt declares no crawl-delay. A declared crawl-delay takes
	// its place, whether longer or shorter.
	Delay time.Duration
	// StopWhenCaughtUp ends the run as soon as an entire page turns
	// out to be duplicates.
	StopWhenCaughtUp bool
}

// MaxRequestedPages caps an explicitly requested page count. The zero
// "all" sentinel is not capped; it follows the site's advertised total.
const MaxRequestedPages = 500

// RunSummary reports what a crawl run attempted. When the run fails the
// counts describe work attempted before the abort, not what persisted:
// the transaction is rolled back as a whole.
type RunSummary struct {
	PagesFetched    int    `json:"pages_fetched"`
	RecordsScraped  int    `json:"scraped"`
	RecordsInserted int    `json:"inserted"`
	CleanedGREAW    int64  `json:"cleaned_gre_aw"`
	CleanedCampus   int64  `json:"cleaned_campus"`
	Message         string `json:"message"`
}
