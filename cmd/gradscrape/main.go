// Package main is the one-shot CLI for scraping, bulk loading, and cleanup.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/gradcafe-etl/internal/config"
	"github.com/JakeFAU/gradcafe-etl/internal/gradcafe"
	"github.com/JakeFAU/gradcafe-etl/internal/logging"
	"github.com/JakeFAU/gradcafe-etl/internal/store"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "Path to config file")
		scrape  = flag.Bool("scrape", false, "Scrape survey pages and write records as JSON")
		pages   = flag.Int("pages", 1, "Number of pages to scrape (0 = all)")
		out     = flag.String("out", "", "Output file for -scrape (default stdout)")
		load    = flag.String("load", "", "Bulk-load a JSON records file into the database")
		cleanup = flag.Bool("cleanup", false, "Run the data corrections and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, flush, err := logging.Setup(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *scrape:
		err = runScrape(ctx, cfg, logger, *pages, *out)
	case *load != "":
		err = runLoad(ctx, cfg, logger, *load)
	case *cleanup:
		err = runCleanup(ctx, cfg, logger)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("command failed", zap.Error(err))
	}
}

// runScrape fetches survey pages and writes the parsed records as an
// indented JSON array, without touching the database.
func runScrape(ctx context.Context, cfg config.Config, logger *zap.Logger, pages int, out string) error {
	gate := gradcafe.NewRobotsGate(cfg.Crawler.RespectRobots, cfg.Crawler.UserAgent, logger.Named("robots"))
	fetcher := gradcafe.NewCollyFetcher(gradcafe.FetcherConfig{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})

	if !gate.Allowed(ctx, gradcafe.BaseURL) {
		return gradcafe.ErrPolicyDisallowed
	}
	delay := gate.CrawlDelay(cfg.CrawlDelay())

	var records []gradcafe.SurveyRecord
	total := 0
	for page := 1; pages <= 0 || page <= pages; page++ {
		pageURL := gradcafe.BaseURL
		if page > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			pageURL = fmt.Sprintf("%s?page=%d", gradcafe.BaseURL, page)
		}
		html, err := fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return err
		}
		recs, err := gradcafe.ParseSurvey(html)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			break
		}
		records = append(records, recs...)
		total = page
		if pages <= 0 && page >= gradcafe.MaxPages(html) {
			break
		}
	}
	logger.Info("scrape complete", zap.Int("pages", total), zap.Int("records", len(records)))

	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return nil
}

func runLoad(ctx context.Context, cfg config.Config, logger *zap.Logger, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open records file: %w", err)
	}
	defer f.Close()

	applicants, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer applicants.Close()

	total, inserted, err := applicants.LoadJSON(ctx, f, nil)
	if err != nil {
		return err
	}
	logger.Info("bulk load complete", zap.Int64("total", total), zap.Int64("inserted", inserted))
	return nil
}

func runCleanup(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	applicants, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer applicants.Close()

	greAW, campus, err := applicants.Cleanup(ctx)
	if err != nil {
		return err
	}
	logger.Info("cleanup complete", zap.Int64("gre_aw", greAW), zap.Int64("campus", campus))
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (*store.ApplicantStore, error) {
	applicants, err := store.New(ctx, store.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        int32(cfg.DB.MaxConns),
		MinConns:        int32(cfg.DB.MinConns),
		MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeMin) * time.Minute,
	})
	if err != nil {
		return nil, err
	}
	if err := applicants.EnsureSchema(ctx); err != nil {
		applicants.Close()
		return nil, err
	}
	return applicants, nil
}
