// Package api exposes the HTTP interface for the ETL service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/gradcafe-etl/internal/config"
	"github.com/JakeFAU/gradcafe-etl/internal/gradcafe"
	"github.com/JakeFAU/gradcafe-etl/internal/metrics"
	"github.com/JakeFAU/gradcafe-etl/internal/store"
)

// Puller runs one crawl. Satisfied by gradcafe.Orchestrator.
type Puller interface {
	Crawl(ctx context.Context, opts gradcafe.CrawlOptions) (gradcafe.RunSummary, error)
}

// Reporter serves the read and maintenance endpoints. Satisfied by
// store.ApplicantStore.
type Reporter interface {
	Analyze(ctx context.Context, term string) (*store.AnalysisReport, error)
	Cleanup(ctx context.Context) (greAW, campus int64, err error)
}

// Server wires HTTP handlers to the pipeline and the store.
type Server struct {
	router   chi.Router
	puller   Puller
	reporter Reporter
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(puller Puller, reporter Reporter, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		puller:   puller,
		reporter: reporter,
		cfg:      cfg,
		logger:   logger,
	}
	metrics.Init()
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	// Crawl runs are long; the timeout covers the slowest allowed pull.
	r.Use(timeoutMiddleware(time.Duration(cfg.Server.RequestTimeout) * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/pull", s.pull)
		r.Post("/cleanup", s.cleanup)
		r.Get("/analysis", s.analysis)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

type pullRequest struct {
	MaxPages         *int  `json:"max_pages"`
	StopWhenCaughtUp *bool `json:"stop_when_caught_up"`
}

// pull triggers a synchronous crawl run and replies with its summary.
func (s *Server) pull(w http.ResponseWriter, r *http.Request) {
	var req pullRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	pages := s.cfg.Crawler.DefaultPages
	if req.MaxPages != nil {
		pages = *req.MaxPages
	}
	if pages < 0 || pages > gradcafe.MaxRequestedPages {
		writeError(s.logger, w, http.StatusBadRequest, "max_pages out of range")
		return
	}
	stopWhenCaughtUp := true
	if req.StopWhenCaughtUp != nil {
		stopWhenCaughtUp = *req.StopWhenCaughtUp
	}

	start := time.Now()
	summary, err := s.puller.Crawl(r.Context(), gradcafe.CrawlOptions{
		Pages:            pages,
		Delay:            s.cfg.CrawlDelay(),
		StopWhenCaughtUp: stopWhenCaughtUp,
	})
	if err != nil {
		status, label := pullErrorStatus(err)
		metrics.ObserveRun(label, summary.PagesFetched, summary.RecordsScraped, summary.RecordsInserted, time.Since(start))
		s.logger.Error("pull failed", zap.Error(err), zap.Int("pages_fetched", summary.PagesFetched))
		writeError(s.logger, w, status, err.Error())
		return
	}

	metrics.ObserveRun("success", summary.PagesFetched, summary.RecordsScraped, summary.RecordsInserted, time.Since(start))
	metrics.ObserveCleanup(summary.CleanedGREAW, summary.CleanedCampus)
	writeJSON(s.logger, w, http.StatusOK, summary)
}

func pullErrorStatus(err error) (int, string) {
	var ne *gradcafe.NetworkError
	switch {
	case errors.Is(err, gradcafe.ErrPolicyDisallowed):
		return http.StatusForbidden, "disallowed"
	case errors.As(err, &ne):
		return http.StatusBadGateway, "error"
	default:
		return http.StatusInternalServerError, "error"
	}
}

// cleanup runs both data corrections outside a crawl.
func (s *Server) cleanup(w http.ResponseWriter, r *http.Request) {
	greAW, campus, err := s.reporter.Cleanup(r.Context())
	if err != nil {
		s.logger.Error("cleanup failed", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.ObserveCleanup(greAW, campus)
	writeJSON(s.logger, w, http.StatusOK, map[string]int64{
		"cleaned_gre_aw": greAW,
		"cleaned_campus": campus,
	})
}

func (s *Server) analysis(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	if term == "" {
		term = defaultTerm(time.Now())
	}
	report, err := s.reporter.Analyze(r.Context(), term)
	if err != nil {
		s.logger.Error("analysis failed", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(s.logger, w, http.StatusOK, report)
}

// defaultTerm picks the admission cycle most applicants are posting
// about: fall of next year once autumn starts, fall of this year before.
func defaultTerm(now time.Time) string {
	year := now.Year()
	if now.Month() >= time.September {
		year++
	}
	return "Fall " + strconv.Itoa(year)
}
