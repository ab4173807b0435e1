package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/gradcafe-etl/internal/config"
	"github.com/JakeFAU/gradcafe-etl/internal/gradcafe"
	"github.com/JakeFAU/gradcafe-etl/internal/metrics"
	"github.com/JakeFAU/gradcafe-etl/internal/store"
)

type fakePuller struct {
	gotOpts gradcafe.CrawlOptions
	summary gradcafe.RunSummary
	err     error
}

func (p *fakePuller) Crawl(_ context.Context, opts gradcafe.CrawlOptions) (gradcafe.RunSummary, error) {
	p.gotOpts = opts
	return p.summary, p.err
}

type fakeReporter struct {
	report     *store.AnalysisReport
	analyzeErr error
	greAW      int64
	campus     int64
	cleanupErr error
	gotTerm    string
}

func (r *fakeReporter) Analyze(_ context.Context, term string) (*store.AnalysisReport, error) {
	r.gotTerm = term
	return r.report, r.analyzeErr
}

func (r *fakeReporter) Cleanup(context.Context) (int64, int64, error) {
	return r.greAW, r.campus, r.cleanupErr
}

func testConfig() config.Config {
	return config.Config{
		Server:  config.ServerConfig{Port: 8080, RequestTimeout: 5},
		Crawler: config.CrawlerConfig{DelaySeconds: 0, TimeoutSeconds: 10, DefaultPages: 100},
	}
}

func newTestServer(t *testing.T, puller Puller, reporter Reporter) *httptest.Server {
	t.Helper()
	metrics.Init()
	srv := httptest.NewServer(NewServer(puller, reporter, testConfig(), zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakePuller{}, &fakeReporter{})

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"), path)
		resp.Body.Close()
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakePuller{}, &fakeReporter{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPullSuccess(t *testing.T) {
	t.Parallel()
	puller := &fakePuller{summary: gradcafe.RunSummary{
		PagesFetched:    2,
		RecordsScraped:  40,
		RecordsInserted: 12,
		Message:         "Scraped 2 page(s), 40 entries checked, 12 new rows added.",
	}}
	srv := newTestServer(t, puller, &fakeReporter{})

	resp := postJSON(t, srv.URL+"/v1/pull", map[string]any{"max_pages": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary gradcafe.RunSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, 12, summary.RecordsInserted)
	assert.Equal(t, 2, puller.gotOpts.Pages)
	assert.True(t, puller.gotOpts.StopWhenCaughtUp)
}

func TestPullDefaultsWithoutBody(t *testing.T) {
	t.Parallel()
	puller := &fakePuller{}
	srv := newTestServer(t, puller, &fakeReporter{})

	resp := postJSON(t, srv.URL+"/v1/pull", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 100, puller.gotOpts.Pages)
}

func TestPullRejectsOutOfRangePages(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakePuller{}, &fakeReporter{})

	resp := postJSON(t, srv.URL+"/v1/pull", map[string]any{"max_pages": 501})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/v1/pull", map[string]any{"max_pages": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPullErrorStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"policy", gradcafe.ErrPolicyDisallowed, http.StatusForbidden},
		{"network", &gradcafe.NetworkError{URL: gradcafe.BaseURL, StatusCode: 503, Err: assert.AnError}, http.StatusBadGateway},
		{"store", &gradcafe.StoreError{Op: "insert", Err: assert.AnError}, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := newTestServer(t, &fakePuller{err: tc.err}, &fakeReporter{})
			resp := postJSON(t, srv.URL+"/v1/pull", nil)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestCleanupEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakePuller{}, &fakeReporter{greAW: 7, campus: 2})

	resp := postJSON(t, srv.URL+"/v1/cleanup", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]int64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(7), body["cleaned_gre_aw"])
	assert.Equal(t, int64(2), body["cleaned_campus"])
}

func TestAnalysisEndpoint(t *testing.T) {
	t.Parallel()
	reporter := &fakeReporter{report: &store.AnalysisReport{Term: "Fall 2027", TotalApplicants: 9}}
	srv := newTestServer(t, &fakePuller{}, reporter)

	resp, err := http.Get(srv.URL + "/v1/analysis?term=Fall+2027")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Fall 2027", reporter.gotTerm)

	var report store.AnalysisReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, int64(9), report.TotalApplicants)
}

func TestDefaultTerm(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Fall 2026", defaultTerm(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Fall 2027", defaultTerm(time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)))
}
