package gradcafe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRobotsGateDisallowedPath(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprintln(w, "User-agent: *\nDisallow: /survey/\nCrawl-delay: 3")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gate := NewRobotsGate(true, "gradcafe-etl-bot/0.1", zap.NewNop())
	assert.False(t, gate.Allowed(ctx, srv.URL+"/survey/"))
	assert.False(t, gate.Allowed(ctx, srv.URL+"/survey/?page=2"))
	assert.True(t, gate.Allowed(ctx, srv.URL+"/about"))
	assert.Equal(t, 3*time.Second, gate.CrawlDelay(time.Second))
}

func TestRobotsGateAllowsOnFetchFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	// Point at a closed port so the robots fetch fails outright.
	srv.Close()

	gate := NewRobotsGate(true, "gradcafe-etl-bot/0.1", zap.NewNop())
	assert.True(t, gate.Allowed(ctx, srv.URL+"/survey/"))
	// Without robots data the caller's delay stands.
	assert.Equal(t, 2*time.Second, gate.CrawlDelay(2*time.Second))
}

func TestRobotsGateCachesAcrossCalls(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fetches++
			fmt.Fprintln(w, "User-agent: *\nAllow: /")
		}
	}))
	defer srv.Close()

	gate := NewRobotsGate(true, "gradcafe-etl-bot/0.1", zap.NewNop())
	for i := 0; i < 5; i++ {
		require.True(t, gate.Allowed(ctx, srv.URL+"/survey/"))
	}
	assert.Equal(t, 1, fetches)
}

func TestAllowAllGate(t *testing.T) {
	t.Parallel()

	gate := NewRobotsGate(false, "gradcafe-etl-bot/0.1", zap.NewNop())
	assert.True(t, gate.Allowed(context.Background(), "https://example.com/anything"))
	assert.Equal(t, time.Second, gate.CrawlDelay(time.Second))
}
