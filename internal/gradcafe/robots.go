package gradcafe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// PolicyGate answers whether a URL may be fetched and how long to wait
// between fetches. Injectable so tests never hit the network.
type PolicyGate interface {
	Allowed(ctx context.Context, rawURL string) bool
	CrawlDelay(fallback time.Duration) time.Duration
}

// RobotsGate fetches and caches the origin's robots.txt for the process
// lifetime. Failure policy is explicit: when robots.txt cannot be fetched
// or parsed the gate allows the crawl and keeps the caller's fallback
// delay, logging the degradation rather than hiding it.
type RobotsGate struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger

	once sync.Once
	data *robotstxt.RobotsData
}

// NewRobotsGate builds a RobotsGate for the given agent. When respect is
// false an allow-all gate is returned instead.
func NewRobotsGate(respect bool, userAgent string, logger *zap.Logger) PolicyGate {
	if !respect {
		return &allowAllGate{}
	}
	return &RobotsGate{
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Allowed implements PolicyGate.
func (g *RobotsGate) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	data := g.load(ctx, parsed)
	if data == nil {
		return true
	}
	group := data.FindGroup(g.userAgent)
	if group == nil {
		return true
	}
	path := parsed.Path
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return group.Test(path)
}

// CrawlDelay returns the robots.txt crawl-delay for the agent when one is
// declared, otherwise the fallback.
func (g *RobotsGate) CrawlDelay(fallback time.Duration) time.Duration {
	if g.data == nil {
		return fallback
	}
	group := g.data.FindGroup(g.userAgent)
	if group == nil || group.CrawlDelay <= 0 {
		return fallback
	}
	return group.CrawlDelay
}

func (g *RobotsGate) load(ctx context.Context, parsed *url.URL) *robotstxt.RobotsData {
	g.once.Do(func() {
		data, err := g.fetch(ctx, parsed)
		if err != nil {
			g.logger.Warn("robots.txt unavailable; proceeding with fallback delay",
				zap.String("host", parsed.Host), zap.Error(err))
			return
		}
		g.data = data
	})
	return g.data
}

func (g *RobotsGate) fetch(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	robotsURL := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			g.logger.Debug("close robots body", zap.Error(cerr))
		}
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}

type allowAllGate struct{}

func (a *allowAllGate) Allowed(context.Context, string) bool { return true }

func (a *allowAllGate) CrawlDelay(fallback time.Duration) time.Duration { return fallback }
