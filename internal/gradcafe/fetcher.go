package gradcafe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

var errNoResponse = errors.New("no usable response")

// Fetcher performs one HTTP GET and returns decoded page text.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// CollyFetcher implements Fetcher with a Colly collector. Each fetch runs
// on a clone of the base collector so per-request state never leaks.
// Retry policy lives with the caller; a single failure surfaces as a
// NetworkError.
type CollyFetcher struct {
	base *colly.Collector
}

// FetcherConfig controls collector behavior.
type FetcherConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// NewCollyFetcher builds a CollyFetcher with the identifying User-Agent.
func NewCollyFetcher(cfg FetcherConfig) *CollyFetcher {
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	c.SetRequestTimeout(timeout)
	c.WithTransport(newHTTPTransport())
	return &CollyFetcher{base: c}
}

// Fetch executes a single GET and returns the body as text.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	collector := f.base.Clone()
	collector.AllowURLRevisit = true

	var (
		body      []byte
		status    int
		visitErr  error
		collected bool
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
		collected = true
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		visitErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return "", &NetworkError{URL: rawURL, Err: ctx.Err()}
	case err := <-done:
		if err != nil {
			return "", &NetworkError{URL: rawURL, StatusCode: status, Err: err}
		}
	}
	if visitErr != nil {
		return "", &NetworkError{URL: rawURL, StatusCode: status, Err: visitErr}
	}
	if !collected || status < 200 || status >= 300 {
		return "", &NetworkError{URL: rawURL, StatusCode: status, Err: errNoResponse}
	}
	return string(body), nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
