package gradcafe

import (
	"errors"
	"fmt"
)

// ErrPolicyDisallowed is returned when robots.txt denies the crawl and the
// override flag is off. A run that fails this way touched nothing.
var ErrPolicyDisallowed = errors.New("crawling disallowed by robots.txt")

// NetworkError wraps a transport failure or non-success status for one page.
// Page 1 failures are fatal to the whole run; later pages abort the
// remainder and roll back the transaction.
type NetworkError struct {
	URL        string
	Page       int
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch page %d (%s): status %d", e.Page, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch page %d (%s): %v", e.Page, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StoreError marks a database failure outside the expected conflict path.
// Distinct from NetworkError so callers can decide retry behavior.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ParseError marks page structure the defensive parser could not degrade
// around. Treated like a network failure for that page.
type ParseError struct {
	Page int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse page %d: %v", e.Page, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
