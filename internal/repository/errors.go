package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedStatus is returned when a page answers with anything but 200.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	// ErrNavigationFailed is returned when the browser could not load a page.
	ErrNavigationFailed = errors.New("navigation failed")
	// ErrCrawlTimeout is returned when a page did not load or settle in time.
	ErrCrawlTimeout = errors.New("page load timed out")
)

// StatusError reports a page that loaded with a non-success status code.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: received status code %d", e.URL, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// IsTransportError reports whether err means a page could not be fetched
// successfully, as opposed to a local failure.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrUnexpectedStatus) ||
		errors.Is(err, ErrNavigationFailed) ||
		errors.Is(err, ErrCrawlTimeout)
}
