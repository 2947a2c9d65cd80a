package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// reviewPagePath is appended to a film's homepage to address listing page n.
const reviewPagePath = "/reviews/by/added/page/%d/"

// ReviewPageURL builds the URL of the n-th page of a film's review listing.
// A trailing slash on base is dropped so the path is not doubled.
func ReviewPageURL(base string, n int) string {
	return strings.TrimRight(base, "/") + fmt.Sprintf(reviewPagePath, n)
}

// ValidateTargetURL checks that raw is an absolute http(s) URL with a host.
func ValidateTargetURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}

// Hostname returns the lower-cased host of raw without port, or "" when raw
// does not parse.
func Hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
