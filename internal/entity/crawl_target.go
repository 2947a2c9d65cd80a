package entity

import (
	"path/filepath"
	"time"
)

// CrawlTarget is the film listing to crawl and where its reviews end up.
// It is built once at startup and never mutated.
type CrawlTarget struct {
	BaseURL  string
	DestDir  string
	DestFile string
}

// NewCrawlTarget creates a CrawlTarget.
func NewCrawlTarget(baseURL, destDir, destFile string) CrawlTarget {
	return CrawlTarget{BaseURL: baseURL, DestDir: destDir, DestFile: destFile}
}

// Destination returns the path of the output file.
func (t CrawlTarget) Destination() string {
	return filepath.Join(t.DestDir, t.DestFile)
}

// WaitPolicy describes when a page counts as settled: no more than
// MaxInflight requests outstanding for at least Quiet.
type WaitPolicy struct {
	MaxInflight int
	Quiet       time.Duration
}

// DefaultWaitPolicy mirrors the usual "network almost idle" heuristic.
func DefaultWaitPolicy() WaitPolicy {
	return WaitPolicy{MaxInflight: 2, Quiet: 500 * time.Millisecond}
}
