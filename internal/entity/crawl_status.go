package entity

import "time"

const (
	StatusPending   = "pending"
	StatusCrawling  = "crawling"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// CrawlStatus is a point-in-time view of a running crawl.
type CrawlStatus struct {
	URL              string     `json:"url"`
	CurrentStatus    string     `json:"current_status"` // "pending", "crawling", "completed", "failed"
	CurrentPage      int        `json:"current_page"`
	PagesFetched     int        `json:"pages_fetched"`
	ReviewsCollected int        `json:"reviews_collected"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	FailureReason    string     `json:"failure_reason,omitempty"`
}

// CrawlReport summarises a finished run.
type CrawlReport struct {
	Target      CrawlTarget
	Pages       int
	Reviews     int
	Written     bool
	Destination string
	Duration    time.Duration
}
