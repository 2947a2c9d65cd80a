package response

import (
	"time"

	"github.com/user/review-crawler/internal/entity"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// CrawlStatusResponse is a DTO for crawl status, mirroring entity.CrawlStatus
type CrawlStatusResponse struct {
	URL              string     `json:"url"`
	CurrentStatus    string     `json:"current_status"` // "pending", "crawling", "completed", "failed"
	CurrentPage      int        `json:"current_page"`
	PagesFetched     int        `json:"pages_fetched"`
	ReviewsCollected int        `json:"reviews_collected"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	FailureReason    string     `json:"failure_reason,omitempty"`
}

func NewCrawlStatusResponse(s entity.CrawlStatus) CrawlStatusResponse {
	return CrawlStatusResponse{
		URL:              s.URL,
		CurrentStatus:    s.CurrentStatus,
		CurrentPage:      s.CurrentPage,
		PagesFetched:     s.PagesFetched,
		ReviewsCollected: s.ReviewsCollected,
		StartedAt:        s.StartedAt,
		FinishedAt:       s.FinishedAt,
		FailureReason:    s.FailureReason,
	}
}
