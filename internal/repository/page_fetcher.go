package repository

import (
	"context"

	"github.com/user/review-crawler/internal/entity"
)

// PageFetcher defines the contract for the browser that renders listing pages.
type PageFetcher interface {
	// Fetch navigates to url, waits until the network settles according to
	// policy and returns the rendered document with its HTTP status code.
	// A non-200 status is not an error at this level.
	Fetch(ctx context.Context, url string, policy entity.WaitPolicy) (*entity.RenderedPage, error)
	// Close releases the browser. It is safe to call more than once.
	Close() error
}
