package repository

import (
	"context"

	"github.com/user/review-crawler/internal/entity"
)

// ReviewWriter defines the interface for persisting a finished review collection.
type ReviewWriter interface {
	// Write stores reviews at the target's destination, replacing previous
	// content. An empty collection is a no-op and reports written == false.
	Write(ctx context.Context, target entity.CrawlTarget, reviews entity.ReviewCollection) (written bool, err error)
}
