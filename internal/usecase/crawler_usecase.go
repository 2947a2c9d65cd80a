package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/review-crawler/internal/entity"
	"github.com/user/review-crawler/internal/repository"
	"github.com/user/review-crawler/internal/review"
	"github.com/user/review-crawler/pkg/metrics"
	"github.com/user/review-crawler/pkg/utils"
)

// Crawler defines the interface for the review crawl.
type Crawler interface {
	// Collect walks the review listing of baseURL page by page until a page
	// has no reviews. On failure it returns the reviews gathered so far
	// together with the error.
	Collect(ctx context.Context, baseURL string) (entity.ReviewCollection, error)
	// Run collects the reviews of target and hands them to the writer.
	Run(ctx context.Context, target entity.CrawlTarget) (*entity.CrawlReport, error)
	// Status returns a snapshot of the current run.
	Status() entity.CrawlStatus
}

// Options tunes the crawl.
type Options struct {
	WaitPolicy entity.WaitPolicy
	// PersistOnFailure writes the reviews collected before a failing page
	// instead of discarding them.
	PersistOnFailure bool
	// MaxPages stops after that many listing pages. Zero means no limit.
	MaxPages int
}

type crawlerUseCase struct {
	fetcher   repository.PageFetcher
	writer    repository.ReviewWriter
	extractor *review.Extractor
	opts      Options
	logger    *zap.Logger

	mu     sync.Mutex
	status entity.CrawlStatus
}

// NewCrawlerUseCase creates a new instance of the crawler use case.
func NewCrawlerUseCase(
	fetcher repository.PageFetcher,
	writer repository.ReviewWriter,
	extractor *review.Extractor,
	opts Options,
	logger *zap.Logger,
) Crawler {
	return &crawlerUseCase{
		fetcher:   fetcher,
		writer:    writer,
		extractor: extractor,
		opts:      opts,
		logger:    logger,
		status:    entity.CrawlStatus{CurrentStatus: entity.StatusPending},
	}
}

func (uc *crawlerUseCase) Collect(ctx context.Context, baseURL string) (entity.ReviewCollection, error) {
	uc.updateStatus(func(s *entity.CrawlStatus) {
		now := time.Now()
		*s = entity.CrawlStatus{URL: baseURL, CurrentStatus: entity.StatusCrawling, StartedAt: &now}
	})

	// The film's homepage only proves the listing is reachable.
	if _, err := uc.fetchPage(ctx, 0, baseURL); err != nil {
		return nil, err
	}

	var collected entity.ReviewCollection
	for idx := 1; ; idx++ {
		if uc.opts.MaxPages > 0 && idx > uc.opts.MaxPages {
			uc.logger.Warn("Page limit reached, stopping", zap.Int("max_pages", uc.opts.MaxPages))
			return collected, nil
		}

		page, err := uc.fetchPage(ctx, idx, utils.ReviewPageURL(baseURL, idx))
		if err != nil {
			return collected, err
		}
		if len(page.Fragments) == 0 {
			metrics.PagesTotal.WithLabelValues("empty").Inc()
			uc.logger.Info("No reviews on page, listing exhausted", zap.Int("page", idx), zap.String("url", page.URL))
			return collected, nil
		}

		reviews := review.NormalizeAll(page.Fragments)
		collected = collected.Append(reviews...)

		metrics.PagesTotal.WithLabelValues("ok").Inc()
		metrics.ReviewsTotal.Add(float64(len(reviews)))
		uc.updateStatus(func(s *entity.CrawlStatus) {
			s.ReviewsCollected = collected.Len()
		})
		uc.logger.Info("Collected reviews from page",
			zap.Int("page", idx),
			zap.Int("reviews", len(reviews)),
			zap.Int("total", collected.Len()),
		)
	}
}

// fetchPage loads one page and extracts its raw review fragments. Index 0 is
// the reachability check and is not extracted.
func (uc *crawlerUseCase) fetchPage(ctx context.Context, idx int, url string) (*entity.PageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	uc.logger.Info("Navigating to page", zap.Int("page", idx), zap.String("url", url))
	uc.updateStatus(func(s *entity.CrawlStatus) { s.CurrentPage = idx })

	startTime := time.Now()
	rendered, err := uc.fetcher.Fetch(ctx, url, uc.opts.WaitPolicy)
	metrics.PageFetchDuration.Observe(time.Since(startTime).Seconds())
	if err != nil {
		uc.recordFailure(err)
		return nil, err
	}
	if rendered.StatusCode != http.StatusOK {
		err := &repository.StatusError{URL: url, StatusCode: rendered.StatusCode}
		uc.recordFailure(err)
		return nil, err
	}

	result := &entity.PageResult{Index: idx, URL: url, StatusCode: rendered.StatusCode}
	if idx > 0 {
		fragments, err := uc.extractor.Extract(rendered.HTML)
		if err != nil {
			return nil, fmt.Errorf("extract reviews from %s: %w", url, err)
		}
		result.Fragments = fragments
		uc.updateStatus(func(s *entity.CrawlStatus) { s.PagesFetched++ })
	}
	return result, nil
}

func (uc *crawlerUseCase) recordFailure(err error) {
	errorType := "unknown"
	switch {
	case errors.Is(err, repository.ErrUnexpectedStatus):
		errorType = "status"
	case errors.Is(err, repository.ErrCrawlTimeout):
		errorType = "timeout"
	case errors.Is(err, repository.ErrNavigationFailed):
		errorType = "navigation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		errorType = "canceled"
	}
	metrics.PagesTotal.WithLabelValues("failed").Inc()
	metrics.FailuresTotal.WithLabelValues(errorType).Inc()
}

func (uc *crawlerUseCase) Run(ctx context.Context, target entity.CrawlTarget) (*entity.CrawlReport, error) {
	startTime := time.Now()
	reviews, crawlErr := uc.Collect(ctx, target.BaseURL)

	report := &entity.CrawlReport{
		Target:      target,
		Pages:       uc.Status().PagesFetched,
		Reviews:     reviews.Len(),
		Destination: target.Destination(),
	}

	if crawlErr != nil {
		report.Duration = time.Since(startTime)
		metrics.CrawlDuration.WithLabelValues("failure").Observe(report.Duration.Seconds())
		uc.finish(entity.StatusFailed, crawlErr.Error())
		uc.logger.Error("Connection was unsuccessful, stopping crawl", zap.String("url", target.BaseURL), zap.Error(crawlErr))

		if reviews.Len() == 0 {
			return report, crawlErr
		}
		if !uc.opts.PersistOnFailure {
			uc.logger.Warn("Discarding reviews collected before the failure", zap.Int("reviews", reviews.Len()))
			return report, crawlErr
		}
		// The run may have been cancelled; the partial write still happens.
		written, err := uc.writer.Write(context.WithoutCancel(ctx), target, reviews)
		if err != nil {
			return report, errors.Join(crawlErr, fmt.Errorf("persist partial reviews: %w", err))
		}
		report.Written = written
		uc.logger.Warn("Persisted reviews collected before the failure",
			zap.Int("reviews", reviews.Len()),
			zap.String("dest", report.Destination),
		)
		return report, crawlErr
	}

	written, err := uc.writer.Write(ctx, target, reviews)
	report.Written = written
	report.Duration = time.Since(startTime)
	if err != nil {
		metrics.CrawlDuration.WithLabelValues("failure").Observe(report.Duration.Seconds())
		uc.finish(entity.StatusFailed, err.Error())
		return report, fmt.Errorf("write reviews: %w", err)
	}

	metrics.CrawlDuration.WithLabelValues("success").Observe(report.Duration.Seconds())
	uc.finish(entity.StatusCompleted, "")
	uc.logger.Info("Crawl finished",
		zap.Int("pages", report.Pages),
		zap.Int("reviews", report.Reviews),
		zap.Bool("written", report.Written),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (uc *crawlerUseCase) Status() entity.CrawlStatus {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.status
}

func (uc *crawlerUseCase) updateStatus(fn func(*entity.CrawlStatus)) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	fn(&uc.status)
}

func (uc *crawlerUseCase) finish(state, reason string) {
	uc.updateStatus(func(s *entity.CrawlStatus) {
		now := time.Now()
		s.CurrentStatus = state
		s.FailureReason = reason
		s.FinishedAt = &now
	})
}
