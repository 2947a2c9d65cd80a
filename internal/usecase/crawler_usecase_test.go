package usecase

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/user/review-crawler/internal/adapter/filesystem"
	"github.com/user/review-crawler/internal/entity"
	"github.com/user/review-crawler/internal/repository"
	"github.com/user/review-crawler/internal/review"
	"github.com/user/review-crawler/pkg/metrics"
)

const baseURL = "https://example.com/film/x"

func TestMain(m *testing.M) {
	metrics.Init(prometheus.NewRegistry())
	os.Exit(m.Run())
}

type stubPage struct {
	status int
	texts  []string
	err    error
}

// stubFetcher serves canned pages by URL and records every request.
type stubFetcher struct {
	pages   map[string]stubPage
	fetched []string
	closed  bool
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{pages: map[string]stubPage{
		baseURL: {status: http.StatusOK},
	}}
}

func (s *stubFetcher) page(n int, p stubPage) *stubFetcher {
	s.pages[fmt.Sprintf("%s/reviews/by/added/page/%d/", baseURL, n)] = p
	return s
}

func (s *stubFetcher) Fetch(ctx context.Context, url string, policy entity.WaitPolicy) (*entity.RenderedPage, error) {
	s.fetched = append(s.fetched, url)
	p, ok := s.pages[url]
	if !ok {
		// Past the configured pages the listing is empty.
		p = stubPage{status: http.StatusOK}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &entity.RenderedPage{URL: url, StatusCode: p.status, HTML: listingHTML(p.texts)}, nil
}

func (s *stubFetcher) Close() error {
	s.closed = true
	return nil
}

func listingHTML(texts []string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, t := range texts {
		b.WriteString(`<li><div class="body-text -prose collapsible-text">`)
		b.WriteString(html.EscapeString(t))
		b.WriteString(`</div></li>`)
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}

// spyWriter counts calls before delegating to the real file writer.
type spyWriter struct {
	next  repository.ReviewWriter
	calls int
}

func (w *spyWriter) Write(ctx context.Context, target entity.CrawlTarget, reviews entity.ReviewCollection) (bool, error) {
	w.calls++
	return w.next.Write(ctx, target, reviews)
}

type fixture struct {
	fetcher *stubFetcher
	writer  *spyWriter
	fs      afero.Fs
	crawler Crawler
}

func newFixture(t *testing.T, fetcher *stubFetcher, opts Options) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	writer := &spyWriter{next: filesystem.NewReviewWriter(fs, zap.NewNop())}
	if opts.WaitPolicy == (entity.WaitPolicy{}) {
		opts.WaitPolicy = entity.DefaultWaitPolicy()
	}
	return &fixture{
		fetcher: fetcher,
		writer:  writer,
		fs:      fs,
		crawler: NewCrawlerUseCase(fetcher, writer, review.NewExtractor(""), opts, zaptest.NewLogger(t)),
	}
}

func pageURL(n int) string {
	return fmt.Sprintf("%s/reviews/by/added/page/%d/", baseURL, n)
}

func TestCollectStopsOnFirstEmptyPage(t *testing.T) {
	fetcher := newStubFetcher().
		page(1, stubPage{status: http.StatusOK, texts: []string{"one", "two"}}).
		page(2, stubPage{status: http.StatusOK})
	f := newFixture(t, fetcher, Options{})

	reviews, err := f.crawler.Collect(context.Background(), baseURL)
	require.NoError(t, err)

	assert.Equal(t, entity.ReviewCollection{"one", "two"}, reviews)
	assert.Equal(t, []string{baseURL, pageURL(1), pageURL(2)}, fetcher.fetched, "page 3 must not be fetched")
}

func TestCollectKeepsPageAndDocumentOrder(t *testing.T) {
	fetcher := newStubFetcher().
		page(1, stubPage{status: http.StatusOK, texts: []string{"a", "b"}}).
		page(2, stubPage{status: http.StatusOK, texts: []string{"c"}}).
		page(3, stubPage{status: http.StatusOK, texts: []string{"d", "e"}})
	f := newFixture(t, fetcher, Options{})

	reviews, err := f.crawler.Collect(context.Background(), baseURL)
	require.NoError(t, err)
	assert.Equal(t, entity.ReviewCollection{"a", "b", "c", "d", "e"}, reviews)
	assert.Len(t, fetcher.fetched, 5)

	status := f.crawler.Status()
	assert.Equal(t, 4, status.PagesFetched)
	assert.Equal(t, 5, status.ReviewsCollected)
}

func TestCollectPreCheckFailureSkipsPagination(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.pages[baseURL] = stubPage{status: http.StatusServiceUnavailable}
	f := newFixture(t, fetcher, Options{})

	reviews, err := f.crawler.Collect(context.Background(), baseURL)
	require.Error(t, err)
	assert.Empty(t, reviews)
	assert.Equal(t, []string{baseURL}, fetcher.fetched)

	var statusErr *repository.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.True(t, repository.IsTransportError(err))
}

func TestCollectReturnsPartialReviewsOnFailure(t *testing.T) {
	fetcher := newStubFetcher().
		page(1, stubPage{status: http.StatusOK, texts: []string{"r1", "r2", "r3"}}).
		page(2, stubPage{status: http.StatusNotFound})
	f := newFixture(t, fetcher, Options{})

	reviews, err := f.crawler.Collect(context.Background(), baseURL)
	assert.ErrorIs(t, err, repository.ErrUnexpectedStatus)
	assert.Equal(t, entity.ReviewCollection{"r1", "r2", "r3"}, reviews)
	assert.Equal(t, []string{baseURL, pageURL(1), pageURL(2)}, fetcher.fetched)
}

func TestCollectPropagatesNavigationErrors(t *testing.T) {
	navErr := fmt.Errorf("%w: %s: net::ERR_NAME_NOT_RESOLVED", repository.ErrNavigationFailed, pageURL(1))
	fetcher := newStubFetcher().page(1, stubPage{err: navErr})
	f := newFixture(t, fetcher, Options{})

	_, err := f.crawler.Collect(context.Background(), baseURL)
	assert.ErrorIs(t, err, repository.ErrNavigationFailed)
}

func TestCollectHonoursMaxPages(t *testing.T) {
	fetcher := newStubFetcher().
		page(1, stubPage{status: http.StatusOK, texts: []string{"a"}}).
		page(2, stubPage{status: http.StatusOK, texts: []string{"b"}}).
		page(3, stubPage{status: http.StatusOK, texts: []string{"c"}})
	f := newFixture(t, fetcher, Options{MaxPages: 2})

	reviews, err := f.crawler.Collect(context.Background(), baseURL)
	require.NoError(t, err)
	assert.Equal(t, entity.ReviewCollection{"a", "b"}, reviews)
	assert.NotContains(t, fetcher.fetched, pageURL(3))
}

func TestCollectStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newFixture(t, newStubFetcher(), Options{})

	_, err := f.crawler.Collect(ctx, baseURL)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.fetcher.fetched)
}

func TestRunWritesNormalizedReviews(t *testing.T) {
	fetcher := newStubFetcher().
		page(1, stubPage{status: http.StatusOK, texts: []string{"Great movie!\n", "  So   good "}}).
		page(2, stubPage{status: http.StatusOK})
	f := newFixture(t, fetcher, Options{})
	target := entity.NewCrawlTarget(baseURL, "./data", "data.txt")

	report, err := f.crawler.Run(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, report.Written)
	assert.Equal(t, 2, report.Reviews)
	assert.Equal(t, 2, report.Pages)

	b, err := afero.ReadFile(f.fs, target.Destination())
	require.NoError(t, err)
	assert.Equal(t, "Great movie!\nSo good", string(b))

	status := f.crawler.Status()
	assert.Equal(t, entity.StatusCompleted, status.CurrentStatus)
	assert.NotNil(t, status.FinishedAt)
}

func TestRunDiscardsReviewsOnFailure(t *testing.T) {
	fetcher := newStubFetcher().
		page(1, stubPage{status: http.StatusOK, texts: []string{"r1", "r2", "r3"}}).
		page(2, stubPage{status: http.StatusNotFound})
	f := newFixture(t, fetcher, Options{})
	target := entity.NewCrawlTarget(baseURL, "data", "data.txt")

	report, err := f.crawler.Run(context.Background(), target)
	require.Error(t, err)
	assert.True(t, repository.IsTransportError(err))
	assert.False(t, report.Written)
	assert.Zero(t, f.writer.calls, "writer must not be invoked")

	exists, err := afero.Exists(f.fs, target.Destination())
	require.NoError(t, err)
	assert.False(t, exists)

	status := f.crawler.Status()
	assert.Equal(t, entity.StatusFailed, status.CurrentStatus)
	assert.Contains(t, status.FailureReason, "404")
}

func TestRunPersistsPartialReviewsWhenConfigured(t *testing.T) {
	fetcher := newStubFetcher().
		page(1, stubPage{status: http.StatusOK, texts: []string{"r1", "r2", "r3"}}).
		page(2, stubPage{status: http.StatusNotFound})
	f := newFixture(t, fetcher, Options{PersistOnFailure: true})
	target := entity.NewCrawlTarget(baseURL, "data", "data.txt")

	report, err := f.crawler.Run(context.Background(), target)
	assert.ErrorIs(t, err, repository.ErrUnexpectedStatus)
	assert.True(t, report.Written)

	b, err := afero.ReadFile(f.fs, target.Destination())
	require.NoError(t, err)
	assert.Equal(t, "r1\nr2\nr3", string(b))
}

func TestRunWithNoReviewsWritesNothing(t *testing.T) {
	f := newFixture(t, newStubFetcher(), Options{})
	target := entity.NewCrawlTarget(baseURL, "data", "data.txt")

	report, err := f.crawler.Run(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, report.Written)
	assert.Equal(t, 1, f.writer.calls)

	exists, err := afero.DirExists(f.fs, "data")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunReportsWriteErrors(t *testing.T) {
	fetcher := newStubFetcher().page(1, stubPage{status: http.StatusOK, texts: []string{"a"}})
	f := newFixture(t, fetcher, Options{})
	f.writer.next = filesystem.NewReviewWriter(afero.NewReadOnlyFs(afero.NewMemMapFs()), zap.NewNop())

	_, err := f.crawler.Run(context.Background(), entity.NewCrawlTarget(baseURL, "data", "data.txt"))
	require.Error(t, err)
	assert.False(t, repository.IsTransportError(err))
	assert.False(t, errors.Is(err, context.Canceled))
}
