package chromedp_fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/review-crawler/internal/adapter/browserutil"
	"github.com/user/review-crawler/internal/entity"
	"github.com/user/review-crawler/internal/repository"
)

const defaultUserAgent = `Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36`

// Options configures the chromedp browser.
type Options struct {
	Headless    bool
	UserAgent   string
	PageTimeout time.Duration
	Blocklist   *browserutil.Blocklist
}

// ChromedpFetcher renders pages in a single headless Chrome tab.
type ChromedpFetcher struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	tracker     *inflightTracker
	blocklist   *browserutil.Blocklist
	timeout     time.Duration
	logger      *zap.Logger
	closeOnce   sync.Once
	closeErr    error
}

var _ repository.PageFetcher = (*ChromedpFetcher)(nil)

// NewChromedpFetcher launches Chrome and opens the tab every page is loaded in.
func NewChromedpFetcher(opts Options, logger *zap.Logger) (*ChromedpFetcher, error) {
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(ua),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	sugar := logger.Sugar()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf),
	)

	f := &ChromedpFetcher{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		tracker:     newInflightTracker(),
		blocklist:   opts.Blocklist,
		timeout:     opts.PageTimeout,
		logger:      logger,
	}
	chromedp.ListenTarget(tabCtx, f.onEvent)

	// The first Run starts the browser.
	actions := []chromedp.Action{network.Enable()}
	if !f.blocklist.Empty() {
		actions = append(actions, fetch.Enable().WithPatterns([]*fetch.RequestPattern{{URLPattern: "*"}}))
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	logger.Info("Chrome started", zap.Bool("headless", opts.Headless), zap.Bool("request_blocking", !f.blocklist.Empty()))
	return f, nil
}

func (f *ChromedpFetcher) onEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		f.tracker.Begin(string(ev.RequestID))
	case *network.EventLoadingFinished:
		f.tracker.Finish(string(ev.RequestID))
	case *network.EventLoadingFailed:
		f.tracker.Finish(string(ev.RequestID))
	case *fetch.EventRequestPaused:
		// Listeners must not block, and answering needs a round trip.
		go f.resolvePaused(ev)
	}
}

func (f *ChromedpFetcher) resolvePaused(ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(f.tabCtx)
	if c == nil || c.Target == nil {
		return
	}
	ctx := cdp.WithExecutor(f.tabCtx, c.Target)

	var err error
	if f.blocklist.Blocks(string(ev.ResourceType), ev.Request.URL) {
		f.logger.Debug("Blocked request", zap.String("url", ev.Request.URL), zap.String("type", string(ev.ResourceType)))
		err = fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(ctx)
	} else {
		err = fetch.ContinueRequest(ev.RequestID).Do(ctx)
	}
	if err != nil && f.tabCtx.Err() == nil {
		f.logger.Debug("Failed to resolve paused request", zap.String("url", ev.Request.URL), zap.Error(err))
	}
}

// Fetch navigates the tab to url and returns the rendered document once the
// network settled according to policy.
func (f *ChromedpFetcher) Fetch(ctx context.Context, url string, policy entity.WaitPolicy) (*entity.RenderedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var pageCtx context.Context
	var cancel context.CancelFunc
	if f.timeout > 0 {
		pageCtx, cancel = context.WithTimeout(f.tabCtx, f.timeout)
	} else {
		pageCtx, cancel = context.WithCancel(f.tabCtx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	startTime := time.Now()
	f.tracker.Reset(policy.MaxInflight)

	resp, err := chromedp.RunResponse(pageCtx, chromedp.Navigate(url))
	if err != nil {
		return nil, f.classify(ctx, pageCtx, url, err)
	}
	if err := f.tracker.WaitIdle(pageCtx, policy.Quiet); err != nil {
		return nil, f.classify(ctx, pageCtx, url, err)
	}

	var html string
	if err := chromedp.Run(pageCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, f.classify(ctx, pageCtx, url, err)
	}

	statusCode := 0
	if resp != nil {
		statusCode = int(resp.Status)
	}
	f.logger.Debug("Page rendered",
		zap.String("url", url),
		zap.Int("status", statusCode),
		zap.Int("inflight", f.tracker.Inflight()),
		zap.Duration("duration", time.Since(startTime)),
	)

	return &entity.RenderedPage{URL: url, StatusCode: statusCode, HTML: html}, nil
}

func (f *ChromedpFetcher) classify(ctx, pageCtx context.Context, url string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(pageCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", repository.ErrCrawlTimeout, url, f.timeout)
	}
	return fmt.Errorf("%w: %s: %v", repository.ErrNavigationFailed, url, err)
}

// Close shuts Chrome down and removes its profile directory.
func (f *ChromedpFetcher) Close() error {
	f.closeOnce.Do(func() {
		f.closeErr = chromedp.Cancel(f.tabCtx)
		f.tabCancel()
		f.allocCancel()
		if errors.Is(f.closeErr, context.Canceled) {
			f.closeErr = nil
		}
		f.logger.Info("Chrome closed")
	})
	return f.closeErr
}
