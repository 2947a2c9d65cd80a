package rod_fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/user/review-crawler/internal/adapter/browserutil"
	"github.com/user/review-crawler/internal/entity"
	"github.com/user/review-crawler/internal/repository"
)

// longLived request types never finish on their own and would keep the
// page from ever looking idle.
var longLived = []proto.NetworkResourceType{
	proto.NetworkResourceTypeWebSocket,
	proto.NetworkResourceTypeEventSource,
}

// Options configures the Rod browser.
type Options struct {
	Headless    bool
	Stealth     bool
	UserAgent   string
	PageTimeout time.Duration
	Blocklist   *browserutil.Blocklist
	// RemoteURL connects to an already running Chrome instead of launching one.
	RemoteURL string
}

// RodFetcher renders pages in a single Rod-controlled tab.
type RodFetcher struct {
	browser   *rod.Browser
	page      *rod.Page
	lnch      *launcher.Launcher
	router    *rod.HijackRouter
	timeout   time.Duration
	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

var _ repository.PageFetcher = (*RodFetcher)(nil)

// NewRodFetcher launches (or connects to) Chrome and opens the crawl tab,
// applying stealth evasions and request blocking when configured.
func NewRodFetcher(ctx context.Context, opts Options, logger *zap.Logger) (*RodFetcher, error) {
	f := &RodFetcher{timeout: opts.PageTimeout, logger: logger}

	wsURL := opts.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(opts.Headless)
		// Anti-detection flag, same as the stealth preset expects.
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		wsURL = u
		f.lnch = l
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		f.cleanupLauncher()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	f.browser = b

	var page *rod.Page
	var err error
	if opts.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	f.page = page

	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}

	if !opts.Blocklist.Empty() {
		f.router = applyBlocklist(page, opts.Blocklist, logger)
	}

	logger.Info("Chrome started",
		zap.String("control_url", wsURL),
		zap.Bool("headless", opts.Headless),
		zap.Bool("stealth", opts.Stealth),
		zap.Bool("request_blocking", f.router != nil),
	)
	return f, nil
}

func applyBlocklist(page *rod.Page, bl *browserutil.Blocklist, logger *zap.Logger) *rod.HijackRouter {
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		resType := string(h.Request.Type())
		u := h.Request.URL().String()
		if bl.Blocks(resType, u) {
			logger.Debug("Blocked request", zap.String("url", u), zap.String("type", resType))
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}

// Fetch navigates the tab to url and returns the rendered document once no
// request has been pending for policy.Quiet.
func (f *RodFetcher) Fetch(ctx context.Context, url string, policy entity.WaitPolicy) (*entity.RenderedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var pageCtx context.Context
	var cancel context.CancelFunc
	if f.timeout > 0 {
		pageCtx, cancel = context.WithTimeout(ctx, f.timeout)
	} else {
		pageCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	startTime := time.Now()
	p := f.page.Context(pageCtx)

	var statusCode int
	waitStatus := p.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		statusCode = e.Response.Status
		return true
	})
	waitIdle := p.WaitRequestIdle(policy.Quiet, nil, nil, longLived)

	if err := p.Navigate(url); err != nil {
		return nil, f.classify(ctx, pageCtx, url, err)
	}
	waitStatus()
	waitIdle()
	if err := pageCtx.Err(); err != nil {
		return nil, f.classify(ctx, pageCtx, url, err)
	}

	html, err := p.HTML()
	if err != nil {
		return nil, f.classify(ctx, pageCtx, url, err)
	}

	f.logger.Debug("Page rendered",
		zap.String("url", url),
		zap.Int("status", statusCode),
		zap.Duration("duration", time.Since(startTime)),
	)
	return &entity.RenderedPage{URL: url, StatusCode: statusCode, HTML: html}, nil
}

func (f *RodFetcher) classify(ctx, pageCtx context.Context, url string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(pageCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", repository.ErrCrawlTimeout, url, f.timeout)
	}
	return fmt.Errorf("%w: %s: %v", repository.ErrNavigationFailed, url, err)
}

// Close stops request interception, closes Chrome and removes its profile.
func (f *RodFetcher) Close() error {
	f.closeOnce.Do(func() {
		var errs []error
		if f.router != nil {
			errs = append(errs, f.router.Stop())
		}
		if f.browser != nil {
			errs = append(errs, f.browser.Close())
		}
		f.cleanupLauncher()
		f.closeErr = errors.Join(errs...)
		f.logger.Info("Chrome closed")
	})
	return f.closeErr
}

func (f *RodFetcher) cleanupLauncher() {
	if f.lnch != nil {
		f.lnch.Cleanup()
		f.lnch = nil
	}
}
