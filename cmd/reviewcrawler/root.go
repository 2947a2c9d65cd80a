package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/user/review-crawler/internal/adapter/browserutil"
	"github.com/user/review-crawler/internal/adapter/chromedp_fetcher"
	"github.com/user/review-crawler/internal/adapter/filesystem"
	"github.com/user/review-crawler/internal/adapter/rod_fetcher"
	"github.com/user/review-crawler/internal/delivery/http/handler"
	"github.com/user/review-crawler/internal/delivery/http/router"
	"github.com/user/review-crawler/internal/delivery/http/server"
	"github.com/user/review-crawler/internal/entity"
	"github.com/user/review-crawler/internal/repository"
	"github.com/user/review-crawler/internal/review"
	"github.com/user/review-crawler/internal/usecase"
	"github.com/user/review-crawler/pkg/config"
	"github.com/user/review-crawler/pkg/logger"
	"github.com/user/review-crawler/pkg/metrics"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitTransport = 2
)

type fetcherFactory func(ctx context.Context, cfg *config.Config, blocklist *browserutil.Blocklist, log *zap.Logger) (repository.PageFetcher, error)

// deps are the pieces of the command that touch the outside world.
type deps struct {
	newFetcher fetcherFactory
	fs         afero.Fs
	registry   prometheus.Registerer
	gatherer   prometheus.Gatherer
}

func defaultDeps() deps {
	return deps{
		newFetcher: newBrowserFetcher,
		fs:         afero.NewOsFs(),
		registry:   prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
}

func newRootCmd(d deps) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "reviewcrawler --url <film url> [--path_to_dest_directory <dir>] [--dest_file <name>]",
		Short: "Collects every review of a film into a text file, one review per line.",
		Args:  cobra.NoArgs,
		// Errors are printed once by main.
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("bind flags: %w", err)
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, d, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.String("url", "", "Film page whose reviews are crawled (required)")
	flags.String("path_to_dest_directory", "./data", "Directory the output file is written to")
	flags.String("dest_file", "data.txt", "Name of the output file")
	flags.String("config", "", "YAML config file (default $XDG_CONFIG_HOME/reviewcrawler/config.yaml)")
	flags.String("log_level", "info", "Log level: debug, info, warn, error")
	flags.String("browser", config.BrowserChromedp, "Browser backend: chromedp or rod")
	flags.Bool("headless", true, "Run Chrome without a window")
	flags.Bool("stealth", false, "Apply anti-bot-detection evasions (rod only)")
	flags.String("browser_control_url", "", "DevTools websocket URL of a running Chrome (rod only)")
	flags.String("user_agent", "", "Override the browser user agent")
	flags.Duration("page_timeout", 60*time.Second, "Navigation timeout per page")
	flags.Int("idle_connections", 2, "Connections allowed in flight while the network counts as idle")
	flags.Duration("idle_quiet", 500*time.Millisecond, "How long the network must stay idle")
	flags.StringSlice("block_resource_types", []string{"image", "font", "media"}, "Resource types that are not loaded")
	flags.StringSlice("block_hosts", config.DefaultBlockHosts, "Hosts (and their subdomains) that are not loaded")
	flags.String("on_failure", config.FailureDiscard, "What to do with collected reviews when a page fails: discard or persist")
	flags.Int("max_pages", 0, "Stop after this many listing pages (0 = no limit)")
	flags.String("metrics_addr", "", "Serve /metrics and /api/status on this address while crawling")
	flags.String("metrics_textfile", "", "Write Prometheus metrics to this file on exit")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, d deps, out io.Writer) error {
	log, err := logger.New(out, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	metrics.Init(d.registry)

	blocklist := browserutil.NewBlocklist(cfg.BlockResourceTypes, cfg.BlockHosts)
	fetcher, err := d.newFetcher(ctx, cfg, blocklist, log)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			log.Warn("Failed to close browser", zap.Error(err))
		}
	}()

	crawler := usecase.NewCrawlerUseCase(
		fetcher,
		filesystem.NewReviewWriter(d.fs, log),
		review.NewExtractor(""),
		usecase.Options{
			WaitPolicy:       entity.WaitPolicy{MaxInflight: cfg.IdleConnections, Quiet: cfg.IdleQuiet},
			PersistOnFailure: cfg.OnFailure == config.FailurePersist,
			MaxPages:         cfg.MaxPages,
		},
		log,
	)

	if cfg.MetricsAddr != "" {
		srv, err := server.Listen(cfg.MetricsAddr, router.New(handler.NewHandler(crawler, log), d.gatherer, log), log)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.MetricsAddr, err)
		}
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("Status server shutdown failed", zap.Error(err))
			}
		}()
	}

	target := entity.NewCrawlTarget(cfg.URL, cfg.DestDir, cfg.DestFile)
	report, runErr := crawler.Run(ctx, target)

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(d.gatherer, cfg.MetricsTextfile); err != nil {
			log.Error("Failed to write metrics textfile", zap.String("path", cfg.MetricsTextfile), zap.Error(err))
		}
	}

	if runErr != nil {
		return runErr
	}
	if report.Written {
		log.Info("Reviews saved", zap.Int("reviews", report.Reviews), zap.String("dest", report.Destination))
	} else {
		log.Info("No reviews found, nothing written", zap.String("url", cfg.URL))
	}
	return nil
}

func newBrowserFetcher(ctx context.Context, cfg *config.Config, blocklist *browserutil.Blocklist, log *zap.Logger) (repository.PageFetcher, error) {
	switch cfg.Browser {
	case config.BrowserRod:
		f, err := rod_fetcher.NewRodFetcher(ctx, rod_fetcher.Options{
			Headless:    cfg.Headless,
			Stealth:     cfg.Stealth,
			UserAgent:   cfg.UserAgent,
			PageTimeout: cfg.PageTimeout,
			Blocklist:   blocklist,
			RemoteURL:   cfg.ControlURL,
		}, log)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		f, err := chromedp_fetcher.NewChromedpFetcher(chromedp_fetcher.Options{
			Headless:    cfg.Headless,
			UserAgent:   cfg.UserAgent,
			PageTimeout: cfg.PageTimeout,
			Blocklist:   blocklist,
		}, log)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

// exitCode maps the command's error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case repository.IsTransportError(err):
		return exitTransport
	default:
		return exitFailure
	}
}
