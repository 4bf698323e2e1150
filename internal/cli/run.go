package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cucumber/godog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/networkteam/rocketworld"
)

type runFlags struct {
	tags        string
	concurrency int
	format      string
	report      bool
	metricsAddr string
	install     bool
	maxBrowsers int64
	reapAfter   time.Duration
	attachVideo bool
	noTrace     bool
	noVideo     bool
}

func newRunCmd(root *rootFlags, opts RootOptions) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Run feature files",
		Long: `Run feature files or directories, "features" if none are given.
Each scenario runs in its own browser session, scenarios run in parallel with --concurrency.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd, root, flags, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.tags, "tags", "t", "", "Tag expression selecting scenarios, e.g. \"@smoke && ~@wip\"")
	f.IntVarP(&flags.concurrency, "concurrency", "c", 1, "Number of scenarios run at the same time")
	f.StringVarP(&flags.format, "format", "f", "pretty", "godog output format")
	f.BoolVar(&flags.report, "report", true, "Write a cucumber JSON report to the reports directory")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	f.BoolVar(&flags.install, "install", false, "Install the playwright driver and browser before running")
	f.Int64Var(&flags.maxBrowsers, "max-browsers", 0, "Limit concurrently running browsers (0 for no limit)")
	f.DurationVar(&flags.reapAfter, "reap-after", 0, "Release sessions held longer than this (0 to disable)")
	f.BoolVar(&flags.attachVideo, "attach-video", false, "Attach videos of failed scenarios to the report")
	f.BoolVar(&flags.noTrace, "no-trace", false, "Disable tracing")
	f.BoolVar(&flags.noVideo, "no-video", false, "Disable video recording")

	return cmd
}

func runSuite(cmd *cobra.Command, root *rootFlags, flags *runFlags, opts RootOptions, paths []string) error {
	logger := newLogger(cmd.ErrOrStderr(), root.verbose)

	cfg, err := loadConfig(root.config)
	if err != nil {
		return err
	}

	rw, err := rocketworld.NewWithOptions(rocketworld.Options{
		Config:          &cfg,
		Launcher:        opts.Launcher,
		InstallBrowsers: flags.install,
		MaxBrowsers:     flags.maxBrowsers,
		Logger:          logger,
		ReapAfter:       flags.reapAfter,
		AttachVideo:     flags.attachVideo,
		DisableTracing:  flags.noTrace,
		DisableVideo:    flags.noVideo,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := rw.Close(); err != nil {
			logger.Warn("Closing run failed", slog.Any("error", err))
		}
	}()

	format := flags.format
	if flags.report {
		if err := os.MkdirAll(cfg.ReportsDir, 0o755); err != nil {
			return fmt.Errorf("creating reports directory: %w", err)
		}
		format += ",cucumber:" + filepath.Join(cfg.ReportsDir, "cucumber.json")
	}

	if len(paths) == 0 {
		paths = []string{"features"}
	}

	suite := rw.TestSuite("rocket", &godog.Options{
		Format:         format,
		Paths:          paths,
		Tags:           flags.tags,
		Concurrency:    flags.concurrency,
		Strict:         true,
		Output:         cmd.OutOrStdout(),
		DefaultContext: cmd.Context(),
	})

	var status int
	g, ctx := errgroup.WithContext(cmd.Context())
	suiteDone := make(chan struct{})

	if flags.metricsAddr != "" {
		listener, err := net.Listen("tcp", flags.metricsAddr)
		if err != nil {
			return fmt.Errorf("listening for metrics: %w", err)
		}
		srv := &http.Server{Handler: metricsMux(rw), ReadHeaderTimeout: 5 * time.Second}
		logger.Info("Serving metrics", slog.String("addr", listener.Addr().String()))

		g.Go(func() error {
			if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving metrics: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-suiteDone:
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer close(suiteDone)
		status = suite.Run()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	renderSummary(cmd.OutOrStdout(), rw.Results())

	if err := cmd.Context().Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", context.Cause(cmd.Context()))
	}

	if status != 0 {
		return &SuiteFailedError{Status: status}
	}
	return nil
}

func metricsMux(rw *rocketworld.Instance) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rw.MetricsHandler())
	return mux
}
