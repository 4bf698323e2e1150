// Package driver starts the playwright driver and launches browsers for sessions.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/sync/semaphore"
)

// Browsers supported by the driver.
var Browsers = []string{"chromium", "firefox", "webkit"}

// Options configures a Driver.
type Options struct {
	// Browser selects the browser type launched by Launcher.
	// Default: chromium
	Browser string
	// MaxBrowsers limits the number of browser processes running at the same time.
	// Default: 0 (unlimited)
	MaxBrowsers int64
	// Install downloads the playwright driver and the selected browser before starting.
	Install bool
	// Logger receives driver diagnostics.
	// Default: slog.Default()
	Logger *slog.Logger
}

// Driver owns the playwright driver process shared by all sessions of a test run.
type Driver struct {
	pw          *playwright.Playwright
	browserType playwright.BrowserType
	sem         *semaphore.Weighted
	logger      *slog.Logger

	stopOnce sync.Once
	stopErr  error
}

// Install downloads the playwright driver and the given browsers.
func Install(browsers ...string) error {
	if len(browsers) == 0 {
		browsers = []string{"chromium"}
	}
	if err := playwright.Install(&playwright.RunOptions{Browsers: browsers}); err != nil {
		return fmt.Errorf("installing playwright: %w", err)
	}
	return nil
}

// Start runs the playwright driver.
func Start(opts Options) (*Driver, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	browser := strings.ToLower(opts.Browser)
	if browser == "" {
		browser = "chromium"
	}

	if opts.Install {
		if err := Install(browser); err != nil {
			return nil, err
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	bt, err := browserType(pw, browser)
	if err != nil {
		_ = pw.Stop()
		return nil, err
	}

	d := &Driver{
		pw:          pw,
		browserType: bt,
		logger:      opts.Logger,
	}
	if opts.MaxBrowsers > 0 {
		d.sem = semaphore.NewWeighted(opts.MaxBrowsers)
	}

	opts.Logger.Debug("Started playwright driver", slog.String("browser", browser))

	return d, nil
}

func browserType(pw *playwright.Playwright, name string) (playwright.BrowserType, error) {
	switch name {
	case "chromium":
		return pw.Chromium, nil
	case "firefox":
		return pw.Firefox, nil
	case "webkit":
		return pw.WebKit, nil
	default:
		return nil, fmt.Errorf("unsupported browser %q, expected one of %s", name, strings.Join(Browsers, ", "))
	}
}

// Launch starts a browser process. When MaxBrowsers is set it waits for a free slot,
// which is returned when the browser is closed.
func (d *Driver) Launch(ctx context.Context, options playwright.BrowserTypeLaunchOptions) (playwright.Browser, error) {
	return launch(ctx, d.sem, d.browserType, options)
}

func launch(ctx context.Context, sem *semaphore.Weighted, bt playwright.BrowserType, options playwright.BrowserTypeLaunchOptions) (playwright.Browser, error) {
	if sem == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return bt.Launch(options)
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for browser slot: %w", err)
	}
	browser, err := bt.Launch(options)
	if err != nil {
		sem.Release(1)
		return nil, err
	}
	return &boundedBrowser{Browser: browser, release: func() { sem.Release(1) }}, nil
}

// boundedBrowser returns its semaphore slot on the first Close.
type boundedBrowser struct {
	playwright.Browser
	once    sync.Once
	release func()
}

func (b *boundedBrowser) Close(options ...playwright.BrowserCloseOptions) error {
	err := b.Browser.Close(options...)
	b.once.Do(b.release)
	return err
}

// Stop shuts down the playwright driver. It is safe to call more than once.
func (d *Driver) Stop() error {
	d.stopOnce.Do(func() {
		d.stopErr = d.pw.Stop()
	})
	return d.stopErr
}
