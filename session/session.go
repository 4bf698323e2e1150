package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/networkteam/rocketworld/capture"
)

// Session owns the browser resources of one scenario: a browser process, an isolated
// context with tracing and video recording, and a single page.
//
// A session is either fully acquired or holds nothing. Step code only ever sees the page.
type Session struct {
	id   uuid.UUID
	name string
	key  string
	opts Options

	console *capture.ConsoleCollector
	logs    *capture.LogBuffer
	created time.Time

	// state is readable without holding mu so that managers never wait on a running acquisition
	state atomic.Int32

	mu        sync.Mutex
	targetURL string
	browser   playwright.Browser
	context   playwright.BrowserContext
	page      playwright.Page
	tracing   bool
	artifacts ArtifactSet
}

// New creates an unacquired session for the named scenario.
func New(name string, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		id:      uuid.Must(uuid.NewV7()),
		name:    name,
		key:     SanitizeName(name),
		opts:    opts,
		console: capture.NewConsoleCollector(opts.ConsoleCapacity),
		logs:    capture.NewLogBuffer(opts.LogCapacity),
		created: time.Now(),
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

// Name returns the scenario name.
func (s *Session) Name() string { return s.name }

// Key returns the sanitized artifact key.
func (s *Session) Key() string { return s.key }

// Console returns the console output collected from the page.
func (s *Session) Console() *capture.ConsoleCollector { return s.console }

// Logs returns the buffer receiving scenario log records.
func (s *Session) Logs() *capture.LogBuffer { return s.logs }

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// TargetURL returns the base URL recorded at acquisition.
func (s *Session) TargetURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetURL
}

// ResolveURL resolves ref against the target URL.
func (s *Session) ResolveURL(ref string) (string, error) {
	base, err := url.Parse(s.TargetURL())
	if err != nil {
		return "", fmt.Errorf("parsing target URL: %w", err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", ref, err)
	}
	return base.ResolveReference(r).String(), nil
}

// SetDefaultTimeout changes the default timeout of browser operations. It applies to
// the held context immediately and to contexts created by later acquisitions.
func (s *Session) SetDefaultTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.StepTimeout = d
	if s.context != nil {
		s.context.SetDefaultTimeout(float64(d.Milliseconds()))
	}
}

// DefaultTimeout returns the default timeout of browser operations.
func (s *Session) DefaultTimeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.StepTimeout
}

// Page returns the page of an acquired session.
func (s *Session) Page() (playwright.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state := s.State(); state != StateReady {
		return nil, fmt.Errorf("%w: state %s", ErrNotAcquired, state)
	}
	return s.page, nil
}

// Acquire launches the browser, opens an isolated context with tracing and video
// recording, and opens a page. Acquiring a ready session is a no-op.
//
// On failure every resource created so far is closed before a *ResourceAcquisitionError is returned.
func (s *Session) Acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateReady:
		return nil
	case StateReleasing, StateClosed:
		return ErrClosed
	}

	s.setState(StateAcquiring)

	cfg := s.opts.Config
	a := &acquisition{session: s}

	err := a.run(StepCreateArtifactsDir, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.opts.DisableVideo {
			return nil
		}
		return os.MkdirAll(cfg.VideosDir(), 0o755)
	})
	if err == nil {
		err = a.run(StepLaunchBrowser, func() (err error) {
			a.browser, err = s.opts.Launcher.Launch(ctx, playwright.BrowserTypeLaunchOptions{
				Headless: playwright.Bool(cfg.Headless),
			})
			return err
		})
	}
	if err == nil {
		err = a.run(StepNewContext, func() (err error) {
			contextOptions := playwright.BrowserNewContextOptions{
				IgnoreHttpsErrors: playwright.Bool(cfg.IgnoreTLSErrors),
			}
			if !s.opts.DisableVideo {
				contextOptions.RecordVideo = &playwright.RecordVideo{Dir: cfg.VideosDir()}
			}
			a.context, err = a.browser.NewContext(contextOptions)
			if err == nil {
				a.context.SetDefaultTimeout(float64(s.opts.StepTimeout.Milliseconds()))
			}
			return err
		})
	}
	if err == nil && !s.opts.DisableTracing {
		err = a.run(StepStartTracing, func() error {
			if err := a.context.Tracing().Start(playwright.TracingStartOptions{
				Title:       playwright.String(s.name),
				Screenshots: playwright.Bool(true),
				Snapshots:   playwright.Bool(true),
				Sources:     playwright.Bool(true),
			}); err != nil {
				return err
			}
			a.tracing = true
			return nil
		})
	}
	if err == nil {
		err = a.run(StepNewPage, func() (err error) {
			a.page, err = a.context.NewPage()
			return err
		})
	}

	if err != nil {
		a.rollback()
		s.setState(StateUninitialized)
		return err
	}

	s.console.Attach(a.page)

	s.browser = a.browser
	s.context = a.context
	s.page = a.page
	s.tracing = a.tracing
	s.targetURL = cfg.TargetURL
	s.setState(StateReady)
	s.opts.Metrics.Acquired()

	s.opts.Logger.Debug("Acquired browser session",
		slog.String("scenario", s.name),
		slog.String("session", s.id.String()),
		slog.String("browser", cfg.Browser),
		slog.Bool("headless", cfg.Headless),
	)

	return nil
}

// acquisition tracks resources created during Acquire so they can be rolled back.
type acquisition struct {
	session *Session
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	tracing bool
}

func (a *acquisition) run(step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			a.session.opts.Metrics.AcquireFailed(step)
			err = &ResourceAcquisitionError{Step: step, Err: err}
		}
	}()
	return fn()
}

func (a *acquisition) rollback() {
	s := a.session
	if a.page != nil {
		s.attempt("page", func() error { return a.page.Close() })
	}
	if a.context != nil {
		s.attempt("context", func() error { return a.context.Close() })
	}
	if a.browser != nil {
		s.attempt("browser", func() error { return a.browser.Close() })
	}
}

// Release exports artifacts and closes all resources in reverse acquisition order:
// stop tracing, resolve the video, close page, close context, copy the video,
// write console and log output, close the browser.
//
// Each step runs regardless of earlier failures. Failures are logged and never returned.
// Releasing a session that holds nothing is a no-op, releasing twice returns the artifacts of the first release.
func (s *Session) Release(ctx context.Context) ArtifactSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateClosed:
		return s.artifacts
	case StateUninitialized:
		return ArtifactSet{}
	}

	s.setState(StateReleasing)
	cfg := s.opts.Config
	var set ArtifactSet

	if s.context != nil && s.tracing {
		tracePath := filepath.Join(cfg.TracesDir(), s.key+".zip")
		ok := s.export("trace", func() error {
			if err := os.MkdirAll(cfg.TracesDir(), 0o755); err != nil {
				return err
			}
			return s.context.Tracing().Stop(tracePath)
		})
		if ok {
			set.TracePath = tracePath
		}
	}

	var videoSrc string
	if s.page != nil && !s.opts.DisableVideo {
		s.export("video", func() error {
			video := s.page.Video()
			if video == nil {
				return nil
			}
			p, err := video.Path()
			videoSrc = p
			return err
		})
	}

	if s.page != nil {
		s.attempt("page", func() error { return s.page.Close() })
		s.page = nil
	}
	if s.context != nil {
		s.attempt("context", func() error { return s.context.Close() })
		s.context = nil
	}

	// The recorder finalizes the file when the context closes
	if videoSrc != "" {
		videoDst := filepath.Join(cfg.ReportVideosDir(), s.key+filepath.Ext(videoSrc))
		if s.export("video", func() error { return copyFile(videoSrc, videoDst) }) {
			set.VideoPath = videoDst
		}
	}

	if s.console.Len() > 0 {
		consolePath := filepath.Join(cfg.LogsDir(), s.key+".console.log")
		if s.export("console", func() error { return writeArtifact(consolePath, s.console) }) {
			set.ConsolePath = consolePath
		}
	}
	if len(s.logs.Records()) > 0 {
		logPath := filepath.Join(cfg.LogsDir(), s.key+".log")
		if s.export("log", func() error { return writeArtifact(logPath, s.logs) }) {
			set.LogPath = logPath
		}
	}

	if s.browser != nil {
		s.attempt("browser", func() error { return s.browser.Close() })
		s.browser = nil
	}

	s.tracing = false
	s.artifacts = set
	s.setState(StateClosed)
	s.opts.Metrics.Released()

	s.opts.Logger.DebugContext(ctx, "Released browser session",
		slog.String("scenario", s.name),
		slog.String("session", s.id.String()),
		slog.String("trace", set.TracePath),
		slog.String("video", set.VideoPath),
	)

	return set
}

// Artifacts returns the artifacts written by Release.
func (s *Session) Artifacts() ArtifactSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifacts
}

// FailureSnapshot is the state of the page captured when a scenario fails.
type FailureSnapshot struct {
	URL        string
	Screenshot []byte
	HTML       string
	// Truncated is set when HTML was cut at Options.MaxSnapshotSize.
	Truncated bool
}

// Snapshot captures a screenshot and the DOM of the page. Partial results are returned
// together with the joined errors.
func (s *Session) Snapshot() (FailureSnapshot, error) {
	page, err := s.Page()
	if err != nil {
		return FailureSnapshot{}, err
	}

	snap := FailureSnapshot{URL: page.URL()}
	var errs []error

	snap.Screenshot, err = page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("taking screenshot: %w", err))
	}
	content, err := page.Content()
	if err != nil {
		errs = append(errs, fmt.Errorf("reading page content: %w", err))
	}
	dom := capture.NewLimitedBuffer(s.opts.MaxSnapshotSize)
	_, _ = dom.WriteString(content)
	snap.HTML = dom.String()
	snap.Truncated = dom.Truncated()

	return snap, errors.Join(errs...)
}

// attempt runs a close operation, logging failures and recovering panics from invalid handles.
func (s *Session) attempt(resource string, fn func() error) {
	if err := protect(fn); err != nil {
		s.opts.Metrics.ReleaseWarning(resource)
		s.opts.Logger.Warn("Closing browser resource failed",
			slog.String("scenario", s.name),
			slog.String("session", s.id.String()),
			slog.String("resource", resource),
			slog.Any("error", err),
		)
	}
}

// export runs an artifact export step and reports whether it succeeded.
func (s *Session) export(artifact string, fn func() error) bool {
	if err := protect(fn); err != nil {
		s.opts.Metrics.ArtifactExportFailed(artifact)
		s.opts.Logger.Warn("Exporting artifact failed",
			slog.String("scenario", s.name),
			slog.String("session", s.id.String()),
			slog.String("artifact", artifact),
			slog.Any("error", err),
		)
		return false
	}
	return true
}

func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// setState must be called with s.mu held.
func (s *Session) setState(to State) {
	from := State(s.state.Swap(int32(to)))
	if s.opts.transitions != nil {
		s.opts.transitions.Notify(Transition{
			SessionID: s.id,
			Scenario:  s.name,
			From:      from,
			To:        to,
			Time:      time.Now(),
		})
	}
}
