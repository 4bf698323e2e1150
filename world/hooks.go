package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cucumber/godog"

	"github.com/networkteam/rocketworld/capture"
	"github.com/networkteam/rocketworld/config"
	"github.com/networkteam/rocketworld/metrics"
	"github.com/networkteam/rocketworld/report"
	"github.com/networkteam/rocketworld/session"
)

// Options configures the scenario lifecycle hooks.
type Options struct {
	// Manager holds the sessions of running scenarios. Required.
	Manager *session.Manager
	// Logger is the parent of all scenario loggers.
	// Default: slog.Default()
	Logger *slog.Logger
	// Metrics records scenario results. Optional.
	Metrics *metrics.Metrics

	// DefaultTimeout is established once for the process and applied to every session and step.
	// Default: Config.StepTimeout
	DefaultTimeout time.Duration
	// ScenarioTimeout bounds a whole scenario. When it expires the session is released,
	// which aborts the operation the scenario is waiting on.
	// Default: Config.ScenarioTimeout
	ScenarioTimeout time.Duration
	// AttachVideo adds an inline video player to the report of failed scenarios.
	AttachVideo bool
}

// Result is the outcome of a finished scenario.
type Result struct {
	Scenario  string
	Passed    bool
	Err       string
	Duration  time.Duration
	Artifacts session.ArtifactSet
}

// Hooks wires sessions into the scenario lifecycle: a session is acquired before
// every scenario and released after it, whatever the outcome.
type Hooks struct {
	opts   Options
	config config.Config

	timeoutOnce    sync.Once
	defaultTimeout time.Duration

	mu       sync.Mutex
	running  map[string]*scenarioRun
	results  []Result
	released bool
}

type scenarioRun struct {
	started time.Time
	cancel  context.CancelFunc
	stop    func() bool
}

func NewHooks(opts Options) *Hooks {
	if opts.Manager == nil {
		panic("world: Options.Manager is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	cfg := opts.Manager.Options().Config
	if opts.ScenarioTimeout == 0 {
		opts.ScenarioTimeout = cfg.ScenarioTimeout
	}

	return &Hooks{
		opts:    opts,
		config:  cfg,
		running: make(map[string]*scenarioRun),
	}
}

// InitializeScenario registers the hooks on a scenario context.
func (h *Hooks) InitializeScenario(sc *godog.ScenarioContext) {
	sc.Before(h.BeforeScenario)
	sc.After(h.AfterScenario)
	sc.StepContext().Before(h.BeforeStep)
	sc.StepContext().After(h.AfterStep)
}

// InitializeTestSuite releases every session still held when the suite ends.
func (h *Hooks) InitializeTestSuite(ts *godog.TestSuiteContext) {
	ts.AfterSuite(func() {
		h.Close(context.Background())
	})
}

// Close releases all sessions of the manager. Calling it more than once is a no-op.
func (h *Hooks) Close(ctx context.Context) {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	h.mu.Unlock()

	h.opts.Manager.Close(ctx)
}

// DefaultTimeout returns the default timeout established for the process.
func (h *Hooks) DefaultTimeout() time.Duration {
	h.timeoutOnce.Do(func() {
		h.defaultTimeout = h.opts.DefaultTimeout
		if h.defaultTimeout <= 0 {
			h.defaultTimeout = h.config.StepTimeout
		}
		if h.defaultTimeout <= 0 {
			h.defaultTimeout = config.DefaultStepTimeout
		}
		h.opts.Logger.Debug("Established default timeout", slog.Duration("timeout", h.defaultTimeout))
	})
	return h.defaultTimeout
}

// Results returns the results of all finished scenarios in completion order.
func (h *Hooks) Results() []Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Result(nil), h.results...)
}

// BeforeScenario acquires the scenario's session and stores a fresh world in the context.
// An acquisition failure fails the scenario before its first step.
func (h *Hooks) BeforeScenario(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
	timeout := h.DefaultTimeout()

	sess, _ := h.opts.Manager.GetOrCreate(sc.Id, sc.Name)
	sess.SetDefaultTimeout(timeout)

	logger := slog.New(capture.NewLogHandler(sess.Logs(), h.opts.Logger.Handler(), slog.LevelDebug)).
		With(slog.String("scenario", sc.Name))

	w := &World{
		ScenarioID: sc.Id,
		Scenario:   sc.Name,
		Config:     h.config,
		Session:    sess,
		Data:       NewData(),
		Logger:     logger,
	}

	run := &scenarioRun{started: time.Now()}
	if h.opts.ScenarioTimeout > 0 {
		ctx, run.cancel = context.WithTimeout(ctx, h.opts.ScenarioTimeout)
	} else {
		ctx, run.cancel = context.WithCancel(ctx)
	}
	scenarioCtx := ctx
	// Releasing the session makes a blocked browser call return
	run.stop = context.AfterFunc(scenarioCtx, func() {
		if errors.Is(scenarioCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Scenario timed out, releasing session", slog.Duration("timeout", h.opts.ScenarioTimeout))
		} else {
			logger.Warn("Scenario canceled, releasing session", slog.Any("cause", context.Cause(scenarioCtx)))
		}
		sess.Release(context.Background())
	})
	h.mu.Lock()
	h.running[sc.Id] = run
	h.mu.Unlock()

	ctx = With(ctx, w)

	if err := sess.Acquire(ctx); err != nil {
		logger.Error("Acquiring browser session failed", slog.Any("error", err))
		return ctx, fmt.Errorf("acquiring browser session: %w", err)
	}

	logger.Info("Scenario started", slog.String("target", sess.TargetURL()))

	return ctx, nil
}

// AfterScenario captures failure evidence, releases the session and attaches the
// exported artifacts to the report. It never fails the scenario.
func (h *Hooks) AfterScenario(ctx context.Context, sc *godog.Scenario, scenarioErr error) (context.Context, error) {
	h.mu.Lock()
	run := h.running[sc.Id]
	delete(h.running, sc.Id)
	h.mu.Unlock()

	if run != nil && run.stop != nil {
		run.stop()
	}

	logger := h.opts.Logger.With(slog.String("scenario", sc.Name))
	if w, err := FromContext(ctx); err == nil {
		logger = w.Logger
	}

	var attachments []godog.Attachment
	if scenarioErr != nil {
		logger.Error("Scenario failed", slog.Any("error", scenarioErr))
		attachments = append(attachments, h.failureAttachments(logger, sc)...)
	}

	set := h.opts.Manager.Delete(context.Background(), sc.Id)
	attachments = append(attachments, h.artifactAttachments(logger, set, scenarioErr != nil)...)

	if len(attachments) > 0 {
		ctx = godog.Attach(ctx, attachments...)
	}

	result := Result{
		Scenario:  sc.Name,
		Passed:    scenarioErr == nil,
		Artifacts: set,
	}
	if scenarioErr != nil {
		result.Err = scenarioErr.Error()
	}
	if run != nil {
		result.Duration = time.Since(run.started)
		if run.cancel != nil {
			run.cancel()
		}
	}

	h.mu.Lock()
	h.results = append(h.results, result)
	h.mu.Unlock()
	h.opts.Metrics.ScenarioFinished(scenarioErr == nil)

	return ctx, nil
}

func (h *Hooks) failureAttachments(logger *slog.Logger, sc *godog.Scenario) (attachments []godog.Attachment) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Capturing failure snapshot panicked", slog.Any("panic", r))
		}
	}()

	sess := h.opts.Manager.Get(sc.Id)
	if sess == nil || sess.State() != session.StateReady {
		return nil
	}

	snap, err := sess.Snapshot()
	if err != nil {
		logger.Warn("Capturing failure snapshot incomplete", slog.Any("error", err))
	}

	key := sess.Key()
	if len(snap.Screenshot) > 0 {
		attachments = append(attachments, godog.Attachment{
			Body:      snap.Screenshot,
			FileName:  key + ".png",
			MediaType: report.PNGMediaType,
		})
	}
	if snap.HTML != "" {
		title := "DOM at " + snap.URL
		if snap.Truncated {
			title += " (truncated)"
		}
		dom, err := report.RenderString(report.HighlightHTML(title, snap.HTML))
		if err != nil {
			logger.Warn("Rendering DOM snapshot failed", slog.Any("error", err))
		} else {
			attachments = append(attachments, godog.Attachment{
				Body:      []byte(dom),
				FileName:  key + ".dom.html",
				MediaType: report.HTMLMediaType,
			})
		}
	}
	return attachments
}

func (h *Hooks) artifactAttachments(logger *slog.Logger, set session.ArtifactSet, failed bool) []godog.Attachment {
	var attachments []godog.Attachment
	reportDir := h.config.ReportsDir

	if set.TracePath != "" {
		link, err := report.RenderString(report.TraceLink(report.RelativeLink(reportDir, set.TracePath), "Download trace"))
		if err != nil {
			logger.Warn("Rendering trace link failed", slog.Any("error", err))
		} else {
			attachments = append(attachments, godog.Attachment{
				Body:      []byte(link),
				FileName:  "trace",
				MediaType: report.HTMLMediaType,
			})
		}
	}
	if set.VideoPath != "" && failed && h.opts.AttachVideo {
		player, err := report.RenderString(report.VideoLink(report.RelativeLink(reportDir, set.VideoPath)))
		if err != nil {
			logger.Warn("Rendering video link failed", slog.Any("error", err))
		} else {
			attachments = append(attachments, godog.Attachment{
				Body:      []byte(player),
				FileName:  "video",
				MediaType: report.HTMLMediaType,
			})
		}
	}
	return attachments
}

type stepDeadline struct {
	parent context.Context
	cancel context.CancelFunc
}

type stepDeadlineKeyType struct{}

var stepDeadlineKey = stepDeadlineKeyType{}

// BeforeStep bounds the step with the default timeout.
func (h *Hooks) BeforeStep(ctx context.Context, st *godog.Step) (context.Context, error) {
	stepCtx, cancel := context.WithTimeout(ctx, h.DefaultTimeout())
	return context.WithValue(stepCtx, stepDeadlineKey, stepDeadline{parent: ctx, cancel: cancel}), nil
}

// AfterStep releases the step deadline and hands the scenario context to the next step.
func (h *Hooks) AfterStep(ctx context.Context, st *godog.Step, status godog.StepResultStatus, err error) (context.Context, error) {
	if d, ok := ctx.Value(stepDeadlineKey).(stepDeadline); ok {
		d.cancel()
		return d.parent, nil
	}
	return ctx, nil
}

// StepDeadline returns the time left for the current step, or fallback if the context has no deadline.
func StepDeadline(ctx context.Context, fallback time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return fallback
	}
	return max(time.Until(deadline), 0)
}
