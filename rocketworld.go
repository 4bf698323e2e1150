package rocketworld

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cucumber/godog"

	"github.com/networkteam/rocketworld/config"
	"github.com/networkteam/rocketworld/driver"
	"github.com/networkteam/rocketworld/metrics"
	"github.com/networkteam/rocketworld/session"
	"github.com/networkteam/rocketworld/steps"
	"github.com/networkteam/rocketworld/world"
)

// Instance wires configuration, browser sessions and scenario hooks for a test run.
type Instance struct {
	config  config.Config
	driver  *driver.Driver
	manager *session.Manager
	hooks   *world.Hooks
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Options struct {
	// Config is the resolved run configuration.
	// Default: nil, will use config.Resolve()
	Config *config.Config
	// Launcher starts browser processes.
	// Default: nil, a playwright driver is started for Config.Browser
	Launcher session.Launcher
	// InstallBrowsers downloads the driver and browser before starting it.
	InstallBrowsers bool
	// MaxBrowsers limits concurrently running browser processes of the started driver.
	// Default: 0 (unlimited)
	MaxBrowsers int64

	// Logger is the parent of all scenario loggers.
	// Default: slog.Default()
	Logger *slog.Logger
	// Metrics records lifecycle counters.
	// Default: nil, will use metrics.New()
	Metrics *metrics.Metrics

	// ReapAfter releases sessions held longer than this.
	// Default: 0, sessions are only released by their scenario
	ReapAfter time.Duration
	// AttachVideo adds recorded videos of failed scenarios to the report.
	AttachVideo bool
	// DisableTracing turns off the tracing recorder.
	DisableTracing bool
	// DisableVideo turns off video recording.
	DisableVideo bool
}

// New creates an instance from the environment with a playwright driver.
func New() (*Instance, error) {
	return NewWithOptions(Options{})
}

// NewWithOptions creates an instance with the specified options.
// Default options are the zero value of Options.
func NewWithOptions(options Options) (*Instance, error) {
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Metrics == nil {
		options.Metrics = metrics.New()
	}

	cfg := config.Resolve()
	if options.Config != nil {
		cfg = *options.Config
	}
	if defaulted := cfg.Defaulted(); len(defaulted) > 0 {
		options.Logger.Debug("Using defaults for unset configuration", slog.Any("keys", defaulted))
	}

	instance := &Instance{
		config:  cfg,
		metrics: options.Metrics,
		logger:  options.Logger,
	}

	launcher := options.Launcher
	if launcher == nil {
		d, err := driver.Start(driver.Options{
			Browser:     cfg.Browser,
			MaxBrowsers: options.MaxBrowsers,
			Install:     options.InstallBrowsers,
			Logger:      options.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("starting browser driver: %w", err)
		}
		instance.driver = d
		launcher = d
	}

	instance.manager = session.NewManager(session.Options{
		Config:         cfg,
		Launcher:       launcher,
		Logger:         options.Logger,
		Metrics:        options.Metrics,
		DisableTracing: options.DisableTracing,
		DisableVideo:   options.DisableVideo,
		ReapAfter:      options.ReapAfter,
	})
	instance.hooks = world.NewHooks(world.Options{
		Manager:     instance.manager,
		Logger:      options.Logger,
		Metrics:     options.Metrics,
		AttachVideo: options.AttachVideo,
	})

	return instance, nil
}

// Config returns the resolved configuration of the run.
func (i *Instance) Config() config.Config {
	return i.config
}

// Manager returns the session manager.
func (i *Instance) Manager() *session.Manager {
	return i.manager
}

// Results returns the results of all finished scenarios.
func (i *Instance) Results() []world.Result {
	return i.hooks.Results()
}

// MetricsHandler serves the lifecycle metrics in the Prometheus exposition format.
func (i *Instance) MetricsHandler() http.Handler {
	return i.metrics.Handler()
}

// InitializeScenario registers the lifecycle hooks and the common steps.
func (i *Instance) InitializeScenario(sc *godog.ScenarioContext) {
	i.hooks.InitializeScenario(sc)
	steps.Register(sc)
}

// InitializeTestSuite releases left over sessions after the suite.
func (i *Instance) InitializeTestSuite(ts *godog.TestSuiteContext) {
	i.hooks.InitializeTestSuite(ts)
}

// TestSuite returns a suite running the given options with all hooks and steps.
// Extra initializers register project specific steps.
func (i *Instance) TestSuite(name string, opts *godog.Options, initializers ...func(*godog.ScenarioContext)) godog.TestSuite {
	return godog.TestSuite{
		Name:                 name,
		TestSuiteInitializer: i.InitializeTestSuite,
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			i.InitializeScenario(sc)
			for _, initializer := range initializers {
				initializer(sc)
			}
		},
		Options: opts,
	}
}

// Close releases every session and stops the driver.
func (i *Instance) Close() error {
	i.hooks.Close(context.Background())
	if i.driver != nil {
		if err := i.driver.Stop(); err != nil {
			return fmt.Errorf("stopping browser driver: %w", err)
		}
	}
	return nil
}
