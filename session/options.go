package session

import (
	"log/slog"
	"time"

	"github.com/networkteam/rocketworld/capture"
	"github.com/networkteam/rocketworld/config"
	"github.com/networkteam/rocketworld/metrics"
)

const (
	// DefaultStepTimeout is applied to every browser context when no timeout is configured.
	DefaultStepTimeout = config.DefaultStepTimeout
	// DefaultMaxSnapshotSize caps the DOM captured by Snapshot.
	DefaultMaxSnapshotSize = 1 << 20
)

// Options configures sessions and the Manager creating them.
type Options struct {
	// Config is the resolved run configuration.
	Config config.Config
	// Launcher starts browser processes. Required.
	Launcher Launcher

	// Logger receives release and export warnings.
	// Default: slog.Default()
	Logger *slog.Logger
	// Metrics records lifecycle counters. Optional.
	Metrics *metrics.Metrics

	// StepTimeout is the default timeout for all operations on the context.
	// Default: Config.StepTimeout, then DefaultStepTimeout
	StepTimeout time.Duration
	// ConsoleCapacity is the number of console entries kept per session.
	// Default: capture.DefaultConsoleCapacity
	ConsoleCapacity uint64
	// LogCapacity is the number of log records kept per session.
	// Default: capture.DefaultLogCapacity
	LogCapacity uint64
	// MaxSnapshotSize is the number of bytes of page content kept by Snapshot.
	// Default: DefaultMaxSnapshotSize
	MaxSnapshotSize int
	// DisableTracing turns off the tracing recorder.
	DisableTracing bool
	// DisableVideo turns off video recording.
	DisableVideo bool

	// ReapAfter releases sessions still held this long after creation.
	// Default: 0, sessions are only released explicitly
	ReapAfter time.Duration

	transitions *capture.Notifier[Transition]
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.StepTimeout == 0 {
		o.StepTimeout = o.Config.StepTimeout
	}
	if o.StepTimeout == 0 {
		o.StepTimeout = DefaultStepTimeout
	}
	if o.ConsoleCapacity == 0 {
		o.ConsoleCapacity = capture.DefaultConsoleCapacity
	}
	if o.LogCapacity == 0 {
		o.LogCapacity = capture.DefaultLogCapacity
	}
	if o.MaxSnapshotSize == 0 {
		o.MaxSnapshotSize = DefaultMaxSnapshotSize
	}
	return o
}
