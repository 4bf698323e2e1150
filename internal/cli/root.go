// Package cli implements the rocketworld command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/networkteam/rocketworld/session"
)

// Exit codes of the command line.
const (
	ExitCodeSuccess = 0
	// ExitCodeFailed indicates failed or undefined scenarios.
	ExitCodeFailed = 1
	// ExitCodeError indicates that the run could not be started.
	ExitCodeError = 2
)

// SuiteFailedError is returned by the run command when the suite did not pass.
type SuiteFailedError struct {
	Status int
}

func (e *SuiteFailedError) Error() string {
	return fmt.Sprintf("suite failed with status %d", e.Status)
}

// RootOptions configures the command tree.
type RootOptions struct {
	// Launcher replaces the playwright driver. Optional.
	Launcher session.Launcher
}

type rootFlags struct {
	verbose bool
	config  string
}

// NewRootCmd creates the rocketworld command with all subcommands.
func NewRootCmd(opts RootOptions) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "rocketworld",
		Short: "Run the Rocket end-to-end feature suite",
		Long: `rocketworld runs Gherkin features against the Rocket web application.
Every scenario gets its own browser with tracing and video recording,
artifacts are written to the artifacts and reports directories.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log debug output")
	cmd.PersistentFlags().StringVar(&flags.config, "config", "", "YAML configuration file, environment variables take precedence (env: ROCKET_CONFIG)")

	cmd.AddCommand(
		newRunCmd(flags, opts),
		newInstallCmd(),
		newConfigCmd(flags),
	)

	return cmd
}

// ExitCode maps an error returned by the command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	var failed *SuiteFailedError
	if errors.As(err, &failed) {
		return ExitCodeFailed
	}
	return ExitCodeError
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
