package cli

import (
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/networkteam/rocketworld/config"
)

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		path = os.Getenv("ROCKET_CONFIG")
	}
	if path == "" {
		return config.Resolve(), nil
	}
	return config.Load(path)
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.config)
			if err != nil {
				return err
			}
			renderConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func renderConfig(w io.Writer, cfg config.Config) {
	defaulted := cfg.Defaulted()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"KEY", "VALUE", "SOURCE"})

	row := func(env, key string, value any) {
		source := "set"
		if slices.Contains(defaulted, key) {
			source = text.FgYellow.Sprint("default")
		}
		t.AppendRow(table.Row{env, value, source})
	}

	row("ROCKET_BASE_URL", "targetURL", cfg.TargetURL)
	row("HEADLESS", "headless", cfg.Headless)
	row("IGNORE_HTTPS_ERRORS", "ignoreTLSErrors", cfg.IgnoreTLSErrors)
	row("ROCKET_BROWSER", "browser", cfg.Browser)
	row("ROCKET_ARTIFACTS_DIR", "artifactsDir", cfg.ArtifactsDir)
	row("ROCKET_REPORTS_DIR", "reportsDir", cfg.ReportsDir)
	row("ROCKET_STEP_TIMEOUT", "stepTimeout", cfg.StepTimeout.Round(time.Millisecond))
	row("ROCKET_SCENARIO_TIMEOUT", "scenarioTimeout", cfg.ScenarioTimeout.Round(time.Millisecond))
	row("ROCKET_EMAIL", "email", cfg.Email)
	row("ROCKET_PASSWORD", "password", mask(cfg.Password))

	t.Render()
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return fmt.Sprintf("******** (%d chars)", len(secret))
}
