package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/networkteam/rocketworld/driver"
)

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "install [browsers...]",
		Short:     "Install the playwright driver and browsers",
		Long:      "Install the playwright driver and the given browsers, chromium if none are given.",
		ValidArgs: driver.Browsers,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, b := range args {
				if !slices.Contains(driver.Browsers, b) {
					return fmt.Errorf("unknown browser %q, expected one of %v", b, driver.Browsers)
				}
			}
			if err := driver.Install(args...); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Installed playwright")
			return nil
		},
	}
}
