package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.trai.ch/rnaflow/internal/ui/style"
)

func (c *CLI) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and report inputs nothing can provide",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := c.app.Validate(cmd.Context(), loadOptions(cmd))
			if report != nil {
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "%d task(s) from %d rule(s) over %d sample(s): %s\n",
					report.Tasks, len(report.Rules), len(report.Samples), strings.Join(report.Samples, ", "))
				if err == nil {
					_, _ = fmt.Fprintf(out, "%s Every input exists or is produced by a task\n", style.Check)
				}
			}
			return err
		},
	}
}
