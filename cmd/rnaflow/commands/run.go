package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/rnaflow/internal/app"
	"go.trai.ch/rnaflow/internal/core/domain"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [targets...]",
		Short: "Run targets and everything they depend on",
		Long: "Run targets and everything they depend on. A target is \"all\", a task name, " +
			"a rule name or an output path. Without targets, everything is run.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{domain.AllTarget}
			}
			jobs, _ := cmd.Flags().GetInt("jobs")
			force, _ := cmd.Flags().GetBool("force")
			return c.app.Run(cmd.Context(), args, app.RunOptions{
				LoadOptions: loadOptions(cmd),
				Jobs:        jobs,
				Force:       force,
			})
		},
	}
	cmd.Flags().IntP("jobs", "j", 0, "Thread budget shared by running tasks (defaults to threads of the run configuration)")
	cmd.Flags().BoolP("force", "f", false, "Re-execute every selected task regardless of staleness")
	return cmd
}
