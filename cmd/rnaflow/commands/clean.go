package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/rnaflow/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove run records and task logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outputs, _ := cmd.Flags().GetBool("outputs")
			return c.app.Clean(cmd.Context(), app.CleanOptions{
				LoadOptions: loadOptions(cmd),
				Outputs:     outputs,
			})
		},
	}
	cmd.Flags().Bool("outputs", false, "Also remove every output declared by the pipeline")
	return cmd
}
