package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/rnaflow/internal/app"
	"go.trai.ch/rnaflow/internal/engine/dge"
)

func (c *CLI) newDGECmd() *cobra.Command {
	var opts app.DGEOptions
	cmd := &cobra.Command{
		Use:   "dge",
		Short: "Run differential expression on a count matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := c.app.DGE(cmd.Context(), opts)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.CountsPath, "counts", "", "Count matrix (feature_id and one column per sample)")
	flags.StringVar(&opts.DesignPath, "design", "", "Design table (sample and one column per factor)")
	flags.StringVarP(&opts.OutPath, "out", "o", "", "Result table to write")
	flags.StringVar(&opts.Formula, "formula", dge.DefaultFormula, "Design formula")
	flags.StringVar(&opts.Contrast, "contrast", "", "Contrast as factor,numerator,denominator")
	flags.StringVar(&opts.Test, "test", dge.TestWald, "Test to run: wald or lrt")
	flags.StringVar(&opts.Reduced, "reduced", "", "Reduced formula for the lrt")
	flags.Float64Var(&opts.Alpha, "alpha", 0.05, "Adjusted p-value cutoff for the summary")
	_ = cmd.MarkFlagRequired("counts")
	_ = cmd.MarkFlagRequired("design")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
