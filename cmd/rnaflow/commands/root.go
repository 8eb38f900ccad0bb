// Package commands implements the CLI commands for the rnaflow pipeline runner.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/rnaflow/internal/app"
	"go.trai.ch/rnaflow/internal/build"
	"go.trai.ch/rnaflow/internal/core/domain"
)

// CLI represents the command line interface for rnaflow.
type CLI struct {
	app     *app.App
	rootCmd *cobra.Command
}

// New creates a new CLI instance with the given app.
func New(a *app.App) *CLI {
	rootCmd := &cobra.Command{
		Use:           "rnaflow",
		Short:         "An RNA-Seq pipeline runner with make-like staleness",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().StringP("config", "c", domain.RunConfigFileName, "Path to the run configuration")
	rootCmd.PersistentFlags().StringP("pipeline", "p", domain.PipelineFileName, "Path to the pipeline definition")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newPlanCmd())
	rootCmd.AddCommand(c.newValidateCmd())
	rootCmd.AddCommand(c.newDGECmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput redirects command output. Used for testing.
func (c *CLI) SetOutput(w io.Writer) {
	c.rootCmd.SetOut(w)
	c.rootCmd.SetErr(w)
}

func loadOptions(cmd *cobra.Command) app.LoadOptions {
	configPath, _ := cmd.Flags().GetString("config")
	pipelinePath, _ := cmd.Flags().GetString("pipeline")
	return app.LoadOptions{ConfigPath: configPath, PipelinePath: pipelinePath}
}
