package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.trai.ch/rnaflow/internal/app"
	"go.trai.ch/rnaflow/internal/engine/scheduler"
	"go.trai.ch/rnaflow/internal/ui/style"
)

func (c *CLI) newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [targets...]",
		Short: "List the tasks a run would execute and why",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			entries, err := c.app.Plan(cmd.Context(), args, app.PlanOptions{
				LoadOptions: loadOptions(cmd),
				Force:       force,
			})
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Plan as if every selected task were forced")
	return cmd
}

// printPlan writes one aligned line per task followed by a count.
func printPlan(w io.Writer, entries []scheduler.PlanEntry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintf(w, "%s Everything is up to date\n", style.Check)
		return
	}

	width := 0
	for _, e := range entries {
		width = max(width, lipgloss.Width(e.Task))
	}
	for _, e := range entries {
		name := style.TaskName(e.Task)
		pad := strings.Repeat(" ", width-lipgloss.Width(e.Task))
		_, _ = fmt.Fprintf(w, "%s %s%s  %s\n", style.Arrow, name, pad, style.Reason(string(e.Reason)))
	}
	_, _ = fmt.Fprintf(w, "%d task(s) would run\n", len(entries))
}
