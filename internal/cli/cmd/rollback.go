package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/withObsrvr/stack-deploy-workflow/internal/cleanup"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Remove the stack and everything it created",
	Long:  "Delete the target's storage resources (including versioned objects and delete markers), request stack deletion, and restore the pre-deployment configuration artifacts.",
	RunE:  runRollback,
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	if !confirm(fmt.Sprintf("Delete all resources of %s? This cannot be undone.", target)) {
		fmt.Println("Aborted.")
		return nil
	}

	r, err := newRunner()
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Println(color.YellowString("Rolling back %s", target))
	rpt, err := r.Rollback(ctx)
	if err != nil {
		reportFailure(r, err)
		return fmt.Errorf("rollback failed")
	}

	for _, res := range rpt.Resources() {
		state, _ := rpt.State(res)
		switch state {
		case cleanup.StateFailed:
			fmt.Println(color.RedString("  ❌ %s: FAILED", res))
		case cleanup.StateAbsent:
			fmt.Printf("  %s: already absent\n", res)
		default:
			fmt.Println(color.GreenString("  ✅ %s: deleted", res))
		}
	}

	if rpt.Failed() {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", color.RedString("❌ Some resources could not be removed. Details: %s", r.LogPath()))
		return fmt.Errorf("rollback incomplete")
	}

	fmt.Println(color.GreenString("✅ Rollback completed"))
	return nil
}
