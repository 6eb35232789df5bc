package cmd

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the checkpoint and stack state",
	Long:  "Print the last completed stage from the local checkpoint, if any, and the current status of the target stack.",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	r, err := newRunner()
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, cancel := signalContext()
	defer cancel()

	return r.Status(ctx)
}
