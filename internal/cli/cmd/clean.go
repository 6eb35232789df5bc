package cmd

import (
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove local state (checkpoint, backups, log)",
	Long:  "Delete the local state directory. Cloud resources are never touched; use rollback for that.",
	RunE:  runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	r, err := newRunner()
	if err != nil {
		return err
	}
	return r.Clean()
}
