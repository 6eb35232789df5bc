package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/withObsrvr/stack-deploy-workflow/internal/deploy"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Resume an interrupted deployment",
	Long:  "Read the checkpoint left by an interrupted run and re-enter the pipeline at the appropriate stage. Stages are idempotent, so re-running completed work is safe.",
	RunE:  runRecover,
}

func init() {
	rootCmd.AddCommand(recoverCmd)
}

func runRecover(cmd *cobra.Command, args []string) error {
	r, err := newRunner()
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Println(color.GreenString("🚀 Recovering deployment of %s", target))
	if err := r.Recover(ctx); err != nil {
		if errors.Is(err, deploy.ErrNoCheckpoint) {
			fmt.Println(color.YellowString("⚠️  No checkpoint found; nothing to recover. Run `deployctl deploy` instead."))
			return fmt.Errorf("no checkpoint to recover")
		}
		reportFailure(r, err)
		return fmt.Errorf("recovery failed")
	}

	fmt.Println(color.GreenString("✅ Deployment completed successfully"))
	return nil
}
