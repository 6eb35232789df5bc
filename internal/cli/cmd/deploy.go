package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Provision the chatbot stack from scratch",
	Long:  "Run the full deployment pipeline: prerequisites, environment, dependencies, configuration, provisioning, verification, data bootstrap, and finalization.",
	Example: `  deployctl deploy
  deployctl deploy --target staging-chatbot --yes`,
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	fmt.Println(color.CyanString("Target: %s", target))
	fmt.Println("Estimated monthly cost (light usage):")
	fmt.Println("  Storage and vector index   ~$5")
	fmt.Println("  Model invocations          usage-based")
	fmt.Println("  API gateway and compute    ~$3")
	if !confirm("Proceed with deployment?") {
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

	fmt.Println(color.GreenString("🚀 Deploying %s", target))
	if err := r.Deploy(ctx); err != nil {
		reportFailure(r, err)
		return fmt.Errorf("deployment failed")
	}

	fmt.Println(color.GreenString("✅ Deployment completed successfully"))
	return nil
}
