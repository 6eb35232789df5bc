package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/withObsrvr/stack-deploy-workflow/internal/cli/runner"
	"github.com/withObsrvr/stack-deploy-workflow/internal/deploy"
)

var (
	cfgFile    string
	target     string
	stateDir   string
	projectDir string
	seedDir    string
	verbose    bool
	assumeYes  bool

	// Legacy single-binary entry points, kept as root flags so that
	// `deployctl --recover` and `deployctl --clean` behave like the
	// corresponding sub-commands.
	recoverFlag bool
	cleanFlag   bool

	rootCmd = &cobra.Command{
		Use:   "deployctl",
		Short: "Chatbot stack deployment orchestrator",
		Long:  color.CyanString(`deployctl - provision, verify, and tear down the chatbot stack`),
		Args:  cobra.NoArgs,
		RunE:  runRoot,
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "deploy-config.yaml", "deployment configuration document")
	rootCmd.PersistentFlags().StringVar(&target, "target", "chatbot-stack", "deployment target (stack name)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", ".deploystack", "directory for checkpoint, backups, and log")
	rootCmd.PersistentFlags().StringVar(&projectDir, "project-dir", ".", "directory containing the infra template and widget sources")
	rootCmd.PersistentFlags().StringVar(&seedDir, "seed-dir", "", "directory of documents to bootstrap (default: <project-dir>/data/seed)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")

	rootCmd.Flags().BoolVar(&recoverFlag, "recover", false, "resume an interrupted deployment (same as the recover sub-command)")
	rootCmd.Flags().BoolVar(&cleanFlag, "clean", false, "remove local state (same as the clean sub-command)")

	viper.BindPFlag("target", rootCmd.PersistentFlags().Lookup("target"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("DEPLOYCTL")

	if t := viper.GetString("target"); t != "" {
		target = t
	}
}

// runRoot makes a bare `deployctl` invocation behave like `deployctl deploy`,
// honoring the legacy --recover and --clean flags first.
func runRoot(cmd *cobra.Command, args []string) error {
	if recoverFlag && cleanFlag {
		return fmt.Errorf("--recover and --clean are mutually exclusive")
	}
	if recoverFlag {
		return runRecover(cmd, args)
	}
	if cleanFlag {
		return runClean(cmd, args)
	}
	return runDeploy(cmd, args)
}

// newRunner builds the orchestrator from the resolved flags.
func newRunner() (*runner.Runner, error) {
	return runner.New(runner.Options{
		Target:      target,
		ConfigFile:  cfgFile,
		StateDir:    stateDir,
		ProjectDir:  projectDir,
		SeedDataDir: seedDir,
		Verbose:     verbose,
	})
}

// signalContext cancels on Ctrl-C so an interrupted run still leaves a
// usable checkpoint behind.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// confirm prompts on stdin unless --yes was given.
func confirm(prompt string) bool {
	if assumeYes {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// reportFailure prints the failing stage, the durable log location, and the
// commands that get the operator unstuck.
func reportFailure(r *runner.Runner, err error) {
	fmt.Fprintln(os.Stderr, color.RedString("❌ %v", err))

	var failure *deploy.StageFailure
	var precondition *deploy.PreconditionError
	switch {
	case errors.As(err, &failure):
		fmt.Fprintln(os.Stderr, color.YellowString("Stage %q failed. Details: %s", failure.Stage, r.LogPath()))
	case errors.As(err, &precondition):
		fmt.Fprintln(os.Stderr, color.YellowString("Stage %q cannot run. Details: %s", precondition.Stage, r.LogPath()))
	default:
		fmt.Fprintln(os.Stderr, color.YellowString("Details: %s", r.LogPath()))
	}

	fmt.Fprintln(os.Stderr, "To continue:")
	fmt.Fprintln(os.Stderr, "  deployctl recover    resume from the last completed stage")
	fmt.Fprintln(os.Stderr, "  deployctl clean      discard local state and start over")
	fmt.Fprintln(os.Stderr, "  deployctl rollback   remove everything this run created")
}
