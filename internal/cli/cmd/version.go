package cmd

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Build metadata, recorded by the main package from its -ldflags values.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// SetVersionInfo records the build metadata injected into the main package.
func SetVersionInfo(v, commit, date string) {
	if v != "" {
		version = v
	}
	if commit != "" {
		gitCommit = commit
	}
	if date != "" {
		buildDate = date
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		title := color.New(color.FgCyan, color.Bold)
		label := color.New(color.FgGreen)

		title.Printf("deployctl %s\n", version)
		fmt.Println()

		label.Print("Git commit: ")
		fmt.Println(gitCommit)

		label.Print("Built:      ")
		fmt.Println(buildDate)

		label.Print("Go version: ")
		fmt.Println(runtime.Version())

		label.Print("OS/Arch:    ")
		fmt.Printf("%s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
