package app

import (
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func NewVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			titleColor := color.New(color.FgCyan, color.Bold)
			w := cmd.OutOrStdout()

			titleColor.Fprint(w, "goodata version: ")
			cmd.Println(Version)
			titleColor.Fprint(w, "Git commit: ")
			cmd.Println(GitCommit)
			titleColor.Fprint(w, "Build date: ")
			cmd.Println(BuildDate)
			titleColor.Fprint(w, "Go version: ")
			cmd.Println(runtime.Version())
		},
	}
}
