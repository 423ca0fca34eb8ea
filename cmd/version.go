package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information, injected at build time via ldflags.
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentkb %s\n", AppVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "Build Time: %s\n", BuildTime)
			fmt.Fprintf(cmd.OutOrStdout(), "Git Commit: %s\n", GitCommit)
		},
	}
}
