package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for stager
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stager",
		Short: "Stage matched files into a numbered directory",
		Long: `Stager resets a destination directory and fills it with copies of every
file a glob pattern matches, named 1, 2, 3, ... in sorted path order.

Jobs can be run ad hoc, applied from a YAML or Markdown plan, re-run on
change with --watch, and checked later against the recorded run history.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .stager/config.yaml)")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewApplyCommand())
	cmd.AddCommand(NewVerifyCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewInitCommand())

	return cmd
}
