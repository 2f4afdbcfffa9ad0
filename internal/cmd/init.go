package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/stager/internal/config"
	"github.com/harrison/stager/internal/filelock"
)

const configHeader = `# stager configuration
# log_level: trace | debug | info | warn | error
# lock_timeout: how long to wait for a busy destination (0s fails immediately)
# history.db_path: empty uses $STAGER_HOME/history/runs.db
`

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a default .stager/config.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path := filepath.Join(dir, config.DirName, "config.yaml")

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			data, err := config.DefaultConfig().Marshal()
			if err != nil {
				return fmt.Errorf("render default config: %w", err)
			}
			if err := filelock.LockAndWrite(path, append([]byte(configHeader), data...)); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
