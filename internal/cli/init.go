package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/icryo/backplane-tui/internal/config"
	"github.com/icryo/backplane-tui/internal/errors"
)

var initGlobal bool

// initCmd writes a default config file.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a backplane config file",
	Long: `Write a config file populated with the defaults.

By default the file is created as .backplane.yaml in the current directory.
With --global it is created at ~/.config/backplane/config.yaml instead.

Examples:
  backplane init
  backplane init --global`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigFileName
		if initGlobal {
			home, err := os.UserHomeDir()
			if err != nil {
				return errors.WrapWithCode(err, errors.ErrConfig,
					"Cannot determine home directory",
					"Run without --global to create a local config instead")
			}
			path = filepath.Join(home, config.GlobalConfigDir, config.GlobalConfigFile)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initGlobal, "global", false, "write the global config instead of a local one")
	rootCmd.AddCommand(initCmd)
}
