package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gnoverse/pplint/lint"
)

var forceInit bool

// initCmd: pplint init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new linter configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		path := cfgFile
		if path == "" {
			path = lint.DefaultConfigPath
		}
		if err := initConfigurationFile(path, forceInit); err != nil {
			logger.Error("Error initializing config file", zap.Error(err))
			os.Exit(1)
		}
		fmt.Printf("Configuration file created: %s\n", path)
	},
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing configuration file")
}

// initConfigurationFile writes the default configuration, listing every
// rule with its default severity.
func initConfigurationFile(configurationPath string, force bool) error {
	if _, err := os.Stat(configurationPath); err == nil && !force {
		return fmt.Errorf("%s already exists", configurationPath)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	d, err := yaml.Marshal(lint.DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(configurationPath, d, 0o644)
}
