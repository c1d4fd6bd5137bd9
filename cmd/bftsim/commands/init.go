package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	cfg "github.com/celestiaorg/headerbft/config"
)

// InitFilesCmd initialises a fresh home directory.
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the config and data directories",
	RunE:  initFiles,
}

func initFiles(cmd *cobra.Command, args []string) error {
	return initFilesWithConfig(config)
}

// initFilesWithConfig writes the merged config so flag and environment
// overrides persist.
func initFilesWithConfig(config *cfg.Config) error {
	configFile := filepath.Join(config.RootDir, cfg.DefaultConfigDir, cfg.DefaultConfigFileName)
	cfg.WriteConfigFile(configFile, config)
	logger.Info("Wrote config file", "path", configFile)
	return nil
}
