package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfg "github.com/celestiaorg/headerbft/config"
	"github.com/celestiaorg/headerbft/libs/log"
)

const (
	// HomeFlag is the flag selecting the root directory.
	HomeFlag = "home"
	// EnvPrefix prefixes environment variables overriding config keys.
	EnvPrefix = "HEADERBFT"
)

var (
	config = cfg.DefaultConfig()
	logger = log.NewTMLogger(log.NewSyncWriter(os.Stdout))
)

func init() {
	registerFlagsRootCmd(RootCmd)
}

func registerFlagsRootCmd(cmd *cobra.Command) {
	cmd.PersistentFlags().String(HomeFlag, defaultHome(), "directory for config and data")
	cmd.PersistentFlags().String("log_level", config.LogLevel, "log level")
	cmd.PersistentFlags().String("log_format", config.LogFormat, "log format: plain or json")
}

func defaultHome() string {
	if home := os.Getenv(EnvPrefix + "_HOME"); home != "" {
		return home
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".headerbft"
	}
	return filepath.Join(home, ".headerbft")
}

// ParseConfig retrieves the default environment configuration, sets up the
// root and ensures that the root exists. Flags take precedence over the
// environment, which takes precedence over the config file.
func ParseConfig(cmd *cobra.Command) (*cfg.Config, error) {
	home, err := cmd.Flags().GetString(HomeFlag)
	if err != nil {
		return nil, err
	}
	cfg.EnsureRoot(home)

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(filepath.Join(home, cfg.DefaultConfigDir))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	conf := cfg.DefaultConfig()
	if err := v.Unmarshal(conf); err != nil {
		return nil, err
	}
	conf.SetRoot(home)

	if err := conf.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}
	return conf, nil
}

func newLogger(conf *cfg.Config) (log.Logger, error) {
	var l log.Logger
	if conf.LogFormat == cfg.LogFormatJSON {
		l = log.NewTMJSONLogger(log.NewSyncWriter(os.Stdout))
	} else {
		l = log.NewTMLogger(log.NewSyncWriter(os.Stdout))
	}
	option, err := log.AllowLevel(conf.LogLevel)
	if err != nil {
		return nil, err
	}
	return log.NewFilter(l, option), nil
}

// RootCmd is the root command for bftsim.
var RootCmd = &cobra.Command{
	Use:   "bftsim",
	Short: "Header based BFT finality simulator",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		if cmd.Name() == VersionCmd.Name() {
			return nil
		}

		config, err = ParseConfig(cmd)
		if err != nil {
			return err
		}

		logger, err = newLogger(config)
		if err != nil {
			return err
		}
		logger = logger.With("module", "main")
		return nil
	},
}
