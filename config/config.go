package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// LogFormatPlain is a format for colored text
	LogFormatPlain = "plain"
	// LogFormatJSON is a format for json output
	LogFormatJSON = "json"

	// DefaultLogLevel defines a default log level as INFO.
	DefaultLogLevel = "info"

	// DefaultMaxStoredHeaders is the number of most recent headers kept in
	// memory by the tracker.
	DefaultMaxStoredHeaders = 505
	// DefaultVoteOffset is the largest height span over which one header can
	// imply votes.
	DefaultVoteOffset = 302
	// DefaultActiveSetSize is the number of proposers the default thresholds
	// are derived from.
	DefaultActiveSetSize = 101
)

var (
	DefaultConfigDir = "config"
	DefaultDataDir   = "data"

	DefaultConfigFileName = "config.toml"

	defaultConfigFilePath = filepath.Join(DefaultConfigDir, DefaultConfigFileName)
)

// Config defines the top level configuration for a headerbft node
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	// Options for services
	BFT             *BFTConfig             `mapstructure:"bft"`
	Store           *StoreConfig           `mapstructure:"store"`
	Evidence        *EvidenceConfig        `mapstructure:"evidence"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration for a headerbft node
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		BFT:             DefaultBFTConfig(),
		Store:           DefaultStoreConfig(),
		Evidence:        DefaultEvidenceConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		BFT:             TestBFTConfig(),
		Store:           DefaultStoreConfig(),
		Evidence:        TestEvidenceConfig(),
		Instrumentation: TestInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.BFT.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [bft] section: %w", err)
	}
	if err := cfg.Store.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [store] section: %w", err)
	}
	if err := cfg.Evidence.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [evidence] section: %w", err)
	}
	if err := cfg.Instrumentation.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [instrumentation] section: %w", err)
	}
	if cfg.Store.RetainHeaders > 0 && cfg.Store.RetainHeaders < cfg.BFT.MaxStoredHeaders {
		return fmt.Errorf("error in [store] section: retain_headers (%d) must cover max_stored_headers (%d)",
			cfg.Store.RetainHeaders, cfg.BFT.MaxStoredHeaders)
	}
	return nil
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for a headerbft node
type BaseConfig struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// Output level for logging
	LogLevel string `mapstructure:"log_level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log_format"`

	// Database backend: goleveldb | memdb | ...
	DBBackend string `mapstructure:"db_backend"`

	// Database directory
	DBPath string `mapstructure:"db_dir"`
}

// DefaultBaseConfig returns a default base configuration for a headerbft node
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		LogLevel:  DefaultLogLevel,
		LogFormat: LogFormatPlain,
		DBBackend: "goleveldb",
		DBPath:    DefaultDataDir,
	}
}

// TestBaseConfig returns a base configuration for testing a headerbft node
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.DBBackend = "memdb"
	return cfg
}

// DBDir returns the full path to the database directory
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case LogFormatPlain, LogFormatJSON:
	default:
		return errors.New("unknown log_format (must be 'plain' or 'json')")
	}
	if cfg.DBBackend == "" {
		return errors.New("db_backend can't be empty")
	}
	return nil
}

//-----------------------------------------------------------------------------
// BFTConfig

// BFTConfig defines the fixed parameters of the finality tracker. They must
// not change for the lifetime of a tracker.
type BFTConfig struct {
	// Number of most recent headers kept in memory together with their vote
	// counts.
	MaxStoredHeaders int64 `mapstructure:"max_stored_headers"`

	// Largest height span over which a single header implies prevotes and
	// precommits.
	VoteOffset int64 `mapstructure:"vote_offset"`

	// Number of prevotes a height needs before precommits for it count, and
	// to become the prevoted height. Must be more than 2/3 of the active set.
	PrevoteThreshold int64 `mapstructure:"prevote_threshold"`

	// Number of precommits a height needs to be finalized. Must be more than
	// 2/3 of the active set.
	PrecommitThreshold int64 `mapstructure:"precommit_threshold"`
}

// DefaultBFTConfig returns the parameters for an active set of 101 proposers.
func DefaultBFTConfig() *BFTConfig {
	threshold := ThresholdForActiveSet(DefaultActiveSetSize)
	return &BFTConfig{
		MaxStoredHeaders:   DefaultMaxStoredHeaders,
		VoteOffset:         DefaultVoteOffset,
		PrevoteThreshold:   threshold,
		PrecommitThreshold: threshold,
	}
}

// TestBFTConfig returns parameters for a small active set of four proposers
// and a short window.
func TestBFTConfig() *BFTConfig {
	threshold := ThresholdForActiveSet(4)
	return &BFTConfig{
		MaxStoredHeaders:   40,
		VoteOffset:         24,
		PrevoteThreshold:   threshold,
		PrecommitThreshold: threshold,
	}
}

// ThresholdForActiveSet returns the smallest vote count that is more than
// two thirds of an active set of n proposers.
func ThresholdForActiveSet(n int64) int64 {
	return 2*n/3 + 1
}

// MaxRevertDepth is the largest number of headers that can be reverted while
// keeping enough history in memory to trust the prevoted height afterwards.
func (cfg *BFTConfig) MaxRevertDepth() int64 {
	return cfg.MaxStoredHeaders - cfg.VoteOffset - 1
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *BFTConfig) ValidateBasic() error {
	if cfg.MaxStoredHeaders <= 0 {
		return errors.New("max_stored_headers must be positive")
	}
	if cfg.VoteOffset <= 0 {
		return errors.New("vote_offset must be positive")
	}
	if cfg.VoteOffset >= cfg.MaxStoredHeaders {
		return fmt.Errorf("vote_offset (%d) must be less than max_stored_headers (%d)",
			cfg.VoteOffset, cfg.MaxStoredHeaders)
	}
	if cfg.PrevoteThreshold <= 0 {
		return errors.New("prevote_threshold must be positive")
	}
	if cfg.PrecommitThreshold <= 0 {
		return errors.New("precommit_threshold must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// StoreConfig

// StoreConfig defines the durable header store.
type StoreConfig struct {
	// Number of most recent headers to keep on disk. 0 keeps every header.
	// When set it must cover at least one full tracker window so a resync can
	// be served from disk.
	RetainHeaders int64 `mapstructure:"retain_headers"`
}

// DefaultStoreConfig keeps every header.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		RetainHeaders: 0,
	}
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *StoreConfig) ValidateBasic() error {
	if cfg.RetainHeaders < 0 {
		return errors.New("retain_headers can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------
// EvidenceConfig

// EvidenceConfig defines the pool of contradiction evidence.
type EvidenceConfig struct {
	// Maximum number of pending evidence entries. The oldest are dropped
	// first.
	MaxPending int `mapstructure:"max_pending"`

	// Size of the cache of evidence hashes already seen.
	SeenCacheSize int `mapstructure:"seen_cache_size"`

	// Evidence for heights more than this far below the current height is
	// pruned.
	MaxAgeHeights int64 `mapstructure:"max_age_heights"`
}

// DefaultEvidenceConfig returns a default configuration for the evidence pool
func DefaultEvidenceConfig() *EvidenceConfig {
	return &EvidenceConfig{
		MaxPending:    1000,
		SeenCacheSize: 10000,
		MaxAgeHeights: 100000,
	}
}

// TestEvidenceConfig returns a small evidence pool configuration.
func TestEvidenceConfig() *EvidenceConfig {
	return &EvidenceConfig{
		MaxPending:    4,
		SeenCacheSize: 16,
		MaxAgeHeights: 100,
	}
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *EvidenceConfig) ValidateBasic() error {
	if cfg.MaxPending <= 0 {
		return errors.New("max_pending must be positive")
	}
	if cfg.SeenCacheSize <= 0 {
		return errors.New("seen_cache_size must be positive")
	}
	if cfg.MaxAgeHeights <= 0 {
		return errors.New("max_age_heights must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		Namespace:            "headerbft",
	}
}

// TestInstrumentationConfig returns a default configuration for metrics
// reporting.
func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.Prometheus && cfg.PrometheusListenAddr == "" {
		return errors.New("prometheus_listen_addr can't be empty when prometheus is enabled")
	}
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// ensureDir makes sure the directory exists with the given permissions.
func ensureDir(dir string, mode os.FileMode) error {
	if err := os.MkdirAll(dir, mode); err != nil {
		return fmt.Errorf("could not create directory %q: %w", dir, err)
	}
	return nil
}
