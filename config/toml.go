package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// DefaultDirPerm is the default permissions used when creating directories.
const DefaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate")
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

/****** these are for production settings ***********/

// EnsureRoot creates the root, config, and data directories if they don't exist,
// and panics if it fails.
func EnsureRoot(rootDir string) {
	if err := ensureDir(rootDir, DefaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := ensureDir(filepath.Join(rootDir, DefaultConfigDir), DefaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := ensureDir(filepath.Join(rootDir, DefaultDataDir), DefaultDirPerm); err != nil {
		panic(err.Error())
	}

	configFilePath := filepath.Join(rootDir, defaultConfigFilePath)

	// Write default config file if missing.
	if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
		writeDefaultConfigFile(configFilePath)
	}
}

func writeDefaultConfigFile(configFilePath string) {
	WriteConfigFile(configFilePath, DefaultConfig())
}

// WriteConfigFile renders config using the template and writes it to configFilePath.
func WriteConfigFile(configFilePath string, config *Config) {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, config); err != nil {
		panic(err)
	}

	if err := os.WriteFile(configFilePath, buffer.Bytes(), 0o644); err != nil {
		panic(fmt.Sprintf("failed to write config file %s: %v", configFilePath, err))
	}
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/myawesomeapp/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.headerbft" by default, but could be changed via $HEADERBFT_HOME env
# variable or --home cmd flag.

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# Database backend: goleveldb | cleveldb | boltdb | rocksdb | badgerdb | memdb
db_backend = "{{ .BaseConfig.DBBackend }}"

# Database directory
db_dir = "{{ js .BaseConfig.DBPath }}"

# Output level for logging, including package level options
log_level = "{{ .BaseConfig.LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log_format = "{{ .BaseConfig.LogFormat }}"

#######################################################################
###                 Finality Tracker Configuration                  ###
#######################################################################
[bft]

# Number of most recent headers kept in memory together with their vote counts.
max_stored_headers = {{ .BFT.MaxStoredHeaders }}

# Largest height span over which a single header implies prevotes and
# precommits. Must be less than max_stored_headers.
vote_offset = {{ .BFT.VoteOffset }}

# Votes needed for a height to count as prevoted / finalized. Both must be
# more than 2/3 of the active proposer set.
prevote_threshold = {{ .BFT.PrevoteThreshold }}
precommit_threshold = {{ .BFT.PrecommitThreshold }}

#######################################################################
###                    Header Store Configuration                   ###
#######################################################################
[store]

# Number of most recent headers kept on disk. 0 keeps every header.
retain_headers = {{ .Store.RetainHeaders }}

#######################################################################
###                      Evidence Configuration                     ###
#######################################################################
[evidence]

# Maximum number of pending contradiction evidence entries.
max_pending = {{ .Evidence.MaxPending }}

# Number of evidence hashes remembered to reject duplicates.
seen_cache_size = {{ .Evidence.SeenCacheSize }}

# Evidence for heights more than this far below the current height is pruned.
max_age_heights = {{ .Evidence.MaxAgeHeights }}

#######################################################################
###                 Instrumentation Configuration                   ###
#######################################################################
[instrumentation]

# When true, Prometheus metrics are served under /metrics on
# PrometheusListenAddr.
prometheus = {{ .Instrumentation.Prometheus }}

# Address to listen for Prometheus collector(s) connections
prometheus_listen_addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Instrumentation namespace
namespace = "{{ .Instrumentation.Namespace }}"
`
