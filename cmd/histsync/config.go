// Config loading for the histsync CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/dukaforge/histsync/internal/paths"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyMode              = "mode"
	cfgKeyDataDir           = "data_dir"
	cfgKeySyncDir           = "sync_dir"
	cfgKeySharedDBPath      = "shared_db_path"
	cfgKeyRetentionDays     = "retention_days"
	cfgKeyKeepLatestFullsync = "keep_latest_fullsync"

	// Storage modes. local_sync is the safe default: a per-machine local
	// database converging through snapshot files. shared_sqlite points
	// every machine at one database file on the share and exists only for
	// installations that have not migrated yet.
	modeLocalSync    = "local_sync"
	modeSharedSQLite = "shared_sqlite"

	defaultRetentionDays      = 30
	defaultKeepLatestFullsync = 1
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# histsync configuration

# Storage mode: local_sync (per-machine DB + shared-folder sync, recommended)
# or shared_sqlite (one DB file on the share; legacy, unsafe under load).
mode: local_sync

# Shared sync folder (optional; overridable by --sync-dir or HISTSYNC_SYNC_DIR)
# sync_dir:

# Local data directory (optional; overridable by --data-dir or HISTSYNC_DATA_DIR)
# data_dir:

# Shared database file, only used in shared_sqlite mode
# shared_db_path:

# Snapshot files older than this many days move to the archive subfolder
retention_days: 30

# Newest full snapshots kept out of the archive for onboarding new machines
keep_latest_fullsync: 1
`

// loadConfig reads config.yaml from the resolved config directory using
// Viper. It creates the config directory and a default config.yaml on first
// run. A missing config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}

	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyMode, modeLocalSync)
	v.SetDefault(cfgKeyRetentionDays, defaultRetentionDays)
	v.SetDefault(cfgKeyKeepLatestFullsync, defaultKeepLatestFullsync)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	return v, nil
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, paths.ConfigName)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
