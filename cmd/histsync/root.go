// Root command and shared runtime wiring for the histsync CLI.
package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dukaforge/histsync/internal/logging"
	"github.com/dukaforge/histsync/internal/paths"
	"github.com/dukaforge/histsync/internal/sqlite"
	"github.com/dukaforge/histsync/internal/syncdir"
)

// ErrNotApplicable is returned by sync-folder commands when the store runs
// in the direct shared-file mode, which has no sync folder to speak of.
var ErrNotApplicable = errors.New("not applicable in shared_sqlite mode")

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagSyncDir   string
	flagJSON      bool
)

// cfg holds the loaded configuration. Set by PersistentPreRunE so all
// subcommands can use it.
var cfg *viper.Viper

var rootCmd = &cobra.Command{
	Use:   "histsync",
	Short: "histsync replicates the local report history through a shared folder",
	Long: `histsync keeps a per-machine SQLite history of shop-floor reports and
converges it with other machines by exchanging immutable JSON snapshot
files in a shared network folder. No machine ever opens another
machine's database; inserts are idempotent, so snapshots may arrive in
any order, any number of times.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		configDir, err := paths.ResolveConfigDir(flagConfigDir)
		if err != nil {
			return err
		}
		cfg, err = loadConfig(configDir)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "local data directory (default: platform data dir)")
	rootCmd.PersistentFlags().StringVar(&flagSyncDir, "sync-dir", "", "shared sync folder (default: <data-dir>/sync)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(exportCSVCmd)
	rootCmd.AddCommand(migrateLegacyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(daemonCmd)
}

// appEnv is the opened runtime for one command invocation: the store, the
// sync service when the mode has one, and the process logger.
type appEnv struct {
	mode    string
	dataDir string
	store   *sqlite.Store
	svc     *syncdir.Service // nil in shared_sqlite mode
	logger  *log.Logger
}

// openEnv resolves directories, opens the store for the configured mode, and
// wires the sync service. The caller must defer env.close().
func openEnv() (*appEnv, error) {
	dataDir, err := paths.ResolveDataDir(flagDataDir, cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	logger := logging.New("[histsync] ", paths.LogPath(dataDir))
	mode := cfg.GetString(cfgKeyMode)

	switch mode {
	case modeLocalSync:
		store, err := sqlite.Open(paths.LocalDBPath(dataDir), sqlite.Options{})
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}

		syncDir, err := paths.ResolveSyncDir(flagSyncDir, cfg.GetString(cfgKeySyncDir), dataDir)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("resolve sync dir: %w", err)
		}

		svc, err := syncdir.New(store, syncDir, paths.MarkerPath(dataDir), "", logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("init sync service: %w", err)
		}
		return &appEnv{mode: mode, dataDir: dataDir, store: store, svc: svc, logger: logger}, nil

	case modeSharedSQLite:
		sharedPath := cfg.GetString(cfgKeySharedDBPath)
		if sharedPath == "" {
			return nil, fmt.Errorf("mode %s requires %s to be set", modeSharedSQLite, cfgKeySharedDBPath)
		}
		store, err := sqlite.Open(sharedPath, sqlite.Options{NetworkSafe: true})
		if err != nil {
			return nil, fmt.Errorf("open shared store: %w", err)
		}
		return &appEnv{mode: mode, dataDir: dataDir, store: store, logger: logger}, nil

	default:
		return nil, fmt.Errorf("unknown mode %q (valid: %s, %s)", mode, modeLocalSync, modeSharedSQLite)
	}
}

func (e *appEnv) close() {
	if e.store != nil {
		e.store.Close()
	}
}

// requireSync returns the sync service, or ErrNotApplicable when the store
// runs directly against a shared database file.
func (e *appEnv) requireSync() (*syncdir.Service, error) {
	if e.svc == nil {
		return nil, ErrNotApplicable
	}
	return e.svc, nil
}
