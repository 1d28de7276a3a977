// Migrate-legacy command replays a legacy shared database into the local
// store and sync folder.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukaforge/histsync/internal/legacy"
)

var migrateLegacyCmd = &cobra.Command{
	Use:   "migrate-legacy [legacy.db]",
	Short: "Replay a legacy shared database into the local store",
	Long: `Migrate-legacy reads every row out of a retired single-shared-file
database, appends them locally, and publishes one delta so the rest of
the fleet receives the history through the sync folder. Safe to re-run;
already-present rows are skipped.

The legacy file path defaults to the configured shared_db_path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrateLegacy,
}

func runMigrateLegacy(cmd *cobra.Command, args []string) error {
	legacyPath := cfg.GetString(cfgKeySharedDBPath)
	if len(args) == 1 {
		legacyPath = args[0]
	}
	if legacyPath == "" {
		return fmt.Errorf("no legacy database given (pass a path or set %s)", cfgKeySharedDBPath)
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.close()

	svc, err := env.requireSync()
	if err != nil {
		return err
	}

	res, err := legacy.Migrate(cmd.Context(), legacyPath, env.store, svc, env.logger)
	if err != nil {
		return err
	}

	fmt.Printf("migrated %d row(s) from %s\n", res.RowsRead, legacyPath)
	if res.ExportFile != "" {
		fmt.Printf("published %s\n", res.ExportFile)
	}
	return nil
}
