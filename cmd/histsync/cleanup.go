// Cleanup command archives aged snapshot files in the sync folder.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagRetentionDays int
	flagKeepFullsync  int
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Archive aged snapshot files in the sync folder",
	Long: `Cleanup moves snapshot files older than the retention window into the
archive subfolder of the sync folder. Nothing is ever deleted, and the
newest full snapshots stay out of the archive so a new machine can
always onboard.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().IntVar(&flagRetentionDays, "retention-days", 0, "retention window in days (default: config retention_days)")
	cleanupCmd.Flags().IntVar(&flagKeepFullsync, "keep-fullsync", -1, "newest full snapshots to keep (default: config keep_latest_fullsync)")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.close()

	svc, err := env.requireSync()
	if err != nil {
		return err
	}

	retention := flagRetentionDays
	if retention <= 0 {
		retention = cfg.GetInt(cfgKeyRetentionDays)
	}
	if retention <= 0 {
		retention = defaultRetentionDays
	}

	keep := flagKeepFullsync
	if keep < 0 {
		keep = cfg.GetInt(cfgKeyKeepLatestFullsync)
	}
	if keep < 0 {
		keep = defaultKeepLatestFullsync
	}

	stats := svc.Cleanup(retention, keep)

	if flagJSON {
		out, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println(stats)
	return nil
}
