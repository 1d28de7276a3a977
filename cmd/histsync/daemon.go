// Daemon command runs scheduled sync and cleanup until interrupted.
package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var flagDaemonEvery time.Duration

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled bidirectional sync and daily cleanup",
	Long: `Daemon syncs with the shared folder on a fixed interval and archives
aged snapshots once a day. Intended to run in the background on every
machine; stops cleanly on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().DurationVar(&flagDaemonEvery, "every", 5*time.Minute, "sync interval")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.close()

	svc, err := env.requireSync()
	if err != nil {
		return err
	}

	if flagDaemonEvery < time.Second {
		return fmt.Errorf("sync interval %s too short", flagDaemonEvery)
	}

	retention := cfg.GetInt(cfgKeyRetentionDays)
	keep := cfg.GetInt(cfgKeyKeepLatestFullsync)

	doSync := func() {
		imported, exported, err := svc.SyncBidirectional()
		if err != nil {
			env.logger.Printf("WARNING: sync failed: %v", err)
			return
		}
		if imported > 0 || exported > 0 {
			env.logger.Printf("sync: imported %d rows, exported %d file(s)", imported, exported)
		}
	}

	c := cron.New()
	if _, err := c.AddFunc("@every "+flagDaemonEvery.String(), doSync); err != nil {
		return fmt.Errorf("schedule sync: %w", err)
	}
	if _, err := c.AddFunc("0 3 * * *", func() {
		stats := svc.Cleanup(retention, keep)
		env.logger.Printf("cleanup: %s", stats)
	}); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One sync right away; the schedule only covers steady state.
	doSync()

	c.Start()
	env.logger.Printf("daemon running, syncing every %s with %s", flagDaemonEvery, svc.Folder())

	<-ctx.Done()
	<-c.Stop().Done()
	env.logger.Printf("daemon stopped")
	return nil
}
