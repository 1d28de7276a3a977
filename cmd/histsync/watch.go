// Watch command runs the event-driven import loop.
package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var flagWatchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Import snapshots as they appear in the sync folder",
	Long: `Watch blocks and merges snapshot files the moment other machines drop
them into the sync folder, instead of waiting for the next scheduled
sync. Stops cleanly on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&flagWatchDebounce, "debounce", 500*time.Millisecond, "settle time after a burst of file events")
}

func runWatch(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.close()

	svc, err := env.requireSync()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("watching %s\n", svc.Folder())
	if err := svc.Watch(ctx, flagWatchDebounce); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
