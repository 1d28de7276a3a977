// Add command flattens a report file into rows and stores them.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dukaforge/histsync/internal/history"
	"github.com/dukaforge/histsync/internal/sqlite"
)

// reportFile is the on-disk input to `histsync add`: session metadata plus
// the card hierarchy.
type reportFile struct {
	LinkUp       string         `json:"link_up"`
	FuncLocation string         `json:"func_location"`
	Date         string         `json:"date"`
	Shift        string         `json:"shift"`
	User         string         `json:"user"`
	Cards        []history.Card `json:"cards"`
}

var addCmd = &cobra.Command{
	Use:   "add <report.json>",
	Short: "Flatten a report file into rows and store them",
	Long: `Add reads a report (issue cards with details and actions), flattens it
into one row per leaf, and appends the rows under a fresh save ID. In
local_sync mode the rows are published to the sync folder right away.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	var report reportFile
	if err := json.Unmarshal(data, &report); err != nil {
		return fmt.Errorf("parse report: %w", err)
	}
	if len(report.Cards) == 0 {
		return fmt.Errorf("report has no cards")
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.close()

	meta := history.Meta{
		SaveID:       uuid.NewString(),
		SavedAt:      time.Now().Format("2006-01-02T15:04:05"),
		LinkUp:       report.LinkUp,
		FuncLocation: report.FuncLocation,
		DateField:    report.Date,
		Shift:        report.Shift,
		User:         report.User,
	}
	rows := history.Flatten(history.Report{Cards: report.Cards}, meta)

	if env.mode == modeSharedSQLite {
		// Direct shared-file mode: serialize local writers around the
		// shared database before touching it.
		err = sqlite.WithFileLock(cmd.Context(), env.store.Path(), 30*time.Second, func() error {
			_, err := env.store.AppendRows(rows)
			return err
		})
	} else {
		_, err = env.store.AppendRows(rows)
	}
	if err != nil {
		return fmt.Errorf("store rows: %w", err)
	}
	fmt.Printf("stored %d row(s) under save %s\n", len(rows), meta.SaveID)

	if env.svc != nil {
		file, err := env.svc.ExportDelta()
		if err != nil {
			return fmt.Errorf("publish delta: %w", err)
		}
		if file != "" {
			fmt.Printf("published %s\n", file)
		}
	}
	return nil
}
