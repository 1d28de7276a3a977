// Status command reports the store location, sync folder, and row counts.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the store location, sync folder, and row count",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// statusOutput is the printable status, identical across both storage modes.
type statusOutput struct {
	Mode       string `json:"mode"`
	DBPath     string `json:"db_path"`
	SyncFolder string `json:"sync_folder,omitempty"`
	Rows       int    `json:"rows"`
	LastUser   string `json:"last_user,omitempty"`
	LastDate   string `json:"last_date,omitempty"`
	LastShift  string `json:"last_shift,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.close()

	count, err := env.store.CountRows()
	if err != nil {
		return err
	}

	out := statusOutput{
		Mode:   env.mode,
		DBPath: env.store.Path(),
		Rows:   count,
	}
	if env.svc != nil {
		out.SyncFolder = env.svc.Folder()
	}

	if last, err := env.store.ReadLastSaved(); err == nil && last != nil {
		out.LastUser = last.User
		out.LastDate = last.Date
		out.LastShift = last.Shift
	}

	if flagJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("mode:        %s\n", out.Mode)
	fmt.Printf("database:    %s\n", out.DBPath)
	if out.SyncFolder != "" {
		fmt.Printf("sync folder: %s\n", out.SyncFolder)
	}
	fmt.Printf("rows:        %d\n", out.Rows)
	if out.LastUser != "" || out.LastDate != "" {
		fmt.Printf("last saved:  %s on %s (%s)\n", out.LastUser, out.LastDate, out.LastShift)
	}
	return nil
}
