// Sync command runs one bidirectional pass: import pending snapshots, then
// publish local rows not yet shared.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import pending snapshots, then export a delta of local rows",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.close()

	svc, err := env.requireSync()
	if err != nil {
		return err
	}

	imported, exported, err := svc.SyncBidirectional()
	if err != nil {
		return err
	}

	if flagJSON {
		out, err := json.Marshal(map[string]int{"imported": imported, "exported": exported})
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("imported %d rows, exported %d delta file(s)\n", imported, exported)
	return nil
}
