// Publish command writes a full snapshot for onboarding a new machine.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Export a full snapshot of the local store to the sync folder",
	Long: `Publish writes every local row to a fullsync snapshot file. Run it once
from an established machine so a newly installed machine can import the
whole history on its first sync. Sync markers are untouched; deltas
continue as usual.`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func runPublish(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.close()

	svc, err := env.requireSync()
	if err != nil {
		return err
	}

	file, err := svc.ExportFull()
	if err != nil {
		return err
	}

	fmt.Println(file)
	return nil
}
