// Export-csv command writes rows to a CSV file or stdout.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukaforge/histsync/internal/history"
)

var (
	flagCSVOut    string
	flagCSVQuery  string
	flagCSVFields string
)

var exportCSVCmd = &cobra.Command{
	Use:   "export-csv",
	Short: "Export rows as CSV",
	Args:  cobra.NoArgs,
	RunE:  runExportCSV,
}

func init() {
	exportCSVCmd.Flags().StringVar(&flagCSVOut, "out", "", "output file (default: stdout)")
	exportCSVCmd.Flags().StringVar(&flagCSVQuery, "query", "", "case-insensitive substring filter")
	exportCSVCmd.Flags().StringVar(&flagCSVFields, "fields", "", "comma-separated columns to export (default: all)")
}

func runExportCSV(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.close()

	fields := history.FieldNames
	if flagCSVFields != "" {
		fields = splitFields(flagCSVFields)
	}

	var w io.Writer = os.Stdout
	if flagCSVOut != "" {
		f, err := os.Create(flagCSVOut)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	n, err := env.store.ExportCSV(w, fields, flagCSVQuery)
	if err != nil {
		return err
	}

	if flagCSVOut != "" {
		fmt.Printf("exported %d row(s) to %s\n", n, flagCSVOut)
	}
	return nil
}
