// Tail command shows the most recent rows in display order.
package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukaforge/histsync/internal/history"
)

var (
	flagTailLimit  int
	flagTailQuery  string
	flagTailFields string
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent rows in display order",
	Long: `Tail lists rows ordered by date, shift, and save time, newest first.
With --query, only rows whose searched fields contain the text
(case-insensitive) are shown; --fields narrows which fields are
searched.`,
	Args: cobra.NoArgs,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().IntVar(&flagTailLimit, "limit", 500, "maximum rows to show")
	tailCmd.Flags().StringVar(&flagTailQuery, "query", "", "case-insensitive substring filter")
	tailCmd.Flags().StringVar(&flagTailFields, "fields", "", "comma-separated fields to search (default: all)")
}

func runTail(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.close()

	var (
		total int
		rows  []history.Row
	)
	if flagTailQuery != "" {
		fields := history.FieldNames
		if flagTailFields != "" {
			fields = splitFields(flagTailFields)
		}
		total, rows, err = env.store.FilteredTail(flagTailQuery, fields, flagTailLimit)
	} else {
		total, rows, err = env.store.ReadTail(flagTailLimit)
	}
	if err != nil {
		return err
	}

	if flagJSON {
		out, err := json.MarshalIndent(struct {
			Total int           `json:"total"`
			Rows  []history.Row `json:"rows"`
		}{total, rows}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("%d row(s) total, showing %d\n", total, len(rows))
	for _, r := range rows {
		fmt.Println(formatRow(r))
	}
	return nil
}

// formatRow renders one row as a single line: metadata, then the deepest
// populated level of the card hierarchy.
func formatRow(r history.Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-10s %-12s %s", r.DateField, r.Shift, r.User, r.Issue)
	if r.Detail != "" {
		fmt.Fprintf(&b, " > %s", r.Detail)
	}
	if r.Action != "" {
		fmt.Fprintf(&b, " > %s", r.Action)
	}
	return b.String()
}

// splitFields parses a comma-separated field list, trimming whitespace and
// dropping empty entries. Unknown names are filtered later by the store.
func splitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
