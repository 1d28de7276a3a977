// Version command for the histsync CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the histsync release version.
const Version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the histsync version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("histsync", "v"+Version)
	},
}
