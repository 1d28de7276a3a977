// Package main provides the histsync CLI, the operator tool for the
// per-machine report history store and its shared-folder sync.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
