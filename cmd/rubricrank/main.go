// Package main provides the entry point for the rubricrank CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/rubricrank/cmd/rubricrank/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
