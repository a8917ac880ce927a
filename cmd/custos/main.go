// Package main provides the command line front end for the expense engine.
// It reads a workbook, prints the aggregated views and writes the
// reconstructed spreadsheet without starting the HTTP server.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
