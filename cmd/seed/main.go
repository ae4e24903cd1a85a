// Package main seeds the port pool from a YAML manifest.
//
// Database migrations are expected to run before seeding; this command only
// creates missing ports.
//
// Import Path: bizportal.io/portal/cmd/seed
package main

import (
	"fmt"
	"os"

	"bizportal.io/portal/internal/cli"
)

func main() {
	if err := cli.NewSeedRootCmd(&cli.Options{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}
