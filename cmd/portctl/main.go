// Package main is the operator CLI for the port pool.
//
// Import Path: bizportal.io/portal/cmd/portctl
package main

import (
	"fmt"
	"os"

	"bizportal.io/portal/internal/cli"
)

func main() {
	if err := cli.NewPortctlCmd(&cli.Options{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
