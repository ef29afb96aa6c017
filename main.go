// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for dcprovision.
//
// Usage:
//
//	go run . provision --realm samba.example.com --domain SAMBA
//	./dcprovision [command] [flags]
//
// See --help for the available commands.
package main

import (
	"os"

	"github.com/toeirei/dcprovision/ui/cli"
)

func main() {
	// Execute has already printed the failure and its hint.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
