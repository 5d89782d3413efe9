// Package main is the entry point for the souschef CLI.
//
// Usage:
//
//	souschef [flags] <command> [subcommand] [args]
//
// Commands:
//
//	serve      - Run the kitchen signaling/session server
//	cook       - Join a room as the cook-along client (TUI)
//	token      - Mint a room access token
//	state      - Fetch a room's session state from a server
//	control    - Inject a control event into a room
//	config     - Configuration management (contexts)
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/hearthware/souschef/cmd/souschef/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
