// Package main is the entry point for the voiceguard CLI.
//
// Usage:
//
//	voiceguard [flags] <command> [subcommand] [args]
//
// Commands:
//
//	serve      - Run the HTTP detection API
//	detect     - Classify a local audio file
//	features   - Print the feature vector of a local audio file
//	model      - Inspect, convert and export classifier bundles
//	config     - Show the effective configuration
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/voiceguard/go/cmd/voiceguard/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
