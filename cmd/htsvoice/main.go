// Package main provides the htsvoice CLI tool.
//
// Usage:
//
//	htsvoice [flags] <command> [args]
//
// Commands:
//
//	config   - Configuration management
//	voices   - List the voices of a context
//	synth    - Synthesize speech from context features
//	params   - Print generated parameter trajectories
//	inspect  - Summarize a voice
//	serve    - Run the HTTP and WebSocket synthesis server
//	cache    - Manage compiled voice snapshots
//
// Configuration:
//
//	The CLI stores configuration in ~/.giztoy/htsvoice/
//	Use 'htsvoice config' commands to manage contexts.
package main

import (
	"os"

	"github.com/haivivi/htsvoice/cmd/htsvoice/commands"
	"github.com/haivivi/htsvoice/pkg/cli"
)

func main() {
	if err := commands.Execute(); err != nil {
		cli.PrintError("%v", err)
		os.Exit(1)
	}
}
