// Package main provides the Deepdub CLI tool.
//
// Usage:
//
//	deepdub [flags] <service> <command> [args]
//
// Services:
//
//	tts      - Speech synthesis (one-shot, streamed, retroactive)
//	voice    - Voice asset management and gender classification
//	stream   - Live bidirectional synthesis sessions
//	config   - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.deepdub/
//	Use 'deepdub config' commands to manage contexts.
package main

import (
	"os"

	"github.com/deepdub-ai/deepdub-go/cmd/deepdub/commands"
	"github.com/deepdub-ai/deepdub-go/pkg/cli"
)

func main() {
	if err := commands.Execute(); err != nil {
		cli.PrintError("%v", err)
		os.Exit(1)
	}
}
