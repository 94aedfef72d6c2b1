package commands

import (
	"fmt"
	"time"

	"github.com/deepdub-ai/deepdub-go/pkg/cli"
	"github.com/deepdub-ai/deepdub-go/pkg/deepdub"
)

// loadRequest loads a request from a YAML or JSON file
func loadRequest(path string, v any) error {
	return cli.LoadRequest(path, v)
}

// outputBytes outputs binary data to a file
func outputBytes(data []byte, outputPath string) error {
	return cli.OutputBytes(data, outputPath)
}

// printSuccess prints a success message
func printSuccess(format string, args ...any) {
	cli.PrintSuccess(format, args...)
}

// printInfo prints an info message
func printInfo(format string, args ...any) {
	cli.PrintInfo(format, args...)
}

// requireInputFile checks if input file is provided
func requireInputFile() error {
	if getInputFile() == "" {
		return fmt.Errorf("input file is required, use -f flag")
	}
	return nil
}

// requireOutputFile checks if output file is provided
func requireOutputFile() error {
	if getOutputFile() == "" {
		return fmt.Errorf("output file is required, use -o flag")
	}
	return nil
}

// formatBytes formats bytes to human readable string
func formatBytes(bytes int64) string {
	return cli.FormatBytes(bytes)
}

// createClient creates a Deepdub API client from context configuration
func createClient(ctx *cli.Context) (*deepdub.Client, error) {
	opts := []deepdub.Option{
		deepdub.WithAPIKey(ctx.APIKey),
	}

	if ctx.BaseURL != "" {
		opts = append(opts, deepdub.WithBaseURL(ctx.BaseURL))
	}
	if ctx.WebSocketURL != "" {
		opts = append(opts, deepdub.WithWebSocketURL(ctx.WebSocketURL))
	}
	if ctx.StreamingURL != "" {
		opts = append(opts, deepdub.WithStreamingURL(ctx.StreamingURL))
	}
	if ctx.EU {
		opts = append(opts, deepdub.WithEU(true))
	}
	if ctx.Timeout > 0 {
		opts = append(opts, deepdub.WithTimeout(time.Duration(ctx.Timeout)*time.Second))
	}

	return deepdub.NewClient(opts...)
}
