// Package cli provides common utilities for the deepdub command-line tool.
//
// This package includes:
//   - Configuration management (contexts, profiles)
//   - Output formatting (JSON, YAML, table)
//   - Request file loading (YAML/JSON)
//   - Common flags and options
//
// Configuration is stored in the ~/.deepdub/ directory, supporting
// multiple contexts similar to kubectl.
//
// Example usage:
//
//	// Load the configuration
//	cfg, err := cli.LoadConfig()
//
//	// Get current context
//	ctx, err := cfg.GetCurrentContext()
//
//	// Output result
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    File:   outputPath,
//	})
package cli
