package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	// FormatYAML renders results as YAML, the default for terminals.
	FormatYAML OutputFormat = "yaml"
	// FormatJSON renders results as JSON, for piping into other tools.
	FormatJSON OutputFormat = "json"
	// FormatRaw writes byte and string results verbatim.
	FormatRaw OutputFormat = "raw"
)

// OutputOptions configures where and how a command result is written.
type OutputOptions struct {
	// Format selects the rendering; empty means YAML.
	Format OutputFormat

	// File is the destination path; empty means stdout.
	File string

	// Indent overrides the JSON indentation (default two spaces).
	Indent string

	// Writer, when set, receives the output instead of File/stdout.
	Writer io.Writer
}

// Output renders a command result to the configured destination.
func Output(result any, opts OutputOptions) error {
	w, cleanup, err := destWriter(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	switch opts.Format {
	case FormatYAML, "":
		return writeYAML(w, result)
	case FormatJSON:
		return writeJSON(w, result, opts.Indent)
	case FormatRaw:
		return writeRaw(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

func destWriter(opts OutputOptions) (io.Writer, func(), error) {
	if opts.Writer != nil {
		return opts.Writer, func() {}, nil
	}
	if opts.File == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(opts.File)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func writeYAML(w io.Writer, result any) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func writeJSON(w io.Writer, result any, indent string) error {
	if indent == "" {
		indent = "  "
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", indent)
	return enc.Encode(result)
}

func writeRaw(w io.Writer, result any) error {
	switch v := result.(type) {
	case []byte:
		_, err := w.Write(v)
		return err
	case string:
		_, err := io.WriteString(w, v)
		return err
	default:
		return writeYAML(w, result)
	}
}

// OutputBytes writes binary data, such as synthesized audio, to a file.
func OutputBytes(data []byte, path string) error {
	if path == "" {
		return fmt.Errorf("output file path is required for binary data")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// PrintSuccess prints a success message with checkmark.
func PrintSuccess(format string, args ...any) {
	fmt.Printf("✓ "+format+"\n", args...)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// PrintInfo prints an info message.
func PrintInfo(format string, args ...any) {
	fmt.Printf("ℹ "+format+"\n", args...)
}

// PrintVerbose prints a diagnostic message to stderr when verbose is on.
func PrintVerbose(verbose bool, format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}
