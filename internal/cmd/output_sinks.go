package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/postforge/postforge/internal/observability"
	"github.com/postforge/postforge/internal/output"
)

// outputSink is where a command's rendered report goes.
type outputSink struct {
	writer io.Writer
	close  func() error
	path   string // "-" for stdout
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|yaml|markdown")
	cmd.Flags().String("out", "", "Write output to a file (default stdout)")
	cmd.Flags().String("out-dir", "", "Write output to a directory")
}

func resolveOutputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

// outputDestination is the parsed --out / --out-dir pair.
type outputDestination struct {
	file string
	dir  string
}

func readOutputDestination(cmd *cobra.Command) (outputDestination, error) {
	var dest outputDestination
	for flag, into := range map[string]*string{"out": &dest.file, "out-dir": &dest.dir} {
		value, err := cmd.Flags().GetString(flag)
		if err != nil {
			return dest, err
		}
		*into = strings.TrimSpace(value)
	}
	if dest.file != "" && dest.dir != "" {
		return dest, fmt.Errorf("--out and --out-dir are mutually exclusive")
	}
	return dest, nil
}

// path picks the file to write; reports named name land in dir as <name>.<ext>.
func (d outputDestination) path(format output.Format, name string) (string, error) {
	if d.dir == "" {
		return d.file, nil
	}
	dir, err := filepath.Abs(d.dir)
	if err != nil {
		dir = d.dir
	}
	return filepath.Join(dir, sanitizeFilename(name)+"."+outputExtension(format)), nil
}

func openCommandSink(cmd *cobra.Command, format output.Format, name string) (*outputSink, error) {
	dest, err := readOutputDestination(cmd)
	if err != nil {
		return nil, err
	}
	target, err := dest.path(format, name)
	if err != nil {
		return nil, err
	}
	if target == "" || target == "-" {
		return &outputSink{writer: cmd.OutOrStdout(), close: func() error { return nil }, path: "-"}, nil
	}
	return createFileSink(target)
}

func createFileSink(path string) (*outputSink, error) {
	// #nosec G301 -- report directories are user-chosen
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(path) // #nosec G304 -- path comes from --out/--out-dir
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	closeFile := func() error {
		if err := file.Close(); err != nil {
			return err
		}
		if observability.CLILogger != nil {
			observability.CLILogger.Debug("Wrote report", zap.String("path", path))
		}
		return nil
	}
	return &outputSink{writer: file, close: closeFile, path: path}, nil
}

func outputExtension(format output.Format) string {
	switch format {
	case output.FormatJSON:
		return "json"
	case output.FormatYAML:
		return "yaml"
	case output.FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

var nonFilename = regexp.MustCompile(`[^a-z0-9._-]+`)

func sanitizeFilename(value string) string {
	clean := nonFilename.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-")
	if clean = strings.Trim(clean, "-."); clean == "" {
		return "output"
	}
	return clean
}

// render writes rendered output followed by a newline.
func render(w io.Writer, rendered string) error {
	_, err := fmt.Fprintln(w, rendered)
	return err
}
