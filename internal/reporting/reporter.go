// Package reporting renders a finished audit payload to its final output
// formats and enforces the optional severity gate.
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/kestrelsec/a11yaudit/api/schemas"
)

// Reporter defines the interface for rendering a completed audit.
type Reporter interface {
	// Write renders the full audit payload.
	Write(payload *schemas.AuditPayload) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for the given format writing to outputPath. An empty
// path or "stdout" writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case "json":
		return NewJSONReporter(writer), nil
	case "markdown", "md":
		return NewMarkdownReporter(writer), nil
	default:
		if !isStdOut {
			writer.Close()
		}
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
