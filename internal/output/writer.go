// Package output renders query and comparison results as JSON, JSON lines,
// YAML, Excel workbooks or iCalendar feeds.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	FormatXLSX  Format = "xlsx"
	FormatICS   Format = "ics"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatJSONL, FormatYAML, FormatXLSX, FormatICS}

// ParseFormat accepts a format name or a file extension, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	switch f {
	case "yml":
		return FormatYAML, nil
	case "ical":
		return FormatICS, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// Extension returns the file extension for the format, with the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Binary reports whether the format should not be written to a terminal.
func (f Format) Binary() bool {
	return f == FormatXLSX
}

// Writer handles output serialization.
type Writer interface {
	// Write adds one result. A slice counts as one result.
	Write(data any) error

	// WriteAll adds multiple results.
	WriteAll(data []any) error

	// Flush renders everything written so far.
	Flush() error

	// Close flushes if needed and releases resources.
	Close() error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty   bool
	indent   string
	location *time.Location
	calName  string
}

// WithPretty enables pretty-printing.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.pretty = enabled
	}
}

// WithIndent sets the indentation string.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) {
		c.indent = indent
	}
}

// WithLocation sets the time zone calendar events are anchored in.
func WithLocation(loc *time.Location) WriterOption {
	return func(c *writerConfig) {
		c.location = loc
	}
}

// WithCalendarName sets the calendar or sheet title.
func WithCalendarName(name string) WriterOption {
	return func(c *writerConfig) {
		c.calName = name
	}
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{
		pretty:   true,
		indent:   "  ",
		location: time.Local,
		calName:  "Courses",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatJSON:
		indent := ""
		if cfg.pretty {
			indent = cfg.indent
		}
		return NewJSONWriter(w, indent), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	case FormatXLSX:
		return NewXLSXWriter(w, cfg.calName), nil
	case FormatICS:
		return NewICSWriter(w, cfg.calName, cfg.location), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteFile renders data to path in the given format, creating parent
// directories as needed.
func WriteFile(path string, format Format, data any, opts ...WriterOption) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path) //#nosec G304 -- path is chosen by the operator
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w, err := NewWriter(f, format, opts...)
	if err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
