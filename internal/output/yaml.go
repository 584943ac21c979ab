package output

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter buffers results and writes one YAML document on Flush.
type YAMLWriter struct {
	w       io.Writer
	items   []any
	flushed bool
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{w: w}
}

// Write buffers a single item.
func (w *YAMLWriter) Write(data any) error {
	w.items = append(w.items, data)
	return nil
}

// WriteAll buffers multiple items.
func (w *YAMLWriter) WriteAll(data []any) error {
	w.items = append(w.items, data...)
	return nil
}

// Flush writes the buffered items. Later calls are no-ops.
func (w *YAMLWriter) Flush() error {
	if w.flushed {
		return nil
	}
	w.flushed = true

	enc := yaml.NewEncoder(w.w)
	enc.SetIndent(2)
	if err := enc.Encode(single(w.items)); err != nil {
		return err
	}
	return enc.Close()
}

// Close flushes the writer.
func (w *YAMLWriter) Close() error {
	return w.Flush()
}
