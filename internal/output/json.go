package output

import (
	"encoding/json"
	"io"
)

// JSONWriter buffers results and writes one JSON document on Flush. A
// single result is written as-is; several become an array.
type JSONWriter struct {
	w       io.Writer
	indent  string
	items   []any
	flushed bool
}

// NewJSONWriter creates a JSON writer. An empty indent writes compact JSON.
func NewJSONWriter(w io.Writer, indent string) *JSONWriter {
	return &JSONWriter{w: w, indent: indent}
}

// Write buffers a single item.
func (w *JSONWriter) Write(data any) error {
	w.items = append(w.items, data)
	return nil
}

// WriteAll buffers all items.
func (w *JSONWriter) WriteAll(data []any) error {
	w.items = append(w.items, data...)
	return nil
}

// Flush writes the buffered items. Later calls are no-ops.
func (w *JSONWriter) Flush() error {
	if w.flushed {
		return nil
	}
	w.flushed = true

	enc := json.NewEncoder(w.w)
	enc.SetEscapeHTML(false)
	if w.indent != "" {
		enc.SetIndent("", w.indent)
	}
	return enc.Encode(single(w.items))
}

// Close flushes the writer.
func (w *JSONWriter) Close() error {
	return w.Flush()
}

// JSONLWriter writes one JSON object per line as items arrive. Slices are
// expanded so each element gets its own line.
type JSONLWriter struct {
	enc *json.Encoder
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc}
}

// Write encodes data, one line per element if it is a slice.
func (w *JSONLWriter) Write(data any) error {
	for _, item := range expand(data) {
		if err := w.enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

// WriteAll writes multiple items as JSON lines.
func (w *JSONLWriter) WriteAll(data []any) error {
	for _, item := range data {
		if err := w.Write(item); err != nil {
			return err
		}
	}
	return nil
}

// Flush is a no-op; lines are written immediately.
func (w *JSONLWriter) Flush() error {
	return nil
}

// Close is a no-op.
func (w *JSONLWriter) Close() error {
	return nil
}

func single(items []any) any {
	if len(items) == 1 {
		return items[0]
	}
	if items == nil {
		return []any{}
	}
	return items
}
