package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// JsonlWriter owns a JSON Lines file: one JSON document per line. Appends
// and rewrites are serialized.
type JsonlWriter struct {
	path string
	mu   sync.Mutex
}

func NewJsonlWriter(path string) *JsonlWriter {
	return &JsonlWriter{path: path}
}

func (w *JsonlWriter) Path() string {
	return w.path
}

// Append writes records to the end of the file, creating it if needed.
func (w *JsonlWriter) Append(records ...any) error {
	if len(records) == 0 {
		return nil
	}
	if err := ensureDir(w.path); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.path, err)
	}
	defer file.Close()

	buffered := bufio.NewWriter(file)
	if err := encodeLines(buffered, records); err != nil {
		return err
	}
	return buffered.Flush()
}

// Replace atomically swaps the file contents for records.
func (w *JsonlWriter) Replace(records []any) error {
	var buf bytes.Buffer
	if err := encodeLines(&buf, records); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return writeFileAtomic(w.path, buf.Bytes())
}

// encodeLines writes each record as one JSON line; json.Encoder terminates
// every value with a newline.
func encodeLines(dst io.Writer, records []any) error {
	enc := json.NewEncoder(dst)
	for i, record := range records {
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return nil
}
