// Package output writes the serialized document to its publishing
// location. The write is two-phase: Stage prepares the bytes next to the
// destination, Commit renames them into place. A failed run can never
// leave a truncated or half-replaced feed behind.
package output

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

type FileWriter struct {
	path string
	tmp  string
}

func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

// Stage writes data to a temporary file in the target directory. The
// published file is not touched.
func (w *FileWriter) Stage(ctx context.Context, data []byte) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(w.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	w.tmp = tmp.Name()

	return nil
}

// Commit renames the staged file over the destination.
func (w *FileWriter) Commit(ctx context.Context) error {
	if w.tmp == "" {
		return fmt.Errorf("no staged document to commit")
	}

	tmp := w.tmp
	w.tmp = ""
	if err := os.Rename(tmp, w.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace output file: %w", err)
	}

	slog.Debug("Document written", "path", w.path)

	return nil
}

// Discard removes the staged file, if any.
func (w *FileWriter) Discard() {
	if w.tmp == "" {
		return
	}
	os.Remove(w.tmp)
	w.tmp = ""
}

func (w *FileWriter) Path() string {
	return w.path
}
