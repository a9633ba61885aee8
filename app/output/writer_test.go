package output

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func publish(t *testing.T, writer *FileWriter, data []byte) {
	t.Helper()

	if err := writer.Stage(context.Background(), data); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if err := writer.Commit(context.Background()); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

func TestFileWriter_StageAndCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.xml")
	writer := NewFileWriter(path)

	publish(t, writer, []byte("<rss/>"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Output file should exist: %v", err)
	}
	if string(data) != "<rss/>" {
		t.Errorf("Unexpected file contents: %q", data)
	}
}

func TestFileWriter_StageDoesNotTouchOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.xml")
	if err := os.WriteFile(path, []byte("old contents"), 0o644); err != nil {
		t.Fatalf("Failed to seed file: %v", err)
	}

	writer := NewFileWriter(path)
	if err := writer.Stage(context.Background(), []byte("new contents")); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "old contents" {
		t.Errorf("Staging must not replace the published file, got %q", data)
	}

	if err := writer.Commit(context.Background()); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "new contents" {
		t.Errorf("Expected the file replaced after commit, got %q", data)
	}
}

func TestFileWriter_DiscardKeepsOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feed.xml")
	if err := os.WriteFile(path, []byte("old contents"), 0o644); err != nil {
		t.Fatalf("Failed to seed file: %v", err)
	}

	writer := NewFileWriter(path)
	if err := writer.Stage(context.Background(), []byte("abandoned")); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	writer.Discard()

	data, _ := os.ReadFile(path)
	if string(data) != "old contents" {
		t.Errorf("Discard must leave the published file untouched, got %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read directory: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Discard must remove the staged file, directory has %d entries", len(entries))
	}
}

func TestFileWriter_CommitWithoutStage(t *testing.T) {
	writer := NewFileWriter(filepath.Join(t.TempDir(), "feed.xml"))

	if err := writer.Commit(context.Background()); err == nil {
		t.Errorf("Commit without a staged document must fail")
	}
}

func TestFileWriter_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public", "feeds", "feed.xml")
	writer := NewFileWriter(path)

	publish(t, writer, []byte("<rss/>"))

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Output file should exist: %v", err)
	}
}

func TestFileWriter_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	writer := NewFileWriter(filepath.Join(dir, "feed.xml"))

	publish(t, writer, []byte("<rss/>"))

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read directory: %v", err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp-") {
			t.Errorf("Temporary file left behind: %s", entry.Name())
		}
	}
}

func TestFileWriter_Path(t *testing.T) {
	writer := NewFileWriter("/var/www/feed.xml")
	if writer.Path() != "/var/www/feed.xml" {
		t.Errorf("Unexpected path: %q", writer.Path())
	}
}
