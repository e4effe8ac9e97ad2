package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// buildZip creates a zip file at path with the given entries.
func buildZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	zipFile, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}

	w := zip.NewWriter(zipFile)
	for name, content := range entries {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create file %s in zip: %v", name, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write content for %s: %v", name, err)
		}
	}
	w.Close()
	zipFile.Close()
}

func TestReader(t *testing.T) {
	tmpDir := t.TempDir()
	zipPath := filepath.Join(tmpDir, "test.zip")

	buildZip(t, zipPath, map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": "<container/>",
		"OEBPS/content.opf":      "<package/>",
		"OEBPS/ch01.xhtml":       "chapter one",
	})

	r, err := OpenReader(zipPath)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer r.Close()

	t.Run("has existing entry", func(t *testing.T) {
		if !r.Has("OEBPS/content.opf") {
			t.Error("Has(OEBPS/content.opf) = false, want true")
		}
	})

	t.Run("has missing entry", func(t *testing.T) {
		if r.Has("OEBPS/missing.xhtml") {
			t.Error("Has(OEBPS/missing.xhtml) = true, want false")
		}
	})

	t.Run("read existing entry", func(t *testing.T) {
		data, err := r.ReadFile("OEBPS/ch01.xhtml")
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if !bytes.Equal(data, []byte("chapter one")) {
			t.Errorf("ReadFile() = %s, want %s", data, "chapter one")
		}
	})

	t.Run("read missing entry", func(t *testing.T) {
		_, err := r.ReadFile("OEBPS/missing.xhtml")
		if !errors.Is(err, ErrEntryNotFound) {
			t.Errorf("ReadFile() error = %v, want %v", err, ErrEntryNotFound)
		}
	})

	t.Run("case-insensitive fallback", func(t *testing.T) {
		data, err := r.ReadFile("oebps/CH01.xhtml")
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if !bytes.Equal(data, []byte("chapter one")) {
			t.Errorf("ReadFile() = %s, want %s", data, "chapter one")
		}
	})
}

func TestReader_ExactMatchWins(t *testing.T) {
	tmpDir := t.TempDir()
	zipPath := filepath.Join(tmpDir, "test.zip")

	// Two entries whose names collide when folded.
	buildZip(t, zipPath, map[string]string{
		"OEBPS/Ch01.xhtml": "upper",
		"OEBPS/ch01.xhtml": "lower",
	})

	r, err := OpenReader(zipPath)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer r.Close()

	tests := []struct {
		name string
		want string
	}{
		{"OEBPS/Ch01.xhtml", "upper"},
		{"OEBPS/ch01.xhtml", "lower"},
	}

	for _, tt := range tests {
		data, err := r.ReadFile(tt.name)
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", tt.name, err)
		}
		if string(data) != tt.want {
			t.Errorf("ReadFile(%s) = %s, want %s", tt.name, data, tt.want)
		}
	}
}

func TestReader_SkipsDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	zipPath := filepath.Join(tmpDir, "test.zip")

	zipFile, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}

	w := zip.NewWriter(zipFile)

	// Add directory entries (usually created by zip utilities)
	dirHeader := &zip.FileHeader{
		Name: "OEBPS/",
	}
	dirHeader.SetMode(os.ModeDir | 0755)
	if _, err := w.CreateHeader(dirHeader); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	fw, err := w.Create("OEBPS/ch01.xhtml")
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	fw.Write([]byte("content"))

	w.Close()
	zipFile.Close()

	r, err := OpenReader(zipPath)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer r.Close()

	if r.Has("OEBPS/") {
		t.Error("Has(OEBPS/) = true, want false (directories are not entries)")
	}
	if !r.Has("OEBPS/ch01.xhtml") {
		t.Error("Has(OEBPS/ch01.xhtml) = false, want true")
	}
}

func TestReader_UnsafeEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{"path traversal", "../escape.txt"},
		{"nested path traversal", "OEBPS/../../escape.txt"},
		{"absolute path", "/etc/escape.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			zipPath := filepath.Join(tmpDir, "test.zip")

			buildZip(t, zipPath, map[string]string{tt.entry: "content"})

			if _, err := OpenReader(zipPath); err == nil {
				t.Errorf("OpenReader() with entry %q expected error", tt.entry)
			}
		})
	}
}

func TestOpenReader_InvalidArchive(t *testing.T) {
	t.Run("nonexistent file", func(t *testing.T) {
		if _, err := OpenReader("/nonexistent/file.zip"); err == nil {
			t.Error("Expected error for nonexistent file")
		}
	})

	t.Run("not a zip file", func(t *testing.T) {
		tmpDir := t.TempDir()
		invalidZip := filepath.Join(tmpDir, "invalid.zip")

		if err := os.WriteFile(invalidZip, []byte("not a zip file"), 0644); err != nil {
			t.Fatalf("Failed to create invalid zip: %v", err)
		}

		if _, err := OpenReader(invalidZip); err == nil {
			t.Error("Expected error for invalid zip file")
		}
	})
}

func TestIsSafePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"OEBPS/ch01.xhtml", true},
		{"mimetype", true},
		{"a/b/c.txt", true},
		{"..dots/file.txt", true},
		{"../file.txt", false},
		{"a/../../file.txt", false},
		{"/absolute/file.txt", false},
		{`\windows\file.txt`, false},
	}

	for _, tt := range tests {
		if got := isSafePath(tt.path); got != tt.want {
			t.Errorf("isSafePath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
