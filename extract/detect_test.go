package extract

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDetectUTF(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want srcEncoding
	}{
		{"Empty buffer", nil, encUnknown},
		{"No BOM", []byte("<html><body>text</body></html>"), encUnknown},
		{"UTF-8 BOM", []byte{0xEF, 0xBB, 0xBF, 'a', 'b'}, encUTF8},
		{"UTF-8 BOM only", []byte{0xEF, 0xBB, 0xBF}, encUTF8},
		{"UTF-16 Big Endian BOM", []byte{0xFE, 0xFF, 0x00, 0x61}, encUTF16BigEndian},
		{"UTF-16 Little Endian BOM", []byte{0xFF, 0xFE, 0x61, 0x00}, encUTF16LittleEndian},
		{"UTF-16 Little Endian BOM, NUL character", []byte{0xFF, 0xFE, 0x01, 0x00}, encUTF16LittleEndian},
		{"UTF-32 Big Endian BOM", []byte{0x00, 0x00, 0xFE, 0xFF}, encUTF32BigEndian},
		{"UTF-32 Little Endian BOM", []byte{0xFF, 0xFE, 0x00, 0x00}, encUTF32LittleEndian},
		{"Truncated UTF-8 BOM", []byte{0xEF, 0xBB}, encUnknown},
		{"Truncated UTF-16 BOM", []byte{0xFE}, encUnknown},
		{"Garbage", []byte{0x00, 0x01, 0x02, 0x03}, encUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectUTF(tt.buf); got != tt.want {
				t.Errorf("detectUTF() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBOMHelpers(t *testing.T) {
	tests := []struct {
		name string
		fn   func([]byte) bool
		buf  []byte
		want bool
	}{
		{"UTF-8 match", isUTF8BOM3, []byte{0xEF, 0xBB, 0xBF}, true},
		{"UTF-8 short", isUTF8BOM3, []byte{0xEF, 0xBB}, false},
		{"UTF-8 mismatch", isUTF8BOM3, []byte{0xEF, 0xBB, 0xBE}, false},
		{"UTF-16 BE match", isUTF16BigEndianBOM2, []byte{0xFE, 0xFF}, true},
		{"UTF-16 BE mismatch", isUTF16BigEndianBOM2, []byte{0xFF, 0xFE}, false},
		{"UTF-16 LE match", isUTF16LittleEndianBOM2, []byte{0xFF, 0xFE}, true},
		{"UTF-16 LE short", isUTF16LittleEndianBOM2, []byte{0xFF}, false},
		{"UTF-32 BE match", isUTF32BigEndianBOM4, []byte{0x00, 0x00, 0xFE, 0xFF}, true},
		{"UTF-32 BE short", isUTF32BigEndianBOM4, []byte{0x00, 0x00, 0xFE}, false},
		{"UTF-32 LE match", isUTF32LittleEndianBOM4, []byte{0xFF, 0xFE, 0x00, 0x00}, true},
		{"UTF-32 LE looks like UTF-16", isUTF32LittleEndianBOM4, []byte{0xFF, 0xFE, 0x61, 0x00}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.buf); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectReader(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		enc  srcEncoding
		want string
	}{
		{"Unknown passes through", []byte("plain"), encUnknown, "plain"},
		{"UTF-8 BOM stripped", []byte{0xEF, 0xBB, 0xBF, 'a', 'b', 'c'}, encUTF8, "abc"},
		{"UTF-16 BE", []byte{0xFE, 0xFF, 0x00, 'a', 0x00, 'b'}, encUTF16BigEndian, "ab"},
		{"UTF-16 LE", []byte{0xFF, 0xFE, 'a', 0x00, 'b', 0x00}, encUTF16LittleEndian, "ab"},
		{"UTF-32 BE", []byte{0x00, 0x00, 0xFE, 0xFF, 0x00, 0x00, 0x00, 'a'}, encUTF32BigEndian, "a"},
		{"UTF-32 LE", []byte{0xFF, 0xFE, 0x00, 0x00, 'a', 0x00, 0x00, 0x00}, encUTF32LittleEndian, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(selectReader(bytes.NewReader(tt.buf), tt.enc))
			if err != nil {
				t.Fatalf("Failed to read: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("selectReader() produced %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("Invalid encoding panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("selectReader() did not panic on invalid encoding")
			}
		}()
		selectReader(strings.NewReader("x"), srcEncoding(99))
	})
}

func TestDecodeFragment(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{
			name: "Plain UTF-8",
			data: []byte("<html><body><p>plain</p></body></html>"),
			want: "<html><body><p>plain</p></body></html>",
		},
		{
			name: "UTF-16 LE with BOM",
			data: append([]byte{0xFF, 0xFE}, []byte{'<', 0, 'p', 0, '>', 0, 'o', 0, 'k', 0}...),
			want: "<p>ok",
		},
		{
			name: "Legacy charset from meta",
			data: append([]byte(`<html><head><meta charset="windows-1251"></head><body>`), 0xCF, 0xF0),
			want: "<html><head><meta charset=\"windows-1251\"></head><body>Пр",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := decodeFragment(tt.data)
			if err != nil {
				t.Fatalf("Failed to decode fragment: %v", err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("Failed to read decoded fragment: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("decodeFragment() produced %q, want %q", got, tt.want)
			}
		})
	}
}

// writeEpubFile creates a minimal but properly packaged EPUB container: the
// mimetype entry first and stored, so the file carries the EPUB signature.
func writeEpubFile(t *testing.T, path string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	mt, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("Failed to create mimetype entry: %v", err)
	}
	if _, err := mt.Write([]byte("application/epub+zip")); err != nil {
		t.Fatalf("Failed to write mimetype entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to finalize archive: %v", err)
	}
}

func writeZipFile(t *testing.T, path string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	e, err := w.Create("readme.txt")
	if err != nil {
		t.Fatalf("Failed to create entry: %v", err)
	}
	if _, err := e.Write([]byte("not a book")); err != nil {
		t.Fatalf("Failed to write entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to finalize archive: %v", err)
	}
}

func TestIsBookFile(t *testing.T) {
	dir := t.TempDir()

	book := filepath.Join(dir, "book.epub")
	writeEpubFile(t, book)

	upper := filepath.Join(dir, "BOOK.EPUB")
	writeEpubFile(t, upper)

	plainZip := filepath.Join(dir, "sloppy.epub")
	writeZipFile(t, plainZip)

	wrongExt := filepath.Join(dir, "book.zip")
	writeEpubFile(t, wrongExt)

	text := filepath.Join(dir, "notes.epub")
	if err := os.WriteFile(text, []byte("just text"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"Proper book", book, true},
		{"Upper case extension", upper, true},
		{"Zip without mimetype entry", plainZip, false},
		{"Book content, wrong extension", wrongExt, false},
		{"Not an archive", text, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := isBookFile(tt.path)
			if err != nil {
				t.Fatalf("Failed to check file: %v", err)
			}
			if got != tt.want {
				t.Errorf("isBookFile() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("Nonexistent file", func(t *testing.T) {
		if _, err := isBookFile(filepath.Join(dir, "missing.epub")); err == nil {
			t.Error("isBookFile() did not report error for missing file")
		}
	})
}

func TestIsArchiveFile(t *testing.T) {
	dir := t.TempDir()

	plainZip := filepath.Join(dir, "sloppy.epub")
	writeZipFile(t, plainZip)

	text := filepath.Join(dir, "notes.epub")
	if err := os.WriteFile(text, []byte("just text"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if got, err := isArchiveFile(plainZip); err != nil || !got {
		t.Errorf("isArchiveFile() = %v, %v, want true", got, err)
	}
	if got, err := isArchiveFile(text); err != nil || got {
		t.Errorf("isArchiveFile() = %v, %v, want false", got, err)
	}
	if _, err := isArchiveFile(filepath.Join(dir, "missing.zip")); err == nil {
		t.Error("isArchiveFile() did not report error for missing file")
	}
}
