// Package archive builds book container access on top of "archive/zip".
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// Books are small, anything bigger than this is either corrupt or malicious.
const maxEntrySize = 256 << 20

var (
	// ErrEntryNotFound is returned when the requested entry is not present in the container.
	ErrEntryNotFound = errors.New("entry not found in container")
	// ErrEntryTooLarge is returned when an entry decompresses past maxEntrySize.
	ErrEntryTooLarge = errors.New("entry exceeds size limit")
)

// Reader provides access to container entries by name. Entry names inside
// book containers are not always consistently cased, so lookups fall back to
// a case-insensitive match when the exact name is absent.
type Reader struct {
	rc     *zip.ReadCloser
	files  map[string]*zip.File
	folded map[string]*zip.File
}

// OpenReader opens the container at path and indexes its entries. Entries
// with path traversal components ("..") or absolute paths cause an error to
// prevent Zip Slip attacks.
func OpenReader(archive string) (*Reader, error) {

	rc, err := zip.OpenReader(archive)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		rc:     rc,
		files:  make(map[string]*zip.File, len(rc.File)),
		folded: make(map[string]*zip.File, len(rc.File)),
	}

	for _, f := range rc.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			rc.Close()
			return nil, fmt.Errorf("container entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() {
			continue
		}
		r.files[name] = f
		folded := strings.ToLower(name)
		if _, exists := r.folded[folded]; !exists {
			r.folded[folded] = f
		}
	}
	return r, nil
}

// Close releases the underlying archive.
func (r *Reader) Close() error {
	return r.rc.Close()
}

// Has reports whether the container holds an entry under name (exact or
// case-insensitive).
func (r *Reader) Has(name string) bool {
	return r.lookup(name) != nil
}

// ReadFile returns the full content of the named entry.
func (r *Reader) ReadFile(name string) ([]byte, error) {
	f := r.lookup(name)
	if f == nil {
		return nil, fmt.Errorf("%w: %q", ErrEntryNotFound, name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("unable to open container entry %q: %w", name, err)
	}
	defer rc.Close()

	// Read one byte past the limit so a truncated read is distinguishable
	// from an entry that is exactly at the limit.
	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("unable to read container entry %q: %w", name, err)
	}
	if len(data) > maxEntrySize {
		return nil, fmt.Errorf("%w: %q", ErrEntryTooLarge, name)
	}
	return data, nil
}

func (r *Reader) lookup(name string) *zip.File {
	if f, ok := r.files[name]; ok {
		return f
	}
	if f, ok := r.folded[strings.ToLower(name)]; ok {
		return f
	}
	return nil
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
