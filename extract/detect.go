package extract

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

type srcEncoding int

const (
	encUnknown srcEncoding = iota
	encUTF8
	encUTF16BigEndian
	encUTF16LittleEndian
	encUTF32BigEndian
	encUTF32LittleEndian
)

// detectUTF sniffs buf for a Unicode byte order mark. UTF-32 marks are checked
// before UTF-16 ones since a little endian UTF-32 BOM starts with a little
// endian UTF-16 BOM.
func detectUTF(buf []byte) srcEncoding {
	switch {
	case isUTF32BigEndianBOM4(buf):
		return encUTF32BigEndian
	case isUTF32LittleEndianBOM4(buf):
		return encUTF32LittleEndian
	case isUTF8BOM3(buf):
		return encUTF8
	case isUTF16BigEndianBOM2(buf):
		return encUTF16BigEndian
	case isUTF16LittleEndianBOM2(buf):
		return encUTF16LittleEndian
	}
	return encUnknown
}

func isUTF8BOM3(buf []byte) bool {
	return len(buf) >= 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF
}

func isUTF16BigEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFE && buf[1] == 0xFF
}

func isUTF16LittleEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFF && buf[1] == 0xFE
}

func isUTF32BigEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0x00 && buf[1] == 0x00 && buf[2] == 0xFE && buf[3] == 0xFF
}

func isUTF32LittleEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0xFF && buf[1] == 0xFE && buf[2] == 0x00 && buf[3] == 0x00
}

// selectReader wraps r with a decoder converting from the detected encoding to
// UTF-8. Decoders consume the leading BOM.
func selectReader(r io.Reader, enc srcEncoding) io.Reader {
	switch enc {
	case encUnknown:
		return r
	case encUTF8:
		return unicode.UTF8BOM.NewDecoder().Reader(r)
	case encUTF16BigEndian:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Reader(r)
	case encUTF16LittleEndian:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Reader(r)
	case encUTF32BigEndian:
		return utf32.UTF32(utf32.BigEndian, utf32.UseBOM).NewDecoder().Reader(r)
	case encUTF32LittleEndian:
		return utf32.UTF32(utf32.LittleEndian, utf32.UseBOM).NewDecoder().Reader(r)
	default:
		// this should never happen
		panic("unsupported encoding requested")
	}
}

// decodeFragment wraps raw fragment bytes in a reader producing UTF-8. A byte
// order mark always wins, otherwise detection falls back to what the document
// declares about itself (XML declaration or meta charset) with UTF-8 as the
// default.
func decodeFragment(data []byte) (io.Reader, error) {
	if enc := detectUTF(data); enc != encUnknown {
		return selectReader(bytes.NewReader(data), enc), nil
	}
	return charset.NewReader(bytes.NewReader(data), "")
}

// headerSize is how much of a file magic based type detection needs to see.
const headerSize = 512

func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, headerSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return buf[:n], nil
}

// isBookFile reports whether path looks like an EPUB container: a zip with the
// EPUB mimetype entry stored first.
func isBookFile(path string) (bool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".epub") {
		return false, nil
	}
	buf, err := readHeader(path)
	if err != nil {
		return false, err
	}
	return filetype.Is(buf, "epub"), nil
}

// isArchiveFile reports whether path is a plain zip archive. Books which
// violate OCF packaging rules (mimetype entry missing, compressed or out of
// place) fail the EPUB signature check while remaining perfectly readable, so
// the caller may want to try those anyway.
func isArchiveFile(path string) (bool, error) {
	buf, err := readHeader(path)
	if err != nil {
		return false, err
	}
	return filetype.Is(buf, "zip"), nil
}
