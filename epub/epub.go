// Package epub reads EPUB books: the OCF container manifest, the OPF package
// document with its metadata, manifest and spine, and the spine-ordered
// content documents.
package epub

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"epubmd/archive"
)

const (
	mimetypeName  = "mimetype"
	containerName = "META-INF/container.xml"

	containerMediaType = "application/epub+zip"
	packageMediaType   = "application/oebps-package+xml"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// Metadata holds the Dublin Core fields the package document declares. Values
// are trimmed, absent fields stay empty except Identifier which is always
// populated (generated when the book does not declare one).
type Metadata struct {
	Title      string
	Authors    []string
	Language   string
	Identifier string
}

// ManifestItem is a single manifest entry with its href already resolved to a
// container entry name.
type ManifestItem struct {
	ID        string
	Name      string
	MediaType string
}

// Fragment is a spine-ordered content document. Content is read from the
// container on demand so a damaged fragment only fails when it is processed.
type Fragment struct {
	ID        string
	Name      string
	MediaType string

	rd *archive.Reader
}

// Content returns the raw, undecoded fragment bytes.
func (f *Fragment) Content() ([]byte, error) {
	return f.rd.ReadFile(f.Name)
}

// Book is an open EPUB container. Close must be called when done.
type Book struct {
	Path     string
	Meta     Metadata
	Manifest map[string]ManifestItem

	fragments []Fragment
	rd        *archive.Reader
}

// Fragments returns the book's content documents in spine order. Spine
// references without a manifest item and manifest items that are not content
// documents are left out.
func (b *Book) Fragments() []Fragment {
	return b.fragments
}

// Close releases the underlying container.
func (b *Book) Close() error {
	return b.rd.Close()
}

// Open opens the EPUB at name and parses its package structure. Content
// documents are not read until their Content is requested.
func Open(name string, log *zap.Logger) (*Book, error) {
	rd, err := archive.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("unable to open book container: %w", err)
	}
	book, err := readBook(rd, name, log)
	if err != nil {
		rd.Close()
		return nil, err
	}
	return book, nil
}

func readBook(rd *archive.Reader, name string, log *zap.Logger) (*Book, error) {

	// OCF requires the mimetype entry but many producers get it wrong,
	// complain and continue.
	if data, err := rd.ReadFile(mimetypeName); err != nil {
		log.Warn("Container has no mimetype entry", zap.String("book", name))
	} else if mt := strings.TrimSpace(string(data)); mt != containerMediaType {
		log.Warn("Container has unexpected mimetype", zap.String("book", name), zap.String("mimetype", mt))
	}

	data, err := rd.ReadFile(containerName)
	if err != nil {
		return nil, fmt.Errorf("unable to read container manifest: %w", err)
	}
	doc, err := readXML(data)
	if err != nil {
		return nil, fmt.Errorf("unable to parse container manifest: %w", err)
	}
	opfName, err := parseRootFile(doc, log)
	if err != nil {
		return nil, err
	}

	if data, err = rd.ReadFile(opfName); err != nil {
		return nil, fmt.Errorf("unable to read package document %q: %w", opfName, err)
	}
	if doc, err = readXML(data); err != nil {
		return nil, fmt.Errorf("unable to parse package document %q: %w", opfName, err)
	}
	pkg, err := parsePackage(doc, path.Dir(opfName), log)
	if err != nil {
		return nil, err
	}

	book := &Book{
		Path:     name,
		Meta:     pkg.meta,
		Manifest: pkg.manifest,
		rd:       rd,
	}

	for _, idref := range pkg.spine {
		item, ok := pkg.manifest[idref]
		if !ok {
			log.Debug("Spine reference without manifest item, skipping", zap.String("idref", idref))
			continue
		}
		if !isContentDocument(item.MediaType) {
			log.Debug("Spine item is not a content document, skipping", zap.String("idref", idref), zap.String("mediaType", item.MediaType))
			continue
		}
		book.fragments = append(book.fragments, Fragment{
			ID:        item.ID,
			Name:      item.Name,
			MediaType: item.MediaType,
			rd:        rd,
		})
	}

	// Make sure book ID is never empty - it keys debug artifacts.
	if book.Meta.Identifier == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("unable to generate book ID: %w", err)
		}
		book.Meta.Identifier = id.String()
		log.Debug("Book has no identifier, generating", zap.Stringer("id", id))
	}
	return book, nil
}

// readXML parses an XML container part. Books in the wild declare all kinds
// of encodings and violate the standard often enough that parsing is kept
// permissive.
func readXML(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		ValidateInput: false,
		Permissive:    true,
	}
	if err := doc.ReadFromBytes(bytes.TrimPrefix(data, utf8BOM)); err != nil {
		return nil, err
	}
	return doc, nil
}

// isContentDocument reports whether a manifest media type marks a document
// that can be turned into a chapter.
func isContentDocument(mediaType string) bool {
	switch mediaType {
	case "application/xhtml+xml", "text/html":
		return true
	}
	return false
}
