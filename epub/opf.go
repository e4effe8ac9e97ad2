package epub

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

const dcNamespace = "http://purl.org/dc/elements/1.1/"

// pkgDocument is the parsed OPF package document.
type pkgDocument struct {
	meta     Metadata
	manifest map[string]ManifestItem
	spine    []string
}

// parsePackage walks the OPF package document. Hrefs are resolved against
// opfDir, the container directory the package document lives in.
func parsePackage(doc *etree.Document, opfDir string, log *zap.Logger) (*pkgDocument, error) {
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("package document has no root element")
	}
	if root.Tag != "package" {
		return nil, fmt.Errorf("unexpected root element %q in package document", root.Tag)
	}

	pkg := &pkgDocument{
		manifest: make(map[string]ManifestItem),
	}
	uniqueID := root.SelectAttrValue("unique-identifier", "")

	for _, child := range root.ChildElements() {
		switch child.Tag {
		case "metadata":
			pkg.meta = parseMetadata(child, uniqueID, log)
		case "manifest":
			parseManifest(child, opfDir, pkg.manifest, log)
		case "spine":
			pkg.spine = parseSpine(child, log)
		case "guide", "tours", "bindings", "collection":
			// legacy and optional package parts are not used
		default:
			log.Warn("Unexpected tag in package, ignoring", zap.String("parent", root.Tag), zap.String("tag", child.Tag))
		}
	}
	return pkg, nil
}

func parseMetadata(el *etree.Element, uniqueID string, log *zap.Logger) Metadata {
	var meta Metadata
	for _, child := range el.ChildElements() {
		if !dublinCore(child) {
			// OPF-specific children (meta, link) carry no Dublin Core values
			continue
		}
		switch child.Tag {
		case "title":
			if meta.Title == "" {
				meta.Title = strings.TrimSpace(child.Text())
			}
		case "creator":
			if name := strings.TrimSpace(child.Text()); name != "" {
				meta.Authors = append(meta.Authors, name)
			}
		case "language":
			if meta.Language == "" {
				meta.Language = strings.TrimSpace(child.Text())
			}
		case "identifier":
			value := strings.TrimSpace(child.Text())
			if value == "" {
				continue
			}
			// The identifier the package points at wins over declaration order.
			if uniqueID != "" && child.SelectAttrValue("id", "") == uniqueID {
				meta.Identifier = value
			} else if meta.Identifier == "" {
				meta.Identifier = value
			}
		case "contributor", "coverage", "date", "description", "format", "publisher", "relation", "rights", "source", "subject", "type":
			// remaining Dublin Core terms are not used
		default:
			log.Warn("Unexpected tag in metadata, ignoring", zap.String("parent", el.Tag), zap.String("tag", child.Tag))
		}
	}
	return meta
}

// dublinCore reports whether an element belongs to the Dublin Core
// namespace. Books with broken namespace declarations are common, so when the
// namespace cannot be resolved the "dc" prefix or a bare tag is accepted.
func dublinCore(el *etree.Element) bool {
	if uri := el.NamespaceURI(); uri != "" {
		return uri == dcNamespace
	}
	return el.Space == "dc" || el.Space == ""
}

func parseManifest(el *etree.Element, opfDir string, items map[string]ManifestItem, log *zap.Logger) {
	for _, child := range el.ChildElements() {
		if child.Tag != "item" {
			log.Warn("Unexpected tag in manifest, ignoring", zap.String("parent", el.Tag), zap.String("tag", child.Tag))
			continue
		}
		id := child.SelectAttrValue("id", "")
		href := child.SelectAttrValue("href", "")
		if id == "" || href == "" {
			log.Warn("Manifest item without id or href, ignoring", zap.String("id", id), zap.String("href", href))
			continue
		}
		if _, dup := items[id]; dup {
			log.Warn("Duplicate manifest item, keeping first", zap.String("id", id))
			continue
		}
		items[id] = ManifestItem{
			ID:        id,
			Name:      resolveHref(opfDir, href),
			MediaType: child.SelectAttrValue("media-type", ""),
		}
	}
}

func parseSpine(el *etree.Element, log *zap.Logger) []string {
	var refs []string
	for _, child := range el.ChildElements() {
		if child.Tag != "itemref" {
			log.Warn("Unexpected tag in spine, ignoring", zap.String("parent", el.Tag), zap.String("tag", child.Tag))
			continue
		}
		idref := child.SelectAttrValue("idref", "")
		if idref == "" {
			log.Warn("Spine reference without idref, ignoring")
			continue
		}
		refs = append(refs, idref)
	}
	return refs
}

// resolveHref turns a manifest href into a container entry name. Hrefs are
// percent-encoded URIs relative to the package document directory.
func resolveHref(opfDir, href string) string {
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	return path.Join(opfDir, href)
}
