package epub

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// parseRootFile walks the OCF container manifest and returns the entry name
// of the first package document it declares.
func parseRootFile(doc *etree.Document, log *zap.Logger) (string, error) {
	root := doc.Root()
	if root == nil {
		return "", fmt.Errorf("container manifest has no root element")
	}
	if root.Tag != "container" {
		return "", fmt.Errorf("unexpected root element %q in container manifest", root.Tag)
	}

	for _, child := range root.ChildElements() {
		switch child.Tag {
		case "rootfiles":
			for _, rf := range child.ChildElements() {
				if rf.Tag != "rootfile" {
					log.Warn("Unexpected tag in rootfiles, ignoring", zap.String("parent", child.Tag), zap.String("tag", rf.Tag))
					continue
				}
				if rf.SelectAttrValue("media-type", "") != packageMediaType {
					continue
				}
				if fullPath := strings.TrimSpace(rf.SelectAttrValue("full-path", "")); fullPath != "" {
					return fullPath, nil
				}
				log.Warn("Package document declaration without full-path, ignoring")
			}
		case "links":
			// OCF links are not used
		default:
			log.Warn("Unexpected tag in container, ignoring", zap.String("parent", root.Tag), zap.String("tag", child.Tag))
		}
	}
	return "", fmt.Errorf("container manifest declares no package document")
}
