package epub

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/maruel/natural"

	"epubmd/utils/debug"
)

// String returns a readable tree of the parsed book structure. It exists
// solely for manual inspection during debugging.
func (b *Book) String() string {
	if b == nil {
		return "<nil Book>"
	}

	tw := debug.NewTreeWriter()

	tw.Line(0, "Book: %s", b.Path)
	tw.Field(1, "Title", b.Meta.Title)
	for i, author := range b.Meta.Authors {
		tw.Field(1, fmt.Sprintf("Author[%d]", i), author)
	}
	tw.Field(1, "Language", b.Meta.Language)
	tw.Field(1, "Identifier", b.Meta.Identifier)

	tw.Line(0, "Manifest (%d items)", len(b.Manifest))
	keys := slices.Collect(maps.Keys(b.Manifest))
	sort.Sort(natural.StringSlice(keys))
	for _, k := range keys {
		item := b.Manifest[k]
		tw.Line(1, "Item[%q] name[%q] media[%q]", k, item.Name, item.MediaType)
	}

	tw.Line(0, "Spine (%d content documents)", len(b.fragments))
	for i, f := range b.fragments {
		tw.Line(1, "Fragment[%d] id[%q] name[%q]", i, f.ID, f.Name)
	}

	return tw.String()
}
