package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
)

var reBlankLines = regexp.MustCompile(`\n{3,}`)

// Converter renders fragment markup as markdown. One instance serves all
// fragments of a run.
type Converter struct {
	md *converter.Converter
}

func newConverter() *Converter {
	return &Converter{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Convert turns raw fragment markup into clean markdown. Non-content nodes
// (script, style, meta, link) are dropped before rendering, headings come out
// in ATX style with "-" list bullets, runs of blank lines are collapsed to a
// single one and the result is trimmed. The renderer drops script and style
// content on its own as well, removal here keeps their text from leaking into
// the output should the renderer change its mind.
func (c *Converter) Convert(raw string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("unable to parse fragment markup: %w", err)
	}
	doc.Find("script, style, meta, link").Remove()

	cleaned, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		return "", fmt.Errorf("unable to serialize cleaned fragment: %w", err)
	}

	md, err := c.md.ConvertString(cleaned)
	if err != nil {
		return "", fmt.Errorf("unable to render markdown: %w", err)
	}
	return strings.TrimSpace(reBlankLines.ReplaceAllString(md, "\n\n")), nil
}
