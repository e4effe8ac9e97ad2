package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Acceptance rules for spine fragments. A fragment becomes a chapter only
// when it carries enough plain text to be real content and still has content
// left after markup conversion. Everything else is boilerplate: covers, blank
// pages, copyright notices.

// fragmentTextLength measures the plain text of the whole fragment tree in
// characters. Markup does not count, text inside script and style nodes does -
// the acceptance threshold was tuned against exactly this measure.
func fragmentTextLength(doc *goquery.Document) int {
	return utf8.RuneCountInString(strings.TrimSpace(doc.Text()))
}

// tooShort reports whether textLen characters of plain text is below the
// configured acceptance threshold.
func tooShort(textLen, minLength int) bool {
	return textLen < minLength
}

// emptyAfterConversion reports whether converted markdown has no content left
// once trimmed.
func emptyAfterConversion(markdown string) bool {
	return strings.TrimSpace(markdown) == ""
}
