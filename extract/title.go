package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// untitledChapter is the title of last resort.
const untitledChapter = "Untitled Chapter"

var reChapterNumber = regexp.MustCompile(`(?i)^(chapter|ch\.?)\s+\d+`)

// titleStrategy is a single way of extracting a chapter title. It reports
// whether it found one.
type titleStrategy func(doc *goquery.Document) (string, bool)

var titleStrategies = []titleStrategy{
	firstNodeText("h1"),
	firstNodeText("h2"),
	firstNodeText("h3"),
	firstNodeText("title"),
	chapterNumberText,
}

// resolveTitle derives a chapter title from the fragment tree trying
// strategies in order of preference. It always returns a non-empty title.
func resolveTitle(doc *goquery.Document) string {
	for _, strategy := range titleStrategies {
		if title, ok := strategy(doc); ok {
			return title
		}
	}
	return untitledChapter
}

// firstNodeText builds a strategy returning the trimmed text of the first
// node matching selector when it is non-blank. Only the first match is
// consulted: a blank first heading moves the chain to the next strategy, not
// to the second heading of the same level.
func firstNodeText(selector string) titleStrategy {
	return func(doc *goquery.Document) (string, bool) {
		title := strings.TrimSpace(doc.Find(selector).First().Text())
		return title, title != ""
	}
}

// chapterNumberText scans paragraph and container nodes in document order for
// text that starts like a chapter designation ("Chapter 12", "ch. 3") and
// returns the first hit in its original case.
func chapterNumberText(doc *goquery.Document) (string, bool) {
	var title string
	doc.Find("p, div, span").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if reChapterNumber.MatchString(text) {
			title = text
			return false
		}
		return true
	})
	return title, title != ""
}
