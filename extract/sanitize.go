package extract

import (
	"regexp"
	"strings"
)

// maxTitleRunes caps the sanitized title segment length in file names.
const maxTitleRunes = 100

var (
	reMarkupTag   = regexp.MustCompile(`<[^>]+>`)
	reUnsafeChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	reWhitespace  = regexp.MustCompile(`\s+`)
)

// sanitizeTitle turns an arbitrary chapter title into a string safe to use as
// a file name segment: markup tags dropped, characters problematic on common
// filesystems replaced with underscores one for one, whitespace runs collapsed
// to a single space, the result trimmed and capped at 100 characters. The
// result may be empty, callers must tolerate that.
func sanitizeTitle(title string) string {
	title = reMarkupTag.ReplaceAllString(title, "")
	title = reUnsafeChars.ReplaceAllString(title, "_")
	title = strings.TrimSpace(reWhitespace.ReplaceAllString(title, " "))
	if r := []rune(title); len(r) > maxTitleRunes {
		return string(r[:maxTitleRunes])
	}
	return title
}
