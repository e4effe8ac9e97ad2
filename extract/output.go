package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"epubmd/config"
	"epubmd/epub"
	"epubmd/state"
)

// indexName is the name of the table of contents file.
const indexName = "README.md"

// outputDirFor returns the default destination directory: a sibling of the
// book named after it.
func outputDirFor(src string) string {
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(filepath.Dir(src), stem+"_chapters")
}

// chapterFileName builds the output name for a chapter, relative to the
// destination directory. Chapter files and index links must agree on names or
// the table of contents breaks, so this is the only place deriving them.
//
// Without a template the name is NN_Title.md with the 1-based position among
// accepted chapters. A configured template may add subdirectories, its
// segments are cleaned and optionally transliterated; when expansion fails
// the default naming is used.
func chapterFileName(book *epub.Book, ch Chapter, env *state.LocalEnv) string {
	if env.Cfg.Document.OutputNameTemplate == "" {
		return defaultChapterName(ch, env)
	}
	expandedName := expandChapterName(book, ch, env)
	if expandedName == "" {
		// fallback to default name if template expansion failed
		return defaultChapterName(ch, env)
	}
	return assembleNameWithSubdirs(expandedName, env)
}

func defaultChapterName(ch Chapter, env *state.LocalEnv) string {
	segment := sanitizeTitle(ch.Title)
	if env.Cfg.Document.FileNameTransliterate {
		segment = slug.Make(segment)
	}
	return config.CleanFileName(fmt.Sprintf("%02d_%s", ch.Position, segment)) + ".md"
}

func expandChapterName(book *epub.Book, ch Chapter, env *state.LocalEnv) string {
	values := buildTemplateValues(config.OutputNameTemplateFieldName, book, ch)
	expandedName, err := expandTemplate(config.OutputNameTemplateFieldName, env.Cfg.Document.OutputNameTemplate, values)
	if err != nil {
		env.Log.Warn("Unable to prepare chapter filename", zap.Error(err))
		return ""
	}
	return filepath.FromSlash(expandedName)
}

// assembleNameWithSubdirs takes an expanded template name (which may contain
// path separators for subdirectories) and assembles it into a relative output
// name, cleaning and transliterating segments as needed.
func assembleNameWithSubdirs(expandedName string, env *state.LocalEnv) string {
	pathSegments := splitAndCleanPath(expandedName)
	if len(pathSegments) == 0 {
		return ""
	}

	parts := make([]string, 0, len(pathSegments))
	for _, segment := range pathSegments[:len(pathSegments)-1] {
		parts = append(parts, cleanPathSegment(segment, env))
	}
	parts = append(parts, cleanPathSegment(pathSegments[len(pathSegments)-1], env)+".md")
	return filepath.Join(parts...)
}

func splitAndCleanPath(path string) []string {
	path = strings.TrimSuffix(path, string(os.PathSeparator))
	segments := make([]string, 0, 8)

	for head, tail := filepath.Split(path); tail != ""; head, tail = filepath.Split(head) {
		segments = slices.Insert(segments, 0, tail)
		head = strings.TrimSuffix(head, string(os.PathSeparator))
		if head == "" {
			break
		}
		path = head
	}

	return segments
}

func cleanPathSegment(segment string, env *state.LocalEnv) string {
	if env.Cfg.Document.FileNameTransliterate {
		segment = slug.Make(segment)
	}
	return config.CleanFileName(segment)
}

// writeChapters saves each chapter under dst. A chapter that cannot be
// written is reported and skipped, the remaining ones are still attempted.
func writeChapters(chapters []Chapter, book *epub.Book, dst string, env *state.LocalEnv, log *zap.Logger) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	for _, ch := range chapters {
		name := chapterFileName(book, ch, env)
		full := filepath.Join(dst, name)
		if dir := filepath.Dir(full); dir != dst {
			if err := os.MkdirAll(dir, 0755); err != nil {
				log.Error("Unable to create chapter directory", zap.String("file", full), zap.Error(err))
				continue
			}
		}
		body := fmt.Sprintf("# %s\n\n%s", ch.Title, ch.Content)
		if err := os.WriteFile(full, []byte(body), 0644); err != nil {
			log.Error("Unable to save chapter", zap.String("file", full), zap.Error(err))
			continue
		}
		log.Info("Chapter saved", zap.Int("position", ch.Position), zap.String("title", ch.Title), zap.String("file", name))
	}
	return nil
}

// writeIndex produces the README.md table of contents. Unlike chapter files
// the index is essential, failure to write it fails the run.
func writeIndex(chapters []Chapter, book *epub.Book, dst string, env *state.LocalEnv) error {
	author := "Unknown"
	if len(book.Meta.Authors) > 0 {
		author = strings.Join(book.Meta.Authors, ", ")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", metaOrUnknown(book.Meta.Title)))
	sb.WriteString(fmt.Sprintf("**Author:** %s  \n", author))
	sb.WriteString(fmt.Sprintf("**Language:** %s  \n", metaOrUnknown(book.Meta.Language)))
	sb.WriteString(fmt.Sprintf("**Chapters:** %d\n\n", len(chapters)))
	sb.WriteString("## Table of Contents\n\n")
	for _, ch := range chapters {
		name := chapterFileName(book, ch, env)
		sb.WriteString(fmt.Sprintf("%d. [%s](./%s)\n", ch.Position, ch.Title, filepath.ToSlash(name)))
	}

	path := filepath.Join(dst, indexName)
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("unable to write index %q: %w", path, err)
	}
	return nil
}

func metaOrUnknown(value string) string {
	if value == "" {
		return "Unknown"
	}
	return value
}
