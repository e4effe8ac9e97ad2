package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"epubmd/epub"
	"epubmd/misc"
	"epubmd/state"
)

// Chapter is one accepted fragment: a resolved title and its content rendered
// as markdown. Position is the 1-based number among accepted chapters and
// drives output naming.
type Chapter struct {
	Position int
	Title    string
	Content  string
}

// fragmentResult is the outcome of processing a single spine fragment:
// a chapter, a classification skip with its reason, or an error. Failures
// never leave the result.
type fragmentResult struct {
	pos  int    // 1-based position in the spine
	name string // container entry name
	raw  []byte // fragment payload as stored in the container

	chapter *Chapter
	reason  string
	err     error
	stack   []byte
}

// extractChapters runs every spine fragment through title resolution,
// classification and markdown conversion, in reading order. A failed fragment
// is logged and skipped, it never aborts the run. Chapters are numbered by
// accepted position only.
func extractChapters(ctx context.Context, book *epub.Book, env *state.LocalEnv, log *zap.Logger) ([]Chapter, error) {
	conv := newConverter()
	minLength := env.Cfg.Document.MinTextLength
	workDir := prepareWorkDir(book, env, log)

	chapters := make([]Chapter, 0, len(book.Fragments()))
	for i, frag := range book.Fragments() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res := processFragment(&frag, i+1, len(chapters)+1, conv, minLength)
		switch {
		case res.err != nil:
			fields := []zap.Field{zap.Int("position", res.pos), zap.String("fragment", res.name), zap.Error(res.err)}
			if len(res.stack) != 0 {
				fields = append(fields, zap.ByteString("stack", res.stack))
			}
			log.Error("Unable to process fragment", fields...)
		case res.chapter == nil:
			log.Info("Skipping fragment", zap.Int("position", res.pos), zap.String("fragment", res.name), zap.String("reason", res.reason))
		default:
			chapters = append(chapters, *res.chapter)
			log.Info("Fragment processed", zap.Int("position", res.pos), zap.Int("chapter", res.chapter.Position), zap.String("title", res.chapter.Title))
		}

		if workDir != "" {
			storeFragmentArtifacts(workDir, &res, log)
		}
	}
	return chapters, nil
}

// processFragment turns one spine fragment into a chapter. All failure modes
// stay inside the returned result: the classifier may reject the fragment and
// any processing error or panic is captured.
func processFragment(frag *epub.Fragment, pos, chapterPos int, conv *Converter, minLength int) (res fragmentResult) {
	res = fragmentResult{pos: pos, name: frag.Name}

	defer func() {
		if r := recover(); r != nil {
			res.chapter = nil
			res.err = fmt.Errorf("fragment panic: %v", r)
			res.stack = debug.Stack()
		}
	}()

	data, err := frag.Content()
	if err != nil {
		res.err = fmt.Errorf("unable to read fragment: %w", err)
		return res
	}
	res.raw = data

	rd, err := decodeFragment(data)
	if err != nil {
		res.err = fmt.Errorf("unable to decode fragment: %w", err)
		return res
	}
	text, err := io.ReadAll(rd)
	if err != nil {
		res.err = fmt.Errorf("unable to decode fragment: %w", err)
		return res
	}

	// One parse serves both title resolution and the length gate. The title
	// is resolved before any cleanup so head material stays reachable.
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(text))
	if err != nil {
		res.err = fmt.Errorf("unable to parse fragment: %w", err)
		return res
	}

	title := resolveTitle(doc)

	if textLen := fragmentTextLength(doc); tooShort(textLen, minLength) {
		res.reason = fmt.Sprintf("too short (%d chars)", textLen)
		return res
	}

	markdown, err := conv.Convert(string(text))
	if err != nil {
		res.err = fmt.Errorf("unable to convert fragment: %w", err)
		return res
	}
	if emptyAfterConversion(markdown) {
		res.reason = "no content after conversion"
		return res
	}

	res.chapter = &Chapter{Position: chapterPos, Title: title, Content: markdown}
	return res
}

// prepareWorkDir sets up the debug artifact directory when a report was
// requested. The directory is registered with the report up front, its
// content is collected when the report is finalized.
func prepareWorkDir(book *epub.Book, env *state.LocalEnv, log *zap.Logger) string {
	if env.Rpt == nil {
		return ""
	}

	dir, err := os.MkdirTemp("", misc.GetAppName()+"-w-")
	if err != nil {
		log.Warn("Unable to create work directory, debug artifacts disabled", zap.Error(err))
		return ""
	}
	env.Rpt.Store(fmt.Sprintf("%s-%s", misc.GetAppName(), book.Meta.Identifier), dir)

	if err := os.WriteFile(filepath.Join(dir, "book.txt"), []byte(book.String()), 0644); err != nil {
		log.Debug("Unable to store book dump", zap.Error(err))
	}
	return dir
}

// storeFragmentArtifacts keeps per-fragment debugging material in the work
// directory: the payload as stored in the container and, for accepted
// fragments, the produced markdown. Best effort only.
func storeFragmentArtifacts(dir string, res *fragmentResult, log *zap.Logger) {
	if len(res.raw) != 0 {
		name := fmt.Sprintf("%03d-%s", res.pos, filepath.Base(res.name))
		if err := os.WriteFile(filepath.Join(dir, name), res.raw, 0644); err != nil {
			log.Debug("Unable to store fragment artifact", zap.String("file", name), zap.Error(err))
		}
	}
	if res.chapter == nil {
		return
	}
	name := fmt.Sprintf("%03d.md", res.pos)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(res.chapter.Content), 0644); err != nil {
		log.Debug("Unable to store fragment artifact", zap.String("file", name), zap.Error(err))
	}
}
