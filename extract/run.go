package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"epubmd/epub"
	"epubmd/state"
)

// Run is the extract subcommand action: it validates the input book and
// drives it through the chapter pipeline and the output writer.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("extract")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input book has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Mailformed command line, too many sources", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	fi, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input source was not found (%s)", src)
		}
		return fmt.Errorf("unable to access input source: %w", err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("unexpected path mode for (%s)", src)
	}
	if !strings.EqualFold(filepath.Ext(src), ".epub") {
		return fmt.Errorf("input does not look like an EPUB book (%s)", src)
	}

	book, err := isBookFile(src)
	if err != nil {
		return fmt.Errorf("unable to check file type: %w", err)
	}
	if !book {
		// Badly packaged books fail the signature check while remaining
		// readable, a plain zip is enough to try.
		arch, err := isArchiveFile(src)
		if err != nil {
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if !arch {
			return fmt.Errorf("input was not recognized as EPUB book (%s)", src)
		}
		log.Warn("Input has no EPUB signature, trying as plain zip container", zap.String("file", src))
	}

	dst := cmd.String("output")
	if len(dst) == 0 {
		dst = outputDirFor(src)
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}

	log.Info("Extraction starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Extraction completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, log)
}

// process drives a single book through the pipeline and the output writer
// independently of the CLI framework.
func process(ctx context.Context, src, dst string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	// Snapshot the input before touching it, a failure report without the
	// book that caused it is useless.
	if err := env.Rpt.StoreCopy(fmt.Sprintf("source/%s", filepath.Base(src)), src); err != nil {
		log.Debug("Unable to snapshot source book", zap.Error(err))
	}

	book, err := epub.Open(src, log)
	if err != nil {
		return fmt.Errorf("unable to open book (%s): %w", src, err)
	}
	defer book.Close()

	log.Info("Book loaded",
		zap.String("title", book.Meta.Title),
		zap.Strings("authors", book.Meta.Authors),
		zap.String("language", book.Meta.Language),
		zap.String("id", book.Meta.Identifier))
	log.Info("Spine enumerated", zap.Int("fragments", len(book.Fragments())))

	chapters, err := extractChapters(ctx, book, env, log)
	if err != nil {
		return err
	}
	if len(chapters) == 0 {
		log.Info("No chapters found to process")
		return nil
	}

	if err := writeChapters(chapters, book, dst, env, log); err != nil {
		return err
	}
	if err := writeIndex(chapters, book, dst, env); err != nil {
		return err
	}
	log.Info("Book extracted", zap.Int("chapters", len(chapters)), zap.String("to", dst))

	if env.Rpt != nil {
		env.Rpt.Store(fmt.Sprintf("result-%s", book.Meta.Identifier), dst)
	}
	return nil
}
