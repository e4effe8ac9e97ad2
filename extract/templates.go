package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"epubmd/config"
	"epubmd/epub"
)

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context    string
	Position   int
	Title      string
	BookTitle  string
	Authors    []string
	Language   string
	SourceFile string
	BookID     string
}

func buildTemplateValues(name config.TemplateFieldName, book *epub.Book, ch Chapter) Values {
	return Values{
		Context:    string(name),
		Position:   ch.Position,
		Title:      ch.Title,
		BookTitle:  book.Meta.Title,
		Authors:    book.Meta.Authors,
		Language:   book.Meta.Language,
		SourceFile: strings.TrimSuffix(filepath.Base(book.Path), filepath.Ext(book.Path)),
		BookID:     book.Meta.Identifier,
	}
}

func expandTemplate(name config.TemplateFieldName, field string, values Values) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
