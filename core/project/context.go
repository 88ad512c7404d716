// Package project assembles the immutable per-project context used by
// reference-aware checks: book names, punctuation, present books and the
// compiled reference matcher.
package project

import (
	"io"
	"log/slog"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/books"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/canon"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/refs"
)

// Project setting keys read besides the punctuation keys in package refs.
const (
	KeyBooksPresent = "BooksPresent"
	KeyBookNameForm = "BookSourceForMarkerXt"
	KeyLanguage     = "LanguageIsoCode"
)

var settingKeys = []string{
	refs.KeyChapterVerse,
	refs.KeyVerseRange,
	refs.KeyVerseSequence,
	refs.KeyChapterRange,
	refs.KeyBookSequence,
	refs.KeyChapterSequence,
	refs.KeyExtraMaterial,
	refs.KeyFinalPunctuation,
	refs.KeyMarkers,
	KeyBooksPresent,
	KeyBookNameForm,
	KeyLanguage,
}

// SettingsSource supplies raw project settings. A missing key reports false.
type SettingsSource interface {
	Setting(project, key string) (string, bool)
}

// NamesSource supplies a project's book-name XML. Implementations return an
// error matching errors.ErrNotFound when the project has none.
type NamesSource interface {
	BookNames(project string) (io.ReadCloser, error)
}

// Context is everything a reference-aware check needs to know about one
// project. It is never modified after Build returns.
type Context struct {
	Name     string
	Language string
	Names    *books.Table
	Settings refs.Settings
	Present  books.PresentBooks
	NameForm books.NameForm
	Matcher  *refs.Matcher
}

// Build reads a project's configuration and compiles its matcher. Missing or
// malformed settings and name files degrade to defaults; only a matcher that
// cannot be compiled is an error.
func Build(name string, settings SettingsSource, names NamesSource, log *slog.Logger) (*Context, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("project", name)

	raw := make(map[string]string, len(settingKeys))
	for _, key := range settingKeys {
		if v, ok := settings.Setting(name, key); ok {
			raw[key] = v
		}
	}

	ctx := &Context{
		Name:     name,
		Language: raw[KeyLanguage],
		Settings: refs.BuildSettings(raw),
		NameForm: books.ParseNameForm(raw[KeyBookNameForm]),
		Names:    loadNames(name, names, log),
	}

	if present, ok := raw[KeyBooksPresent]; ok {
		ctx.Present = books.ParsePresentBooks(present)
	} else {
		log.Warn("project has no BooksPresent setting, assuming every book is present")
		flags := make([]bool, canon.Count)
		for i := range flags {
			flags[i] = true
		}
		ctx.Present = books.NewPresentBooks(flags)
	}

	matcher, err := refs.Compile(ctx.Names, ctx.Settings)
	if err != nil {
		return nil, errors.Wrapf(err, "project %s", name)
	}
	ctx.Matcher = matcher

	log.Debug("project context built",
		"books_present", ctx.Present.Len(),
		"book_names", ctx.Names.Len(),
		"alias_overwrites", ctx.Names.Overwrites())
	return ctx, nil
}

func loadNames(project string, src NamesSource, log *slog.Logger) *books.Table {
	if src == nil {
		return books.DefaultEnglish()
	}
	rc, err := src.BookNames(project)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			log.Warn("cannot open book names, using English defaults", "error", err)
		}
		return books.DefaultEnglish()
	}
	defer rc.Close()

	table, err := books.LoadXML(rc, log)
	if err != nil {
		log.Warn("malformed book names, using English defaults", "error", err)
		return books.DefaultEnglish()
	}
	if table.Len() == 0 {
		log.Warn("book names file has no usable entries, using English defaults")
		return books.DefaultEnglish()
	}
	return table
}

// BookName renders a book the way this project writes references.
func (c *Context) BookName(num int) string {
	return c.Names.Name(num, c.NameForm)
}

// FormatRef renders a reference in the project's own conventions.
func (c *Context) FormatRef(book, chapter, verse, verseEnd int) string {
	return c.Settings.Format(c.BookName(book), chapter, verse, verseEnd)
}
