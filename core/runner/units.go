package runner

import (
	"context"
	"fmt"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/canon"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/script"
)

// fetch reads every verse of the selection, in canonical order. Verse 0 is
// kept only when it has text.
func (r *Runner) fetch(ctx context.Context, sel Selector, src TextSource) ([]checks.VerseData, []int, error) {
	books, err := r.selectBooks(sel)
	if err != nil {
		return nil, nil, err
	}

	var verses []checks.VerseData
	for _, book := range books {
		first, last := 1, src.LastChapter(book)
		if sel.Scope == checks.ScopeChapter || sel.Scope == checks.ScopeVerse {
			first, last = sel.Chapter, sel.Chapter
		}
		for ch := first; ch <= last; ch++ {
			lastVerse := src.LastVerse(book, ch)
			for v := 0; v <= lastVerse; v++ {
				if sel.Scope == checks.ScopeVerse && v != sel.Verse {
					continue
				}
				if err := ctx.Err(); err != nil {
					return nil, nil, err
				}
				loc := checks.VerseLocation{Book: book, Chapter: ch, Verse: v}
				text, err := src.VerseText(loc)
				if err != nil {
					return nil, nil, errors.Wrapf(err, "reading %s", loc)
				}
				if v == 0 && text == "" {
					continue
				}
				verses = append(verses, checks.VerseData{Location: loc, Text: text})
			}
		}
	}
	return verses, books, nil
}

func (r *Runner) selectBooks(sel Selector) ([]int, error) {
	switch sel.Scope {
	case checks.ScopeProject:
		if r.opts.Project == nil {
			return nil, errors.NewValidation("scope", "a project selection needs a project context")
		}
		return r.opts.Project.Present.Nums(), nil
	case checks.ScopeBook, checks.ScopeChapter, checks.ScopeVerse:
		if sel.Book < 1 || sel.Book > canon.Count {
			return nil, errors.NewValidation("book", fmt.Sprintf("book %d is out of range", sel.Book))
		}
		if sel.Scope != checks.ScopeBook && sel.Chapter < 1 {
			return nil, errors.NewValidation("chapter", "chapter must be at least 1")
		}
		if sel.Scope == checks.ScopeVerse && sel.Verse < 0 {
			return nil, errors.NewValidation("verse", "verse must not be negative")
		}
		return []int{sel.Book}, nil
	default:
		return nil, errors.NewValidation("scope", fmt.Sprintf("%q is not a scope", sel.Scope))
	}
}

// units batches verses at a check's scope. Verses arrive in canonical order,
// so each chapter or book is a contiguous run.
func units(scope checks.Scope, verses []checks.VerseData) []script.Unit {
	if len(verses) == 0 {
		return nil
	}
	same := func(a, b checks.VerseLocation) bool {
		switch scope {
		case checks.ScopeVerse:
			return false
		case checks.ScopeChapter:
			return a.Book == b.Book && a.Chapter == b.Chapter
		case checks.ScopeBook:
			return a.Book == b.Book
		default:
			return true
		}
	}

	var out []script.Unit
	start := 0
	for i := 1; i <= len(verses); i++ {
		if i < len(verses) && same(verses[start].Location, verses[i].Location) {
			continue
		}
		out = append(out, script.Unit{Scope: scope, Verses: verses[start:i:i]})
		start = i
	}
	return out
}

func unitLabel(u script.Unit) string {
	if len(u.Verses) == 0 {
		return string(u.Scope)
	}
	loc := u.Verses[0].Location
	code := canon.CodeFromNum(loc.Book)
	switch u.Scope {
	case checks.ScopeVerse:
		return loc.String()
	case checks.ScopeChapter:
		return fmt.Sprintf("%s %d", code, loc.Chapter)
	case checks.ScopeBook:
		return code
	default:
		return "project"
	}
}
