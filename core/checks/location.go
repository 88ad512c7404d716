// Package checks defines check-and-fix items, the find/fix phase pipeline
// they compile to, and the findings they produce.
package checks

import (
	"fmt"
	"strings"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/canon"
)

// Scope is the granularity at which a check is applied.
type Scope string

const (
	ScopeProject Scope = "Project"
	ScopeBook    Scope = "Book"
	ScopeChapter Scope = "Chapter"
	ScopeVerse   Scope = "Verse"
)

// ParseScope maps a scope name to a Scope, ignoring case.
func ParseScope(s string) (Scope, bool) {
	for _, scope := range []Scope{ScopeProject, ScopeBook, ScopeChapter, ScopeVerse} {
		if strings.EqualFold(strings.TrimSpace(s), string(scope)) {
			return scope, true
		}
	}
	return "", false
}

// Valid reports whether s is one of the four known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeProject, ScopeBook, ScopeChapter, ScopeVerse:
		return true
	}
	return false
}

// VerseLocation identifies a verse. Verse 0 holds introductory material.
type VerseLocation struct {
	Book    int `json:"book"`
	Chapter int `json:"chapter"`
	Verse   int `json:"verse"`
}

func (l VerseLocation) String() string {
	code := canon.CodeFromNum(l.Book)
	if code == "" {
		code = fmt.Sprintf("#%d", l.Book)
	}
	return fmt.Sprintf("%s %d:%d", code, l.Chapter, l.Verse)
}

// Less orders locations by book, chapter and verse.
func (l VerseLocation) Less(o VerseLocation) bool {
	if l.Book != o.Book {
		return l.Book < o.Book
	}
	if l.Chapter != o.Chapter {
		return l.Chapter < o.Chapter
	}
	return l.Verse < o.Verse
}

// VerseData is the text of one verse.
type VerseData struct {
	Location VerseLocation `json:"location"`
	Text     string        `json:"text"`
}
