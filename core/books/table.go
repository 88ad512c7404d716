// Package books resolves locale-specific book names to canonical books and
// tracks which books a project contains.
package books

import (
	"log/slog"
	"strings"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/canon"
)

// Entry is one row of a project's book-name table.
type Entry struct {
	Code         string `json:"code"`
	BookNum      int    `json:"book_num"`
	Abbreviation string `json:"abbreviation,omitempty"`
	ShortName    string `json:"short_name,omitempty"`
	LongName     string `json:"long_name,omitempty"`
}

// NameForm selects which name of a book is used when rendering references.
type NameForm int

const (
	FormAbbreviation NameForm = iota
	FormShortName
	FormLongName
	FormCode
)

// ParseNameForm maps a project setting value to a NameForm. Unrecognised
// values fall back to FormAbbreviation.
func ParseNameForm(s string) NameForm {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short", "shortname":
		return FormShortName
	case "long", "longname":
		return FormLongName
	case "code", "bookcode":
		return FormCode
	default:
		return FormAbbreviation
	}
}

func (f NameForm) String() string {
	switch f {
	case FormShortName:
		return "ShortName"
	case FormLongName:
		return "LongName"
	case FormCode:
		return "Code"
	default:
		return "Abbreviation"
	}
}

// Table is an immutable, case-insensitive alias index over book-name entries.
//
// Aliases are the lower-cased code, abbreviation, short name and long name of
// every retained entry. When two entries share an alias the entry added later
// wins; Overwrites reports how often that happened so callers can surface it.
type Table struct {
	aliases    map[string]int
	byNum      map[int]Entry
	overwrites int
	skipped    int
}

// NewTable builds a table from entries. Entries whose code is not a
// canonical book code, or which carry no names at all, are skipped.
func NewTable(entries []Entry) *Table {
	return newTable(entries, nil)
}

func newTable(entries []Entry, log *slog.Logger) *Table {
	t := &Table{
		aliases: make(map[string]int),
		byNum:   make(map[int]Entry),
	}
	for _, e := range entries {
		e.Code = strings.ToUpper(strings.TrimSpace(e.Code))
		e.Abbreviation = strings.TrimSpace(e.Abbreviation)
		e.ShortName = strings.TrimSpace(e.ShortName)
		e.LongName = strings.TrimSpace(e.LongName)

		num := canon.NumFromCode(e.Code)
		if num == 0 || (e.Abbreviation == "" && e.ShortName == "" && e.LongName == "") {
			t.skipped++
			if log != nil {
				log.Debug("skipping book name entry", "code", e.Code)
			}
			continue
		}
		e.BookNum = num
		t.byNum[num] = e

		for _, alias := range []string{e.Code, e.Abbreviation, e.ShortName, e.LongName} {
			t.addAlias(alias, num)
		}
	}
	if log != nil && t.overwrites > 0 {
		log.Warn("book name aliases overwritten by later entries", "count", t.overwrites)
	}
	return t
}

func (t *Table) addAlias(alias string, num int) {
	key := normalise(alias)
	if key == "" {
		return
	}
	if prev, ok := t.aliases[key]; ok && prev != num {
		t.overwrites++
	}
	t.aliases[key] = num
}

func normalise(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Resolve looks a token up against every alias, ignoring case and
// surrounding whitespace. A trailing period is tolerated ("Mat.").
func (t *Table) Resolve(token string) (Entry, bool) {
	key := normalise(token)
	if num, ok := t.aliases[key]; ok {
		return t.byNum[num], true
	}
	if trimmed := strings.TrimSuffix(key, "."); trimmed != key {
		if num, ok := t.aliases[trimmed]; ok {
			return t.byNum[num], true
		}
	}
	return Entry{}, false
}

// ByNum returns the entry for a book number.
func (t *Table) ByNum(num int) (Entry, bool) {
	e, ok := t.byNum[num]
	return e, ok
}

// ByCode returns the entry for a canonical code.
func (t *Table) ByCode(code string) (Entry, bool) {
	return t.ByNum(canon.NumFromCode(code))
}

// Name renders a book in the requested form, falling back through the other
// name forms and finally the code when the preferred one is empty.
func (t *Table) Name(num int, form NameForm) string {
	e, ok := t.byNum[num]
	if !ok {
		return canon.CodeFromNum(num)
	}
	var order []string
	switch form {
	case FormShortName:
		order = []string{e.ShortName, e.Abbreviation, e.LongName}
	case FormLongName:
		order = []string{e.LongName, e.ShortName, e.Abbreviation}
	case FormCode:
		return e.Code
	default:
		order = []string{e.Abbreviation, e.ShortName, e.LongName}
	}
	for _, name := range order {
		if name != "" {
			return name
		}
	}
	return e.Code
}

// Len returns the number of retained entries.
func (t *Table) Len() int { return len(t.byNum) }

// Overwrites returns how many aliases were reassigned to a different book
// by a later entry while the table was built.
func (t *Table) Overwrites() int { return t.overwrites }

// Skipped returns how many input entries were dropped as unusable.
func (t *Table) Skipped() int { return t.skipped }

// DefaultEnglish returns a table built from the canonical English names,
// used when a project has no book-name file.
func DefaultEnglish() *Table {
	all := canon.All()
	entries := make([]Entry, 0, len(all))
	for _, b := range all {
		abbr := b.Code[:1] + strings.ToLower(b.Code[1:])
		entries = append(entries, Entry{
			Code:         b.Code,
			Abbreviation: abbr,
			ShortName:    b.English,
		})
	}
	return NewTable(entries)
}
