package refs

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/books"
)

// Match is one reference recognised in a text. Start and End are byte
// offsets into the source; RuneStart and RuneEnd are character offsets.
type Match struct {
	Start     int    `json:"start"`
	End       int    `json:"end"`
	RuneStart int    `json:"rune_start"`
	RuneEnd   int    `json:"rune_end"`
	Text      string `json:"text"`
	BookToken string `json:"book_token"`
	// Body is the chapter/verse portion that follows the book token.
	Body string `json:"body"`
	// Book is the resolved book, nil when the token is not in the name table.
	Book *books.Entry `json:"book,omitempty"`
	// Pattern names the compiled pattern that produced the match and
	// PatternIndex its position in the matcher.
	Pattern      string `json:"pattern"`
	PatternIndex int    `json:"pattern_index"`
}

// Len returns the byte length of the match.
func (m Match) Len() int { return m.End - m.Start }

// Overlaps reports whether two matches share any byte.
func (m Match) Overlaps(o Match) bool { return m.Start < o.End && o.Start < m.End }

const (
	// PatternProject names the marker-led pattern built from project settings.
	PatternProject = "project"
	// PatternEnglish names the fixed English-convention pattern.
	PatternEnglish = "english"
)

type pattern struct {
	name     string
	re       *regexp.Regexp
	settings Settings
}

// Matcher recognises references in text. It is immutable and safe for
// concurrent use.
type Matcher struct {
	names    *books.Table
	settings Settings
	patterns []pattern
}

// englishPattern recognises unmarked references in the interchange
// convention, e.g. "Mat 3:16-17; 4:1" or "1 Cor 2:3,5".
var englishPattern = regexp.MustCompile(
	`(?:^|[^\p{L}\p{M}\p{N}])` +
		`(?P<ref>(?P<book>(?:[1-4]\s?)?\p{Lu}[\p{L}\p{M}]*\.?)\s+` +
		`(?P<body>\d+:\d+[a-z]?(?:\s*[-–]\s*\d+[a-z]?)?` +
		`(?:\s*[,;]\s*\d+(?::\d+)?[a-z]?(?:\s*[-–]\s*\d+[a-z]?)?)*))`)

// Compile builds a Matcher from a project's book names and punctuation
// settings. The project pattern requires one of the configured markers
// (e.g. `\xt`) before the book token; the English pattern is always added
// after it.
func Compile(names *books.Table, s Settings) (*Matcher, error) {
	if names == nil {
		names = books.DefaultEnglish()
	}
	if len(s.Markers.Items) == 0 {
		s.Markers = SeparatorSet{Name: KeyMarkers, Items: []string{DefaultMarker}}
	}
	projectRe, err := regexp.Compile(projectExpr(s))
	if err != nil {
		return nil, fmt.Errorf("compiling reference pattern: %w", err)
	}
	return &Matcher{
		names:    names,
		settings: s,
		patterns: []pattern{
			{name: PatternProject, re: projectRe, settings: s},
			{name: PatternEnglish, re: englishPattern, settings: English()},
		},
	}, nil
}

// Book tokens take combining marks as well as letters; Devanagari, Thai
// and Tamil names carry them.
func projectExpr(s Settings) string {
	markers := quoteAll(s.Markers.Items)
	seps := quoteAll(s.Union())

	body := `\d+[a-z]?`
	if len(seps) > 0 {
		body = `\d+[a-z]?(?:\s*(?:` + strings.Join(seps, "|") + `)\s*\d+[a-z]?)*`
	}
	return `\\(?:` + strings.Join(markers, "|") + `)\*?\s+` +
		`(?P<ref>(?P<book>(?:[0-9]\s?)?[\p{L}\p{M}]+\.?)\s*(?P<body>` + body + `))`
}

func quoteAll(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool)
	for _, item := range items {
		q := regexp.QuoteMeta(item)
		if !seen[q] {
			seen[q] = true
			out = append(out, q)
		}
	}
	return out
}

// Settings returns the punctuation settings the matcher was built from.
func (m *Matcher) Settings() Settings { return m.settings }

// Names returns the book-name table the matcher resolves against.
func (m *Matcher) Names() *books.Table { return m.names }

// FindAll applies every compiled pattern to text and returns all matches,
// ordered by start offset and then pattern order.
//
// Matches from different patterns are not de-duplicated: the same citation
// can be reported by both the project and the English pattern, and spans may
// overlap. Callers choose an overlap policy, typically via Arbitrate.
func (m *Matcher) FindAll(text string) []Match {
	var out []Match
	for pi, p := range m.patterns {
		refIdx := p.re.SubexpIndex("ref")
		bookIdx := p.re.SubexpIndex("book")
		bodyIdx := p.re.SubexpIndex("body")
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2*refIdx], loc[2*refIdx+1]
			token := text[loc[2*bookIdx]:loc[2*bookIdx+1]]
			match := Match{
				Start:        start,
				End:          end,
				RuneStart:    utf8.RuneCountInString(text[:start]),
				RuneEnd:      utf8.RuneCountInString(text[:end]),
				Text:         text[start:end],
				BookToken:    token,
				Body:         text[loc[2*bodyIdx]:loc[2*bodyIdx+1]],
				Pattern:      p.name,
				PatternIndex: pi,
			}
			if e, ok := m.names.Resolve(token); ok {
				match.Book = &e
			}
			out = append(out, match)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].PatternIndex < out[j].PatternIndex
	})
	return out
}

// settingsFor returns the conventions under which a match's body was
// recognised.
func (m *Matcher) settingsFor(match Match) Settings {
	if match.PatternIndex >= 0 && match.PatternIndex < len(m.patterns) {
		return m.patterns[match.PatternIndex].settings
	}
	return m.settings
}
