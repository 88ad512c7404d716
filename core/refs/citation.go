package refs

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/books"
)

// Citation is the structured form of a recognised reference.
type Citation struct {
	BookToken string        `json:"book_token"`
	Book      *books.Entry  `json:"book,omitempty"`
	Groups    []ChapterPart `json:"groups"`
}

// ChapterPart is one chapter of a citation, with either verse spans or a
// chapter range end.
type ChapterPart struct {
	Chapter    int         `json:"chapter"`
	ChapterEnd int         `json:"chapter_end,omitempty"`
	Verses     []VerseSpan `json:"verses,omitempty"`
}

// VerseSpan is a single verse (End == 0) or an inclusive verse range.
type VerseSpan struct {
	Start int `json:"start"`
	End   int `json:"end,omitempty"`
}

// citationGrammar parses a normalised citation body.
// Examples: "3", "3-4", "3:16", "3:16-17,19;4:1"
//
//nolint:govet // participle grammar tags are not standard struct tags
type citationGrammar struct {
	Groups []*chapterGroup `@@ ( ";" @@ )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type chapterGroup struct {
	Chapter int        `@Int`
	Tail    *groupTail `@@?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type groupTail struct {
	Verses     []*verseRange `  ":" @@ ( "," @@ )*`
	ChapterEnd *int          `| "-" @Int`
}

//nolint:govet // participle grammar tags are not standard struct tags
type verseRange struct {
	Start int  `@Int`
	End   *int `( "-" @Int )?`
}

var citationLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[:;,\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var citationParser = participle.MustBuild[citationGrammar](
	participle.Lexer(citationLexer),
	participle.Elide("Whitespace"),
)

// canonicalMark pairs a project separator with the punctuation the grammar
// understands.
type canonicalMark struct {
	sep  string
	mark string
}

// canonicalMarks maps every structural separator of s to grammar punctuation,
// longest separator first. Extra material and final punctuation are not
// structural and are dropped during normalisation.
func canonicalMarks(s Settings) []canonicalMark {
	classes := []struct {
		set  SeparatorSet
		mark string
	}{
		{s.ChapterVerse, ":"},
		{s.VerseRange, "-"},
		{s.VerseSequence, ","},
		{s.ChapterRange, "-"},
		{s.ChapterSequence, ";"},
		{s.BookSequence, ";"},
	}
	seen := make(map[string]bool)
	var marks []canonicalMark
	for _, c := range classes {
		for _, item := range c.set.Items {
			if seen[item] {
				continue
			}
			seen[item] = true
			marks = append(marks, canonicalMark{sep: item, mark: c.mark})
		}
	}
	sort.SliceStable(marks, func(i, j int) bool { return len(marks[i].sep) > len(marks[j].sep) })
	return marks
}

// normaliseBody rewrites a citation body in grammar punctuation. Sub-verse
// letters and non-structural punctuation are removed.
func normaliseBody(body string, s Settings) string {
	marks := canonicalMarks(s)
	var sb strings.Builder
	for i := 0; i < len(body); {
		r, size := utf8.DecodeRuneInString(body[i:])
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
			i += size
			continue
		}
		matched := false
		for _, m := range marks {
			if strings.HasPrefix(body[i:], m.sep) {
				sb.WriteString(m.mark)
				i += len(m.sep)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if unicode.IsSpace(r) {
			sb.WriteByte(' ')
		}
		i += size
	}
	return strings.TrimRight(strings.TrimSpace(sb.String()), ":;,- ")
}

// Parse converts a match into a Citation, interpreting its punctuation with
// the conventions of the pattern that produced it.
func (m *Matcher) Parse(match Match) (*Citation, error) {
	normalised := normaliseBody(match.Body, m.settingsFor(match))
	if normalised == "" {
		return nil, fmt.Errorf("reference %q has no chapter", match.Text)
	}

	parsed, err := citationParser.ParseString("", normalised)
	if err != nil {
		return nil, fmt.Errorf("invalid reference format: %q: %w", match.Text, err)
	}

	c := &Citation{BookToken: match.BookToken, Book: match.Book}
	for _, g := range parsed.Groups {
		part := ChapterPart{Chapter: g.Chapter}
		if g.Tail != nil {
			if g.Tail.ChapterEnd != nil {
				part.ChapterEnd = *g.Tail.ChapterEnd
			}
			for _, v := range g.Tail.Verses {
				span := VerseSpan{Start: v.Start}
				if v.End != nil {
					span.End = *v.End
				}
				part.Verses = append(part.Verses, span)
			}
		}
		c.Groups = append(c.Groups, part)
	}
	return c, nil
}

// Problems lists ordering defects in a citation: ranges that run backwards
// and chapter or verse numbers of zero.
func (c *Citation) Problems() []string {
	var out []string
	for _, g := range c.Groups {
		if g.Chapter == 0 {
			out = append(out, "chapter 0")
		}
		if g.ChapterEnd != 0 && g.ChapterEnd <= g.Chapter {
			out = append(out, fmt.Sprintf("chapter range %d-%d runs backwards", g.Chapter, g.ChapterEnd))
		}
		for _, v := range g.Verses {
			if v.Start == 0 {
				out = append(out, fmt.Sprintf("verse 0 in chapter %d", g.Chapter))
			}
			if v.End != 0 && v.End <= v.Start {
				out = append(out, fmt.Sprintf("verse range %d-%d runs backwards", v.Start, v.End))
			}
		}
	}
	return out
}
