// Package refs recognises scripture cross-references in free text using a
// project's punctuation conventions and book-name table.
package refs

import (
	"sort"
	"strconv"
	"strings"
)

// Project setting keys read by BuildSettings.
const (
	KeyChapterVerse     = "ChapterVerseSeparator"
	KeyVerseRange       = "RangeIndicator"
	KeyVerseSequence    = "SequenceIndicator"
	KeyChapterRange     = "ChapterRangeSeparator"
	KeyBookSequence     = "BookSequenceSeparator"
	KeyChapterSequence  = "ChapterNumberSeparator"
	KeyExtraMaterial    = "ReferenceExtraMaterial"
	KeyFinalPunctuation = "ReferenceFinalPunctuation"
	KeyMarkers          = "CrossReferenceMarkers"
)

// DefaultMarker is the cross-reference marker used when a project does not
// configure any.
const DefaultMarker = "xt"

// SeparatorSet is a named list of punctuation alternatives.
type SeparatorSet struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

// SplitSetting splits a pipe-delimited setting value. Elements are trimmed,
// empty elements dropped and duplicates removed (case-sensitively), keeping
// first-seen order.
func SplitSetting(name, raw string) SeparatorSet {
	set := SeparatorSet{Name: name}
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, "|") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		set.Items = append(set.Items, part)
	}
	return set
}

// First returns the first alternative, or fallback when the set is empty.
func (s SeparatorSet) First(fallback string) string {
	if len(s.Items) == 0 {
		return fallback
	}
	return s.Items[0]
}

// Settings holds the typed punctuation conventions of one project.
type Settings struct {
	ChapterVerse     SeparatorSet `json:"chapter_verse"`
	VerseRange       SeparatorSet `json:"verse_range"`
	VerseSequence    SeparatorSet `json:"verse_sequence"`
	ChapterRange     SeparatorSet `json:"chapter_range"`
	BookSequence     SeparatorSet `json:"book_sequence"`
	ChapterSequence  SeparatorSet `json:"chapter_sequence"`
	ExtraMaterial    SeparatorSet `json:"extra_material"`
	FinalPunctuation SeparatorSet `json:"final_punctuation"`
	Markers          SeparatorSet `json:"markers"`
}

// BuildSettings reads the punctuation settings out of a project setting map.
// Missing keys give empty sets; a missing marker list falls back to
// DefaultMarker.
func BuildSettings(cfg map[string]string) Settings {
	s := Settings{
		ChapterVerse:     SplitSetting(KeyChapterVerse, cfg[KeyChapterVerse]),
		VerseRange:       SplitSetting(KeyVerseRange, cfg[KeyVerseRange]),
		VerseSequence:    SplitSetting(KeyVerseSequence, cfg[KeyVerseSequence]),
		ChapterRange:     SplitSetting(KeyChapterRange, cfg[KeyChapterRange]),
		BookSequence:     SplitSetting(KeyBookSequence, cfg[KeyBookSequence]),
		ChapterSequence:  SplitSetting(KeyChapterSequence, cfg[KeyChapterSequence]),
		ExtraMaterial:    SplitSetting(KeyExtraMaterial, cfg[KeyExtraMaterial]),
		FinalPunctuation: SplitSetting(KeyFinalPunctuation, cfg[KeyFinalPunctuation]),
		Markers:          SplitSetting(KeyMarkers, cfg[KeyMarkers]),
	}
	if len(s.Markers.Items) == 0 {
		s.Markers.Items = []string{DefaultMarker}
	}
	return s
}

// English returns the de facto interchange conventions ("Mat 3:16-17; 4:1").
func English() Settings {
	return BuildSettings(map[string]string{
		KeyChapterVerse:     ":",
		KeyVerseRange:       "-|–",
		KeyVerseSequence:    ",",
		KeyChapterRange:     "-|–",
		KeyBookSequence:     ";",
		KeyChapterSequence:  ";",
		KeyFinalPunctuation: ".",
	})
}

// punctuation lists the punctuation sets in classification priority order:
// when the same mark appears in two sets the earlier set decides its meaning.
func (s Settings) punctuation() []SeparatorSet {
	return []SeparatorSet{
		s.ChapterVerse,
		s.VerseRange,
		s.VerseSequence,
		s.ChapterRange,
		s.ChapterSequence,
		s.BookSequence,
		s.ExtraMaterial,
		s.FinalPunctuation,
	}
}

// Union returns every punctuation alternative across all sets, de-duplicated
// and ordered longest first so multi-character separators win in a regex
// alternation.
func (s Settings) Union() []string {
	seen := make(map[string]bool)
	var out []string
	for _, set := range s.punctuation() {
		for _, item := range set.Items {
			if !seen[item] {
				seen[item] = true
				out = append(out, item)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// Format renders a reference using the first alternative of each relevant
// set. verse and verseEnd are omitted when zero.
func (s Settings) Format(book string, chapter, verse, verseEnd int) string {
	var sb strings.Builder
	sb.WriteString(book)
	sb.WriteString(" ")
	sb.WriteString(strconv.Itoa(chapter))
	if verse > 0 {
		sb.WriteString(s.ChapterVerse.First(":"))
		sb.WriteString(strconv.Itoa(verse))
		if verseEnd > verse {
			sb.WriteString(s.VerseRange.First("-"))
			sb.WriteString(strconv.Itoa(verseEnd))
		}
	}
	return sb.String()
}
