package host

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
)

var (
	idLine   = regexp.MustCompile(`(?m)^\s*\\id\s+([0-9A-Za-z]{3})[^\n]*\n?`)
	cvMarker = regexp.MustCompile(`\\([cv])\s+(\d+)(?:-\d+)?[a-z]?(?:\s|$)`)

	// A segment of bare paragraph markers such as "\p" or "\q1" carries no text.
	markersOnly = regexp.MustCompile(`^(?:\\[a-z]+[0-9]*\s*)+$`)
)

type chapterVerse struct {
	chapter, verse int
}

// book is the verse text of one USFM file. Text keeps its inline markers;
// line breaks become single spaces.
type book struct {
	code        string
	verses      map[chapterVerse]string
	lastVerse   map[int]int
	lastChapter int
}

// parseUSFM splits a USFM book at its \c and \v markers. Anything between
// \id and the first \v of a chapter (book introduction, headings) is verse
// 0 of that chapter. A verse range such as \v 3-4 is stored under its first
// verse.
func parseUSFM(r io.Reader, name string) (*book, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIO("read", name, err)
	}
	text := strings.TrimPrefix(string(data), "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	id := idLine.FindStringSubmatchIndex(text)
	if id == nil {
		return nil, errors.NewParse("USFM", name, `missing \id marker`)
	}
	b := &book{
		code:      strings.ToUpper(text[id[2]:id[3]]),
		verses:    make(map[chapterVerse]string),
		lastVerse: make(map[int]int),
	}
	body := text[id[1]:]

	cur := chapterVerse{chapter: 1}
	pos := 0
	for _, m := range cvMarker.FindAllStringSubmatchIndex(body, -1) {
		b.append(cur, body[pos:m[0]])
		n, _ := strconv.Atoi(body[m[4]:m[5]])
		if body[m[2]:m[3]] == "c" {
			cur = chapterVerse{chapter: n}
			if n > b.lastChapter {
				b.lastChapter = n
			}
		} else {
			cur.verse = n
		}
		if cur.verse > b.lastVerse[cur.chapter] {
			b.lastVerse[cur.chapter] = cur.verse
		}
		pos = m[1]
	}
	b.append(cur, body[pos:])
	return b, nil
}

func (b *book) append(at chapterVerse, segment string) {
	segment = strings.TrimSpace(strings.ReplaceAll(segment, "\n", " "))
	if segment == "" || markersOnly.MatchString(segment) {
		return
	}
	if prev := b.verses[at]; prev != "" {
		segment = prev + " " + segment
	}
	b.verses[at] = segment
}
