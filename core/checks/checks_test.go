package checks

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
)

func fullItem() Item {
	return Item{
		ID:                 uuid.MustParse("6f1c2b0e-8d4a-4f7e-9a51-3c2d1e0f9b87"),
		Name:               "Doubled punctuation",
		Version:            "1.2",
		Description:        "Deux signes de ponctuation",
		DefaultDescription: "Two punctuation marks in a row",
		Scope:              ScopeChapter,
		Languages:          []string{"fr", "en"},
		Tags:               []string{"punctuation", "common"},
		CheckRegex:         `([,;:])\s*([,;:])`,
		FixRegex:           `$1`,
		FixScript:          "#!builtin dedupe\n<keep & trim>",
	}
}

func TestXMLRoundTrip(t *testing.T) {
	want := fullItem()
	data, err := MarshalXML(want)
	if err != nil {
		t.Fatalf("MarshalXML failed: %v", err)
	}
	if !strings.Contains(string(data), "<CheckAndFixItem>") || !strings.Contains(string(data), "<Language>fr</Language>") {
		t.Errorf("unexpected document:\n%s", data)
	}

	got, err := UnmarshalXML(data)
	if err != nil {
		t.Fatalf("UnmarshalXML failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalXMLErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not xml", "CheckAndFixItem"},
		{"unclosed", "<CheckAndFixItem><Name>x</Name>"},
		{"bad id", "<CheckAndFixItem><Id>not-a-uuid</Id></CheckAndFixItem>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalXML([]byte(tt.data))
			var perr *errors.ParseError
			if !errors.As(err, &perr) {
				t.Errorf("error = %v, want *ParseError", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Item)
		field  string
	}{
		{"valid", func(*Item) {}, ""},
		{"script only", func(it *Item) { it.CheckRegex, it.FixRegex = "", "" }, ""},
		{"no id", func(it *Item) { it.ID = uuid.Nil }, "id"},
		{"blank name", func(it *Item) { it.Name = "  " }, "name"},
		{"no version", func(it *Item) { it.Version = "" }, "version"},
		{"bad version", func(it *Item) { it.Version = "one" }, "version"},
		{"no default description", func(it *Item) { it.DefaultDescription = "" }, "defaultDescription"},
		{"bad scope", func(it *Item) { it.Scope = "Paragraph" }, "scope"},
		{"no rules", func(it *Item) { it.CheckRegex, it.FixRegex, it.FixScript = "", "", "" }, "checkRegex"},
		{"fix without check", func(it *Item) { it.CheckRegex = "" }, "fixRegex"},
		{"bad regex", func(it *Item) { it.CheckRegex = "([" }, "checkRegex"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := fullItem()
			tt.mutate(&it)
			err := it.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			var verr *errors.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q (%v)", verr.Field, tt.field, err)
			}
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Error("validation error should match ErrInvalidInput")
			}
		})
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.2", "1.10", -1},
		{"2", "1.9.9", 1},
		{"1.2", "1.2.0", 0},
		{"v1.3", "1.2", 1},
	}
	for _, tt := range tests {
		if got := CompareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPipelineFindAndFix(t *testing.T) {
	it := NewItem("teh", "1")
	it.DefaultDescription = "Misspelling of the"
	it.CheckRegex = `\bteh\b`
	it.FixRegex = "the"

	p, err := it.Pipeline()
	if err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}
	if len(p.Phases) != 2 || p.Phases[0].Kind != PhaseFind || p.Phases[1].Kind != PhaseFix {
		t.Fatalf("phases = %+v", p.Phases)
	}

	verse := VerseData{Location: VerseLocation{Book: 1, Chapter: 1, Verse: 1}, Text: "teh cat"}
	got := p.Find(verse)
	want := []Finding{{
		Location:    verse.Location,
		CheckID:     it.ID.String(),
		CheckName:   "teh",
		MatchedText: "teh",
		Description: "Misspelling of the",
		Status:      StatusNew,
		Start:       0,
		End:         3,
		Fix:         &Fix{Text: "the cat"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Find mismatch (-want +got):\n%s", diff)
	}
	if verse.Text != "teh cat" {
		t.Error("source text was modified")
	}
}

func TestPipelineFixTemplateBackReferences(t *testing.T) {
	it := NewItem("doubled", "1")
	it.DefaultDescription = "Doubled word"
	it.CheckRegex = `\b(?P<word>\w+) (\w+)\b`
	it.FixRegex = "${word}"

	p, err := it.Pipeline()
	if err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}
	got := p.Find(VerseData{Text: "go go now now"})
	if len(got) != 2 {
		t.Fatalf("got %d findings, want 2", len(got))
	}
	if got[0].Fix.Text != "go now now" || got[1].Fix.Text != "go go now" {
		t.Errorf("fixes = %q, %q", got[0].Fix.Text, got[1].Fix.Text)
	}
}

func TestPipelineScriptOnly(t *testing.T) {
	it := NewItem("script", "1")
	it.FixScript = "#!builtin repeated-word"
	p, err := it.Pipeline()
	if err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}
	if p.Has(PhaseFind) || !p.Has(PhaseScript) {
		t.Errorf("phases = %+v", p.Phases)
	}
	if got := p.Find(VerseData{Text: "anything"}); got != nil {
		t.Errorf("Find without a find phase = %+v", got)
	}

	if _, err := (Item{}).Pipeline(); err == nil {
		t.Error("empty item should not compile")
	}
}

func TestIgnoreKey(t *testing.T) {
	f := Finding{Location: VerseLocation{Book: 40, Chapter: 3, Verse: 16}, CheckID: "c1", MatchedText: "teh"}
	key := f.IgnoreKey()
	if len(key) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(key))
	}

	moved := f
	moved.Start, moved.End, moved.Description = 10, 13, "changed"
	if moved.IgnoreKey() != key {
		t.Error("key should not depend on offsets or description")
	}

	for _, other := range []Finding{
		{Location: VerseLocation{Book: 40, Chapter: 3, Verse: 17}, CheckID: "c1", MatchedText: "teh"},
		{Location: f.Location, CheckID: "c2", MatchedText: "teh"},
		{Location: f.Location, CheckID: "c1", MatchedText: "teh "},
	} {
		if other.IgnoreKey() == key {
			t.Errorf("%+v collides with %+v", other, f)
		}
	}

	item := NewIgnoreItem(f, "proper noun", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if item.Key != key || item.Reason != "proper noun" {
		t.Errorf("ignore item = %+v", item)
	}
}

func TestScopeAndLocation(t *testing.T) {
	if s, ok := ParseScope(" chapter "); !ok || s != ScopeChapter {
		t.Errorf("ParseScope = %v, %v", s, ok)
	}
	if _, ok := ParseScope("Paragraph"); ok {
		t.Error("ParseScope accepted an unknown scope")
	}
	loc := VerseLocation{Book: 40, Chapter: 3, Verse: 16}
	if loc.String() != "MAT 3:16" {
		t.Errorf("String() = %q", loc.String())
	}
	if !loc.Less(VerseLocation{Book: 40, Chapter: 4, Verse: 1}) || loc.Less(loc) {
		t.Error("Less ordering wrong")
	}
}
