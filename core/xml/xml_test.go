package xml

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const bookNamesXML = `<?xml version="1.0" encoding="utf-8"?>
<BookNames>
  <book code="GEN" abbr="Gen" short="Genesis" long="The Book of Genesis" />
  <book code="MAT" abbr="Mat" short="Matthew" long="The Gospel of Matthew" />
</BookNames>`

func TestParseInvalidXML(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"unclosed tag", "<root><element></root>"},
		{"mismatched tags", "<root></other>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.xml)); err == nil {
				t.Error("Parse should fail for invalid XML")
			}
		})
	}
}

func TestSelect(t *testing.T) {
	doc, err := Read(strings.NewReader(bookNamesXML))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	elems, err := doc.Select("//book")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(elems) != 2 {
		t.Fatalf("Select returned %d elements, want 2", len(elems))
	}
	if elems[1].Name() != "book" || elems[1].Attr("abbr") != "Mat" {
		t.Errorf("second element = %s abbr=%q", elems[1].Name(), elems[1].Attr("abbr"))
	}
	if got := elems[0].Attr("missing"); got != "" {
		t.Errorf("Attr(missing) = %q, want empty", got)
	}

	matthew, _ := doc.Select("//book[@code='MAT']")
	if len(matthew) != 1 || matthew[0].Attr("short") != "Matthew" {
		t.Errorf("Select by attribute = %v", matthew)
	}
	if none, err := doc.Select("//chapter"); err != nil || len(none) != 0 {
		t.Errorf("Select(//chapter) = %v, %v; want nothing", none, err)
	}
	if _, err := doc.Select("//book["); err == nil {
		t.Error("Select should reject an invalid expression")
	}
}

func TestRecords(t *testing.T) {
	doc, err := Parse([]byte(bookNamesXML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	got, err := doc.Records("//book", "code", "abbr", "extra")
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	want := []map[string]string{
		{"code": "GEN", "abbr": "Gen", "extra": ""},
		{"code": "MAT", "abbr": "Mat", "extra": ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Records mismatch (-want +got):\n%s", diff)
	}
}

func TestChildValues(t *testing.T) {
	doc, err := Parse([]byte(`<ScriptureText>
  <Name>TST</Name>
  <ChapterVerseSeparator> : </ChapterVerseSeparator>
  <BooksPresent>101</BooksPresent>
  <Name>Later</Name>
</ScriptureText>`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := map[string]string{
		"Name":                  "Later",
		"ChapterVerseSeparator": ":",
		"BooksPresent":          "101",
	}
	if diff := cmp.Diff(want, doc.ChildValues()); diff != "" {
		t.Errorf("ChildValues mismatch (-want +got):\n%s", diff)
	}
}
