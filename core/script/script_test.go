package script

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/project"
)

type settings map[string]string

func (s settings) Setting(_, key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

func testProject(t *testing.T) *project.Context {
	t.Helper()
	// Genesis and Matthew only.
	present := strings.Repeat("0", 39) + "1"
	present = "1" + present[1:]
	ctx, err := project.Build("TST", settings{
		"ChapterVerseSeparator": ":",
		"RangeIndicator":        "-",
		"SequenceIndicator":     ",",
		"BooksPresent":          present,
	}, nil, nil)
	if err != nil {
		t.Fatalf("project.Build failed: %v", err)
	}
	return ctx
}

func unit(t *testing.T, texts ...string) Unit {
	it := checks.NewItem("refs", "1")
	it.DefaultDescription = "Reference problem"
	u := Unit{Scope: checks.ScopeChapter, Check: it, Project: testProject(t)}
	for i, text := range texts {
		u.Verses = append(u.Verses, checks.VerseData{
			Location: checks.VerseLocation{Book: 40, Chapter: 1, Verse: i + 1},
			Text:     text,
		})
	}
	return u
}

func compile(t *testing.T, r *Registry, source string) Script {
	t.Helper()
	s, err := r.Compile(source)
	if err != nil {
		t.Fatalf("Compile(%q) failed: %v", source, err)
	}
	return s
}

func TestRegistryCompile(t *testing.T) {
	r := Default()
	if diff := cmp.Diff([]string{Dedupe, RepeatedWord, XrefFormat, XrefMissingBook, XrefUnknownBook}, r.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		source string
		ok     bool
	}{
		{"#!builtin dedupe", true},
		{"\n  #!builtin xref-unknown-book all\nignored body", true},
		{"#!builtin xref-format nearest", false},
		{"#!builtin dedupe extra", false},
		{"#!builtin", false},
		{"#!builtin nope", false},
		{"return findings", false},
	}
	for _, tt := range tests {
		_, err := r.Compile(tt.source)
		if (err == nil) != tt.ok {
			t.Errorf("Compile(%q) error = %v, want ok=%v", tt.source, err, tt.ok)
		}
		if err != nil && !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Compile(%q) error should be a validation error: %v", tt.source, err)
		}
	}

	if err := r.Register(Dedupe, noArgs(Func(dedupe))); !errors.Is(err, errors.ErrAlreadyExists) {
		t.Errorf("duplicate Register error = %v", err)
	}
}

type upperEngine struct{}

func (upperEngine) Compile(source string) (Script, error) {
	if source == "" {
		return nil, fmt.Errorf("empty")
	}
	return Func(func(_ context.Context, _ Unit, fs []checks.Finding) ([]checks.Finding, error) {
		out := append([]checks.Finding(nil), fs...)
		for i := range out {
			out[i].Description = strings.ToUpper(out[i].Description)
		}
		return out, nil
	}), nil
}

func TestRegistryFallback(t *testing.T) {
	r := NewRegistry()
	r.SetFallback(upperEngine{})
	s := compile(t, r, "upper()")
	got, err := s.Transform(context.Background(), Unit{}, []checks.Finding{{Description: "x"}})
	if err != nil || len(got) != 1 || got[0].Description != "X" {
		t.Errorf("Transform = %+v, %v", got, err)
	}
	if _, err := r.Compile("#!builtin dedupe"); err == nil {
		t.Error("empty registry should not know dedupe")
	}
}

func TestXrefUnknownBook(t *testing.T) {
	u := unit(t, `see \xt Mat 1:1\xt* and \xt Foo 2:3\xt*`)
	s := compile(t, Default(), "#!builtin xref-unknown-book")
	got, err := s.Transform(context.Background(), u, nil)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if len(got) != 1 || got[0].MatchedText != "Foo 2:3" {
		t.Fatalf("findings = %+v", got)
	}
	if got[0].CheckID != u.Check.ID.String() || got[0].Status != checks.StatusNew {
		t.Errorf("finding = %+v", got[0])
	}
}

func TestXrefMissingBook(t *testing.T) {
	u := unit(t, "as in Gen 1:1, Mat 2:3 and Rom 8:28")
	s := compile(t, Default(), "#!builtin xref-missing-book")
	got, err := s.Transform(context.Background(), u, nil)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if len(got) != 1 || got[0].MatchedText != "Rom 8:28" {
		t.Errorf("findings = %+v", got)
	}
}

func TestXrefFormat(t *testing.T) {
	u := unit(t, `\xt Mat 3:17-16\xt*`, `\xt Mat 3:16-17\xt*`)
	s := compile(t, Default(), "#!builtin xref-format")
	got, err := s.Transform(context.Background(), u, nil)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if len(got) != 1 || got[0].Location.Verse != 1 || !strings.Contains(got[0].Description, "runs backwards") {
		t.Errorf("findings = %+v", got)
	}
}

func TestXrefNeedsProject(t *testing.T) {
	s := compile(t, Default(), "#!builtin xref-unknown-book")
	if _, err := s.Transform(context.Background(), Unit{}, nil); err == nil {
		t.Error("expected an error without a project context")
	}
}

func TestDedupe(t *testing.T) {
	loc := checks.VerseLocation{Book: 1, Chapter: 1, Verse: 1}
	in := []checks.Finding{
		{Location: loc, CheckID: "c", MatchedText: "a", Start: 0},
		{Location: loc, CheckID: "c", MatchedText: "a", Start: 5},
		{Location: loc, CheckID: "c", MatchedText: "b", Start: 7},
	}
	got, err := compile(t, Default(), "#!builtin dedupe").Transform(context.Background(), Unit{}, in)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if diff := cmp.Diff([]checks.Finding{in[0], in[2]}, got); diff != "" {
		t.Errorf("dedupe mismatch (-want +got):\n%s", diff)
	}
}

func TestRepeatedWord(t *testing.T) {
	u := unit(t, "In the the beginning", "God  God, said said")
	got, err := compile(t, Default(), "#!builtin repeated-word").Transform(context.Background(), u, nil)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d findings, want 3: %+v", len(got), got)
	}
	if got[0].MatchedText != "the the" || got[0].Fix.Text != "In the beginning" {
		t.Errorf("first finding = %+v fix %q", got[0], got[0].Fix.Text)
	}
	if got[1].MatchedText != "God  God" || got[2].MatchedText != "said said" {
		t.Errorf("findings = %q, %q", got[1].MatchedText, got[2].MatchedText)
	}

	again, _ := compile(t, Default(), "#!builtin repeated-word").Transform(context.Background(), u, nil)
	if diff := cmp.Diff(got, again); diff != "" {
		t.Errorf("repeated-word is not deterministic (-first +second):\n%s", diff)
	}
}
