package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/canon"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
)

// IgnoreGroup contains ignore list operations.
type IgnoreGroup struct {
	Add    IgnoreAddCmd    `cmd:"" help:"Dismiss a finding"`
	Remove IgnoreRemoveCmd `cmd:"" help:"Restore dismissed findings by key"`
	List   IgnoreListCmd   `cmd:"" help:"List dismissed findings"`
}

// parseLocation reads "MAT 1:2", "MAT 1" (verse 0) or "MAT 1.2".
func parseLocation(s string) (checks.VerseLocation, error) {
	code, rest, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok {
		return checks.VerseLocation{}, fmt.Errorf("%q is not a reference like MAT 1:2", s)
	}
	book := canon.NumFromCode(code)
	if book == 0 {
		return checks.VerseLocation{}, fmt.Errorf("%q is not a book code", code)
	}
	ch, v, hasVerse := strings.Cut(strings.TrimSpace(rest), ":")
	if !hasVerse {
		ch, v, hasVerse = strings.Cut(ch, ".")
	}
	loc := checks.VerseLocation{Book: book}
	var err error
	if loc.Chapter, err = strconv.Atoi(ch); err != nil || loc.Chapter < 1 {
		return checks.VerseLocation{}, fmt.Errorf("%q has no valid chapter", s)
	}
	if hasVerse {
		if loc.Verse, err = strconv.Atoi(v); err != nil || loc.Verse < 0 {
			return checks.VerseLocation{}, fmt.Errorf("%q has no valid verse", s)
		}
	}
	return loc, nil
}

// IgnoreAddCmd dismisses one finding, identified by where it is, which
// check raised it and the text it matched.
type IgnoreAddCmd struct {
	Project string `arg:"" help:"Project name"`
	Ref     string `arg:"" help:"Verse, e.g. \"MAT 1:2\""`
	Text    string `arg:"" help:"Matched text"`
	Check   string `short:"k" required:"" help:"Check name or ID"`
	Reason  string `short:"r" help:"Why the finding is dismissed"`
}

func (c *IgnoreAddCmd) Run(ctx context.Context, g *Globals) error {
	loc, err := parseLocation(c.Ref)
	if err != nil {
		return err
	}
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.Catalog.Select(ctx, c.Check)
	if err != nil {
		return err
	}
	f := checks.Finding{Location: loc, CheckID: items[0].ID.String(), CheckName: items[0].Name, MatchedText: c.Text}
	added, err := a.Dismiss(ctx, c.Project, c.Reason, f)
	if err != nil {
		return err
	}
	g.printf("ignored\t%s\n", added[0].Key)
	return nil
}

// IgnoreRemoveCmd restores findings.
type IgnoreRemoveCmd struct {
	Project string   `arg:"" help:"Project name"`
	Keys    []string `arg:"" help:"Ignore keys"`
}

func (c *IgnoreRemoveCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Ignore.Remove(ctx, c.Project, c.Keys...)
	if err != nil {
		return err
	}
	g.printf("removed %d of %d\n", n, len(c.Keys))
	return nil
}

// IgnoreListCmd prints a project's ignore list.
type IgnoreListCmd struct {
	Project string `arg:"" help:"Project name"`
	JSON    bool   `help:"Print items as JSON"`
}

func (c *IgnoreListCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.Ignore.Get(ctx, c.Project)
	if err != nil {
		return err
	}
	if c.JSON {
		if items == nil {
			items = []checks.IgnoreItem{}
		}
		return writeJSON(g.stdout, items)
	}
	for _, it := range items {
		g.printf("%s\t%s\t%q\t%s\n", it.Key, it.Location, it.MatchedText, it.Reason)
	}
	g.printf("%d ignored\n", len(items))
	return nil
}
