package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/books"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/canon"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/project"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/refs"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/runner"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/api"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/app"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/host"
)

// RunCmd runs catalog checks over a project directory and stores the
// findings.
type RunCmd struct {
	Project    string   `arg:"" optional:"" help:"Project directory (default: project_dir from config)" type:"path"`
	Scope      string   `help:"Selection scope" enum:"project,book,chapter,verse" default:"project"`
	Book       string   `short:"b" help:"Book code for book, chapter and verse scopes"`
	Chapter    int      `help:"Chapter for chapter and verse scopes"`
	Verse      int      `help:"Verse for the verse scope"`
	Check      []string `short:"k" help:"Check name or ID to run (repeatable, default all)"`
	Transcript string   `help:"Write a JSON lines run transcript" type:"path"`
	JSON       bool     `help:"Print the result as JSON"`
}

func (c *RunCmd) Run(ctx context.Context, g *Globals) error {
	sel, err := api.RunRequest{Scope: c.Scope, Book: c.Book, Chapter: c.Chapter, Verse: c.Verse}.Selector()
	if err != nil {
		return err
	}
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	path := c.Project
	if path == "" {
		path = a.Config.ProjectDir
	}
	dir, err := host.Open(path, a.Log)
	if err != nil {
		return err
	}

	var rec *runner.Recorder
	if c.Transcript != "" {
		rec = runner.NewRecorder()
	}
	res, err := a.Run(ctx, app.RunRequest{Dir: dir, Selector: sel, Checks: c.Check, Transcript: rec})
	if err != nil {
		return err
	}
	if rec != nil {
		if err := runner.WriteTranscript(c.Transcript, rec.Transcript().Events); err != nil {
			return err
		}
	}

	if c.JSON {
		return writeJSON(g.stdout, res)
	}
	printFindings(g.stdout, res.Findings)
	for _, e := range res.Errors {
		g.printf("error: %v\n", e)
	}
	g.printf("%d findings, %d errors, %d suppressed (%d verses, %d pairs)\n",
		len(res.Findings), len(res.Errors), res.Suppressed, res.Verses, res.Pairs)
	if res.Cancelled {
		g.printf("run cancelled after %d of %d pairs; results were not stored\n", res.Completed, res.Pairs)
	}
	return nil
}

func printFindings(w io.Writer, findings []checks.Finding) {
	for _, f := range findings {
		fmt.Fprintf(w, "%s\t%s\t%q\t%s", f.Location, f.CheckName, f.MatchedText, f.Description)
		if f.Fix != nil {
			fmt.Fprintf(w, "\tfix: %s", f.Fix.Text)
		}
		fmt.Fprintln(w)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RefsCmd lists the references in text.
type RefsCmd struct {
	Text    []string `arg:"" optional:"" help:"Text to scan (default: --file or standard input)"`
	File    string   `short:"f" help:"Read text from a file" type:"existingfile"`
	Project string   `short:"p" help:"Use a project's separators and book names" type:"existingdir"`
	Policy  string   `help:"Overlap policy" enum:"longest,first-pattern,all" default:"longest"`
	JSON    bool     `help:"Print references as JSON"`

	stdin io.Reader `kong:"-"`
}

func (c *RefsCmd) Run(g *Globals) error {
	text, err := c.input()
	if err != nil {
		return err
	}
	m, err := c.matcher(g)
	if err != nil {
		return err
	}

	found := m.References(text, refs.ParsePolicy(c.Policy))
	if c.JSON {
		return writeJSON(g.stdout, found)
	}
	for _, r := range found {
		code := "?"
		if r.Book != nil {
			code = r.Book.Code
		}
		g.printf("%d-%d\t%s\t%s", r.Start, r.End, code, r.Text)
		switch {
		case r.Err != "":
			g.printf("\terror: %s", r.Err)
		case r.Citation != nil:
			if problems := r.Citation.Problems(); len(problems) > 0 {
				g.printf("\t%s", strings.Join(problems, "; "))
			}
		}
		g.printf("\n")
	}
	return nil
}

func (c *RefsCmd) input() (string, error) {
	switch {
	case len(c.Text) > 0:
		return strings.Join(c.Text, " "), nil
	case c.File != "":
		data, err := os.ReadFile(c.File)
		return string(data), err
	default:
		in := c.stdin
		if in == nil {
			in = os.Stdin
		}
		data, err := io.ReadAll(in)
		return string(data), err
	}
}

func (c *RefsCmd) matcher(g *Globals) (*refs.Matcher, error) {
	if c.Project == "" {
		return refs.Compile(books.DefaultEnglish(), refs.English())
	}
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	log := g.logger(cfg)
	dir, err := host.Open(c.Project, log)
	if err != nil {
		return nil, err
	}
	pctx, err := project.Build(dir.Name(), dir, dir, log)
	if err != nil {
		return nil, err
	}
	return pctx.Matcher, nil
}

// ResultsGroup contains stored result operations.
type ResultsGroup struct {
	Show ResultsShowCmd `cmd:"" help:"Show stored findings for a book"`
}

// ResultsShowCmd prints a book's stored findings.
type ResultsShowCmd struct {
	Project string `arg:"" help:"Project name"`
	Book    string `arg:"" help:"Book code"`
	JSON    bool   `help:"Print findings as JSON"`
}

func (c *ResultsShowCmd) Run(ctx context.Context, g *Globals) error {
	num := canon.NumFromCode(c.Book)
	if num == 0 {
		return fmt.Errorf("%q is not a book code", c.Book)
	}
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	findings, err := a.Results.Get(ctx, c.Project, num)
	if err != nil {
		return err
	}
	if c.JSON {
		if findings == nil {
			findings = []checks.Finding{}
		}
		return writeJSON(g.stdout, findings)
	}
	printFindings(g.stdout, findings)
	g.printf("%d findings\n", len(findings))
	return nil
}
