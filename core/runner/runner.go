// Package runner executes check-and-fix items over verse text supplied by a
// host, scheduling (item × unit) pairs on a bounded worker pool.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/project"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/script"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/logging"
)

// DefaultWorkers is the pool size used when Options.Workers is not set.
const DefaultWorkers = 4

// TextSource supplies verse text and versification bounds. It is read in
// full before any check runs.
type TextSource interface {
	LastChapter(book int) int
	LastVerse(book, chapter int) int
	VerseText(loc checks.VerseLocation) (string, error)
}

// IgnoreSource supplies the keys of dismissed findings for a project.
type IgnoreSource interface {
	Keys(ctx context.Context, project string) (map[string]struct{}, error)
}

// ResultSink persists one book's findings, replacing what was there.
type ResultSink interface {
	Put(ctx context.Context, project string, book int, findings []checks.Finding) error
}

// Progress reports a finished pair.
type Progress struct {
	Done      int    `json:"done"`
	Total     int    `json:"total"`
	CheckName string `json:"check_name"`
	Unit      string `json:"unit"`
	Findings  int    `json:"findings"`
	Failed    bool   `json:"failed,omitempty"`
}

// Options configure a Runner.
type Options struct {
	Workers int
	Scripts *script.Registry
	Ignore  IgnoreSource
	// Project is required for project selections and reference checks.
	Project *project.Context
	// ProjectName keys the ignore list and stored results; it defaults to
	// Project.Name.
	ProjectName string
	Logger      *slog.Logger
	Progress    func(Progress)
	Transcript  *Recorder
}

// Selector picks the text a run covers.
type Selector struct {
	Scope   checks.Scope `json:"scope"`
	Book    int          `json:"book,omitempty"`
	Chapter int          `json:"chapter,omitempty"`
	Verse   int          `json:"verse,omitempty"`
}

// PairError is the failure of one item on one unit, or of an item that
// could not be compiled (Unit is empty).
type PairError struct {
	CheckID   string
	CheckName string
	Unit      string
	Err       error
}

func (e PairError) Error() string {
	if e.Unit == "" {
		return fmt.Sprintf("check %q: %v", e.CheckName, e.Err)
	}
	return fmt.Sprintf("check %q on %s: %v", e.CheckName, e.Unit, e.Err)
}

func (e PairError) Unwrap() error { return e.Err }

// MarshalJSON renders the error message as a string.
func (e PairError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		CheckID   string `json:"check_id"`
		CheckName string `json:"check_name"`
		Unit      string `json:"unit,omitempty"`
		Error     string `json:"error"`
	}{e.CheckID, e.CheckName, e.Unit, e.Err.Error()})
}

// Result is the outcome of one run.
type Result struct {
	Findings   []checks.Finding `json:"findings"`
	Errors     []PairError      `json:"errors,omitempty"`
	Suppressed int              `json:"suppressed"`
	Pairs      int              `json:"pairs"`
	Completed  int              `json:"completed"`
	Cancelled  bool             `json:"cancelled"`
	Books      []int            `json:"books"`
	Verses     int              `json:"verses"`
	Duration   time.Duration    `json:"duration"`
}

// Runner executes checks. It holds no per-run state and may be reused.
type Runner struct {
	opts Options
	log  *slog.Logger
}

// New returns a Runner.
func New(opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	if opts.Scripts == nil {
		opts.Scripts = script.Default()
	}
	if opts.ProjectName == "" && opts.Project != nil {
		opts.ProjectName = opts.Project.Name
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Runner{opts: opts, log: log}
}

type compiled struct {
	item     checks.Item
	pipeline *checks.Pipeline
	script   script.Script
}

type pair struct {
	check *compiled
	unit  script.Unit
	label string
}

// Run executes defs over the selected text. Item failures are collected in
// Result.Errors; the returned error is reserved for failures of the run
// itself, such as unreadable host text or ignore list.
func (r *Runner) Run(ctx context.Context, defs []checks.Item, sel Selector, src TextSource) (*Result, error) {
	started := time.Now()
	log := logging.FromContext(ctx, r.log).With("project", r.opts.ProjectName, "scope", sel.Scope)

	verses, books, err := r.fetch(ctx, sel, src)
	if err != nil {
		return nil, err
	}
	ignored, err := r.ignoreKeys(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{Books: books, Verses: len(verses)}
	checksToRun := r.compile(defs, res, log)

	var pairs []pair
	for _, c := range checksToRun {
		for _, u := range units(c.item.Scope, verses) {
			u.Check = c.item
			u.Project = r.opts.Project
			pairs = append(pairs, pair{check: c, unit: u, label: unitLabel(u)})
		}
	}
	res.Pairs = len(pairs)
	r.opts.Transcript.Record(Event{Type: EventRunStart, Attributes: map[string]any{
		"checks": len(checksToRun), "pairs": len(pairs), "verses": len(verses),
	}})

	var (
		mu       sync.Mutex
		findings []checks.Finding
		g        errgroup.Group
	)
	g.SetLimit(r.opts.Workers)
	// Pairs that have started run to completion even if ctx is cancelled.
	pairCtx := context.WithoutCancel(ctx)

	for _, p := range pairs {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		g.Go(func() error {
			fs, err := r.runPair(pairCtx, p)

			mu.Lock()
			defer mu.Unlock()
			res.Completed++
			if err != nil {
				res.Errors = append(res.Errors, PairError{
					CheckID: p.check.item.ID.String(), CheckName: p.check.item.Name, Unit: p.label, Err: err,
				})
				logging.CheckFailure(log, p.check.item.Name, p.label, err)
				r.opts.Transcript.Record(Event{Type: EventPairError, CheckID: p.check.item.ID.String(),
					CheckName: p.check.item.Name, Unit: p.label, Message: err.Error()})
			} else {
				findings = append(findings, fs...)
				r.opts.Transcript.Record(Event{Type: EventPairDone, CheckID: p.check.item.ID.String(),
					CheckName: p.check.item.Name, Unit: p.label, Findings: len(fs)})
			}
			if r.opts.Progress != nil {
				r.opts.Progress(Progress{
					Done: res.Completed, Total: res.Pairs, CheckName: p.check.item.Name,
					Unit: p.label, Findings: len(fs), Failed: err != nil,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range findings {
		if _, ok := ignored[f.IgnoreKey()]; ok {
			res.Suppressed++
			continue
		}
		res.Findings = append(res.Findings, f)
	}
	sortFindings(res.Findings)
	sort.SliceStable(res.Errors, func(i, j int) bool {
		if res.Errors[i].CheckName != res.Errors[j].CheckName {
			return res.Errors[i].CheckName < res.Errors[j].CheckName
		}
		return res.Errors[i].Unit < res.Errors[j].Unit
	})
	res.Duration = time.Since(started)

	if res.Cancelled {
		r.opts.Transcript.Record(Event{Type: EventRunCancelled, Message: "scheduling stopped"})
	}
	r.opts.Transcript.Record(Event{Type: EventRunEnd, Findings: len(res.Findings), Attributes: map[string]any{
		"errors": len(res.Errors), "suppressed": res.Suppressed, "completed": res.Completed,
	}})
	logging.RunSummary(logging.FromContext(ctx, r.log), r.opts.ProjectName, len(res.Findings), len(res.Errors), res.Suppressed, res.Cancelled, res.Duration,
		"checks", len(checksToRun),
		"pairs", res.Pairs,
		"completed", res.Completed)
	return res, nil
}

// RunAndStore runs defs and then replaces the stored findings of every
// selected book. A cancelled run is not persisted, since a partial batch
// would overwrite complete results.
func (r *Runner) RunAndStore(ctx context.Context, defs []checks.Item, sel Selector, src TextSource, sink ResultSink) (*Result, error) {
	res, err := r.Run(ctx, defs, sel, src)
	if err != nil {
		return nil, err
	}
	if res.Cancelled {
		r.log.Warn("run cancelled, results not stored", "project", r.opts.ProjectName)
		return res, nil
	}

	byBook := make(map[int][]checks.Finding, len(res.Books))
	for _, f := range res.Findings {
		byBook[f.Location.Book] = append(byBook[f.Location.Book], f)
	}
	for _, book := range res.Books {
		if err := sink.Put(ctx, r.opts.ProjectName, book, byBook[book]); err != nil {
			return res, errors.Wrapf(err, "storing results for book %d", book)
		}
	}
	return res, nil
}

func (r *Runner) compile(defs []checks.Item, res *Result, log *slog.Logger) []*compiled {
	var out []*compiled
	for _, def := range defs {
		if r.opts.Project != nil && !def.AppliesTo(r.opts.Project.Language) {
			log.Debug("check skipped for project language", "check", def.Name, "language", r.opts.Project.Language)
			continue
		}
		c, err := r.compileOne(def)
		if err != nil {
			res.Errors = append(res.Errors, PairError{CheckID: def.ID.String(), CheckName: def.Name, Err: err})
			log.Warn("check definition rejected", "check", def.Name, "error", err)
			continue
		}
		out = append(out, c)
	}
	return out
}

func (r *Runner) compileOne(def checks.Item) (*compiled, error) {
	if !def.Scope.Valid() {
		return nil, errors.NewValidation("scope", fmt.Sprintf("%q is not a scope", def.Scope))
	}
	p, err := def.Pipeline()
	if err != nil {
		return nil, err
	}
	c := &compiled{item: def, pipeline: p}
	if ph, ok := p.Phase(checks.PhaseScript); ok {
		s, err := r.opts.Scripts.Compile(ph.Source)
		if err != nil {
			return nil, err
		}
		c.script = s
	}
	return c, nil
}

func (r *Runner) runPair(ctx context.Context, p pair) (findings []checks.Finding, err error) {
	phase := checks.PhaseFind
	defer func() {
		if rec := recover(); rec != nil {
			findings = nil
			err = fmt.Errorf("panic: %v", rec)
		}
		if err != nil {
			err = &errors.CheckError{
				CheckID: p.check.item.ID.String(),
				Check:   p.check.item.Name,
				Unit:    p.label,
				Phase:   phase.String(),
				Err:     err,
			}
		}
	}()

	findings = p.check.pipeline.FindAll(p.unit.Verses)
	if p.check.script != nil {
		phase = checks.PhaseScript
		findings, err = p.check.script.Transform(ctx, p.unit, findings)
	}
	return findings, err
}

func (r *Runner) ignoreKeys(ctx context.Context) (map[string]struct{}, error) {
	if r.opts.Ignore == nil {
		return nil, nil
	}
	keys, err := r.opts.Ignore.Keys(ctx, r.opts.ProjectName)
	if err != nil {
		return nil, errors.Wrap(err, "reading ignore list")
	}
	return keys, nil
}

func sortFindings(fs []checks.Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Location != b.Location {
			return a.Location.Less(b.Location)
		}
		if a.CheckName != b.CheckName {
			return a.CheckName < b.CheckName
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.CheckID < b.CheckID
	})
}
