// Package script implements the script phase of a check: a pure
// transformation from one unit's candidate findings to its final findings.
package script

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/project"
)

// Unit is the text a script sees in one call: a single verse for verse
// scope, otherwise every verse of the chapter, book or project.
type Unit struct {
	Scope   checks.Scope
	Verses  []checks.VerseData
	Check   checks.Item
	Project *project.Context
}

// NewFinding builds a finding attributed to the unit's check.
func (u Unit) NewFinding(v checks.VerseData, start, end int, description string) checks.Finding {
	if description == "" {
		description = u.Check.DisplayDescription()
	}
	return checks.Finding{
		Location:    v.Location,
		CheckID:     u.Check.ID.String(),
		CheckName:   u.Check.Name,
		MatchedText: v.Text[start:end],
		Description: description,
		Status:      checks.StatusNew,
		Start:       start,
		End:         end,
	}
}

// Script transforms the candidate findings of one unit. Given the same unit
// and findings it must return the same result. It is the only phase that
// may drop, merge or create findings.
type Script interface {
	Transform(ctx context.Context, unit Unit, findings []checks.Finding) ([]checks.Finding, error)
}

// Func adapts a function to Script.
type Func func(ctx context.Context, unit Unit, findings []checks.Finding) ([]checks.Finding, error)

// Transform calls f.
func (f Func) Transform(ctx context.Context, unit Unit, findings []checks.Finding) ([]checks.Finding, error) {
	return f(ctx, unit, findings)
}

// Factory builds a script from the arguments on its #!builtin line.
type Factory func(args []string) (Script, error)

// Engine compiles script sources that do not name a builtin.
type Engine interface {
	Compile(source string) (Script, error)
}

// BuiltinPrefix starts the first line of a source that selects a
// registered implementation, e.g. "#!builtin xref-unknown-book".
const BuiltinPrefix = "#!builtin"

// Registry resolves fixScript bodies to Script implementations.
type Registry struct {
	mu       sync.RWMutex
	builtins map[string]Factory
	fallback Engine
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{builtins: make(map[string]Factory)}
}

// Default returns a registry holding every builtin script of this package.
func Default() *Registry {
	r := NewRegistry()
	for name, f := range builtinFactories() {
		_ = r.Register(name, f)
	}
	return r
}

// Register adds a builtin under name.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builtins[name]; ok {
		return errors.NewAlreadyExists("builtin script", name)
	}
	r.builtins[name] = f
	return nil
}

// SetFallback installs the engine used for sources without a #!builtin line.
func (r *Registry) SetFallback(e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = e
}

// Names lists the registered builtins in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builtins))
	for name := range r.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compile resolves a script source. Failures are definition errors.
func (r *Registry) Compile(source string) (Script, error) {
	first, _, _ := strings.Cut(strings.TrimLeft(source, " \t\r\n"), "\n")
	first = strings.TrimSpace(first)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if rest, ok := strings.CutPrefix(first, BuiltinPrefix); ok {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return nil, errors.NewValidation("fixScript", "#!builtin line names no script")
		}
		f, ok := r.builtins[fields[0]]
		if !ok {
			return nil, errors.NewValidation("fixScript", "unknown builtin script "+fields[0])
		}
		s, err := f(fields[1:])
		if err != nil {
			return nil, errors.NewValidation("fixScript", err.Error())
		}
		return s, nil
	}

	if r.fallback == nil {
		return nil, errors.NewValidation("fixScript", "no script engine is configured for non-builtin scripts")
	}
	s, err := r.fallback.Compile(source)
	if err != nil {
		return nil, errors.NewValidation("fixScript", err.Error())
	}
	return s, nil
}
