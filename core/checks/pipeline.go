package checks

import (
	"regexp"
	"strings"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
)

// PhaseKind tags the variant held by a Phase.
type PhaseKind int

// Phases always run in this order.
const (
	PhaseFind PhaseKind = iota + 1
	PhaseFix
	PhaseScript
)

func (k PhaseKind) String() string {
	switch k {
	case PhaseFind:
		return "find"
	case PhaseFix:
		return "fix"
	case PhaseScript:
		return "script"
	default:
		return "unknown"
	}
}

// Phase is one step of a compiled item. Exactly one of the payload fields
// is meaningful, selected by Kind: Pattern for find, Template for fix and
// Source for script.
type Phase struct {
	Kind     PhaseKind
	Pattern  *regexp.Regexp
	Template string
	Source   string
}

// Pipeline is a compiled item. The script phase is left as source for the
// caller to compile, since scripts live outside this package.
type Pipeline struct {
	Item   Item
	Phases []Phase
}

// Pipeline compiles the item's rule bodies into ordered phases.
func (it Item) Pipeline() (*Pipeline, error) {
	p := &Pipeline{Item: it}
	if it.CheckRegex != "" {
		re, err := regexp.Compile(it.CheckRegex)
		if err != nil {
			return nil, errors.NewValidation("checkRegex", "pattern does not compile: "+err.Error())
		}
		p.Phases = append(p.Phases, Phase{Kind: PhaseFind, Pattern: re})
		if it.FixRegex != "" {
			p.Phases = append(p.Phases, Phase{Kind: PhaseFix, Template: it.FixRegex})
		}
	}
	if strings.TrimSpace(it.FixScript) != "" {
		p.Phases = append(p.Phases, Phase{Kind: PhaseScript, Source: it.FixScript})
	}
	if len(p.Phases) == 0 {
		return nil, errors.NewValidation("checkRegex", "an item needs a check regex or a fix script")
	}
	return p, nil
}

// Phase returns the phase of the given kind, if present.
func (p *Pipeline) Phase(kind PhaseKind) (Phase, bool) {
	for _, ph := range p.Phases {
		if ph.Kind == kind {
			return ph, true
		}
	}
	return Phase{}, false
}

// Has reports whether the pipeline contains a phase of the given kind.
func (p *Pipeline) Has(kind PhaseKind) bool {
	_, ok := p.Phase(kind)
	return ok
}

// Find runs the find and fix phases over one verse. Each non-overlapping
// match becomes a new finding; when a fix template is present the finding
// carries the verse text with that one occurrence replaced. The verse is
// not modified.
func (p *Pipeline) Find(v VerseData) []Finding {
	find, ok := p.Phase(PhaseFind)
	if !ok {
		return nil
	}
	fix, hasFix := p.Phase(PhaseFix)

	var out []Finding
	for _, loc := range find.Pattern.FindAllStringSubmatchIndex(v.Text, -1) {
		start, end := loc[0], loc[1]
		f := Finding{
			Location:    v.Location,
			CheckID:     p.Item.ID.String(),
			CheckName:   p.Item.Name,
			MatchedText: v.Text[start:end],
			Description: p.Item.DisplayDescription(),
			Status:      StatusNew,
			Start:       start,
			End:         end,
		}
		if hasFix {
			replacement := find.Pattern.ExpandString(nil, fix.Template, v.Text, loc)
			f.Fix = &Fix{Text: v.Text[:start] + string(replacement) + v.Text[end:]}
		}
		out = append(out, f)
	}
	return out
}

// FindAll runs Find over every verse of a unit, in order.
func (p *Pipeline) FindAll(verses []VerseData) []Finding {
	var out []Finding
	for _, v := range verses {
		out = append(out, p.Find(v)...)
	}
	return out
}
