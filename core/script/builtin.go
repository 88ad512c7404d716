package script

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/refs"
)

// Builtin script names.
const (
	XrefUnknownBook = "xref-unknown-book"
	XrefMissingBook = "xref-missing-book"
	XrefFormat      = "xref-format"
	Dedupe          = "dedupe"
	RepeatedWord    = "repeated-word"
)

func builtinFactories() map[string]Factory {
	return map[string]Factory{
		XrefUnknownBook: xrefFactory(unknownBook),
		XrefMissingBook: xrefFactory(missingBook),
		XrefFormat:      xrefFactory(badFormat),
		Dedupe:          noArgs(Func(dedupe)),
		RepeatedWord:    noArgs(Func(repeatedWord)),
	}
}

func noArgs(s Script) Factory {
	return func(args []string) (Script, error) {
		if len(args) > 0 {
			return nil, fmt.Errorf("builtin takes no arguments, got %q", strings.Join(args, " "))
		}
		return s, nil
	}
}

// refProblem describes what is wrong with one recognised reference, or
// returns "" if nothing is.
type refProblem func(u Unit, m *refs.Matcher, match refs.Match) string

// xrefFactory builds a reference check. An optional argument names the
// overlap policy ("longest", "first-pattern" or "all").
func xrefFactory(problem refProblem) Factory {
	return func(args []string) (Script, error) {
		policy := refs.LongestWins
		switch len(args) {
		case 0:
		case 1:
			policy = refs.ParsePolicy(args[0])
			if policy.String() != args[0] {
				return nil, fmt.Errorf("unknown overlap policy %q", args[0])
			}
		default:
			return nil, fmt.Errorf("too many arguments: %q", strings.Join(args, " "))
		}
		return Func(func(ctx context.Context, u Unit, findings []checks.Finding) ([]checks.Finding, error) {
			if u.Project == nil || u.Project.Matcher == nil {
				return nil, fmt.Errorf("reference checks need a project context")
			}
			out := append([]checks.Finding(nil), findings...)
			for _, v := range u.Verses {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				for _, match := range refs.Arbitrate(u.Project.Matcher.FindAll(v.Text), policy) {
					if desc := problem(u, u.Project.Matcher, match); desc != "" {
						out = append(out, u.NewFinding(v, match.Start, match.End, desc))
					}
				}
			}
			return out, nil
		}), nil
	}
}

func unknownBook(_ Unit, _ *refs.Matcher, match refs.Match) string {
	if match.Book != nil {
		return ""
	}
	return fmt.Sprintf("unknown book name %q in reference", match.BookToken)
}

func missingBook(u Unit, _ *refs.Matcher, match refs.Match) string {
	if match.Book == nil || u.Project.Present.IsPresent(match.Book.BookNum) {
		return ""
	}
	return fmt.Sprintf("reference to %s, which is not in this project", match.Book.Code)
}

func badFormat(_ Unit, m *refs.Matcher, match refs.Match) string {
	c, err := m.Parse(match)
	if err != nil {
		return fmt.Sprintf("reference %q is not in the project format", match.Text)
	}
	if problems := c.Problems(); len(problems) > 0 {
		return fmt.Sprintf("reference %q: %s", match.Text, strings.Join(problems, "; "))
	}
	return ""
}

// dedupe drops findings whose ignore key was already seen, keeping the first.
func dedupe(_ context.Context, _ Unit, findings []checks.Finding) ([]checks.Finding, error) {
	seen := make(map[string]bool, len(findings))
	out := make([]checks.Finding, 0, len(findings))
	for _, f := range findings {
		key := f.IgnoreKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out, nil
}

var wordPattern = regexp.MustCompile(`\p{L}[\p{L}\p{M}'’]*`)

// repeatedWord flags a word immediately repeated after whitespace and
// proposes dropping the second copy.
func repeatedWord(ctx context.Context, u Unit, findings []checks.Finding) ([]checks.Finding, error) {
	out := append([]checks.Finding(nil), findings...)
	for _, v := range u.Verses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		words := wordPattern.FindAllStringIndex(v.Text, -1)
		for i := 1; i < len(words); i++ {
			prev, cur := words[i-1], words[i]
			if !onlySpace(v.Text[prev[1]:cur[0]]) {
				continue
			}
			if !strings.EqualFold(v.Text[prev[0]:prev[1]], v.Text[cur[0]:cur[1]]) {
				continue
			}
			f := u.NewFinding(v, prev[0], cur[1],
				fmt.Sprintf("repeated word %q", v.Text[cur[0]:cur[1]]))
			f.Fix = &checks.Fix{Text: v.Text[:prev[1]] + v.Text[cur[1]:]}
			out = append(out, f)
		}
	}
	return out, nil
}

func onlySpace(s string) bool {
	if s == "" {
		return false
	}
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if !unicode.IsSpace(r) {
			return false
		}
		s = s[size:]
	}
	return true
}
