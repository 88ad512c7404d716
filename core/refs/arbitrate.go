package refs

import "sort"

// Policy decides which of several overlapping matches a caller keeps.
type Policy int

const (
	// LongestWins keeps the longest match of each overlapping cluster; ties
	// go to the earlier start, then the earlier pattern.
	LongestWins Policy = iota
	// FirstPatternWins keeps matches of earlier patterns over later ones.
	FirstPatternWins
	// ReportAll keeps every match.
	ReportAll
)

func (p Policy) String() string {
	switch p {
	case FirstPatternWins:
		return "first-pattern"
	case ReportAll:
		return "all"
	default:
		return "longest"
	}
}

// ParsePolicy maps a policy name back to a Policy, defaulting to LongestWins.
func ParsePolicy(s string) Policy {
	switch s {
	case "first-pattern":
		return FirstPatternWins
	case "all":
		return ReportAll
	default:
		return LongestWins
	}
}

// Arbitrate resolves overlapping matches from FindAll under a policy. The
// result is ordered by start offset.
func Arbitrate(matches []Match, policy Policy) []Match {
	candidates := append([]Match(nil), matches...)
	if policy == ReportAll {
		return candidates
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if policy == FirstPatternWins && a.PatternIndex != b.PatternIndex {
			return a.PatternIndex < b.PatternIndex
		}
		if policy == LongestWins && a.Len() != b.Len() {
			return a.Len() > b.Len()
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.PatternIndex < b.PatternIndex
	})

	var kept []Match
	for _, c := range candidates {
		overlaps := false
		for _, k := range kept {
			if c.Overlaps(k) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}
