package refs

// Reference is an arbitrated match with its parsed citation. Err is set
// when the match text does not parse.
type Reference struct {
	Match
	Citation *Citation `json:"citation,omitempty"`
	Err      string    `json:"error,omitempty"`
}

// References finds, arbitrates and parses every reference in text.
func (m *Matcher) References(text string, policy Policy) []Reference {
	matches := Arbitrate(m.FindAll(text), policy)
	out := make([]Reference, 0, len(matches))
	for _, match := range matches {
		ref := Reference{Match: match}
		c, err := m.Parse(match)
		if err != nil {
			ref.Err = err.Error()
		} else {
			ref.Citation = c
		}
		out = append(out, ref)
	}
	return out
}
