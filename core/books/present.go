package books

// PresentBooks records which books a project contains. Flags is indexed by
// book number minus one; Nums, Min and Max are derived from it in one pass
// by NewPresentBooks and never set independently.
type PresentBooks struct {
	flags []bool
	nums  []int
	min   int
	max   int
}

// NewPresentBooks derives the present-book set from a flag sequence.
func NewPresentBooks(flags []bool) PresentBooks {
	p := PresentBooks{flags: append([]bool(nil), flags...)}
	for i, present := range p.flags {
		if !present {
			continue
		}
		num := i + 1
		p.nums = append(p.nums, num)
		if p.min == 0 {
			p.min = num
		}
		p.max = num
	}
	return p
}

// ParsePresentBooks reads a BooksPresent setting such as "1101". Any
// character other than '1' counts as absent.
func ParsePresentBooks(s string) PresentBooks {
	flags := make([]bool, len(s))
	for i := 0; i < len(s); i++ {
		flags[i] = s[i] == '1'
	}
	return NewPresentBooks(flags)
}

// IsPresent reports whether book num is present. Numbers outside the flag
// sequence are absent.
func (p PresentBooks) IsPresent(num int) bool {
	if num < 1 || num > len(p.flags) {
		return false
	}
	return p.flags[num-1]
}

// Flags returns a copy of the flag sequence.
func (p PresentBooks) Flags() []bool { return append([]bool(nil), p.flags...) }

// Nums returns the present 1-based book numbers in ascending order.
func (p PresentBooks) Nums() []int { return append([]int(nil), p.nums...) }

// Min returns the lowest present book number, or 0 when none are present.
func (p PresentBooks) Min() int { return p.min }

// Max returns the highest present book number, or 0 when none are present.
func (p PresentBooks) Max() int { return p.max }

// Len returns the number of present books.
func (p PresentBooks) Len() int { return len(p.nums) }
