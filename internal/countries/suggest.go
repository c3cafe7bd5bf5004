package countries

import (
	"iter"
	"strings"
)

// DefaultSuggestLimit caps autocomplete results when Matcher.Limit is unset.
const DefaultSuggestLimit = 10

// MatchMode selects how input is compared against names.
type MatchMode string

const (
	MatchContains MatchMode = "contains"
	MatchPrefix   MatchMode = "prefix"
)

// ParseMatchMode maps a config string to a MatchMode, defaulting to contains.
func ParseMatchMode(s string) MatchMode {
	if MatchMode(Normalize(s)) == MatchPrefix {
		return MatchPrefix
	}
	return MatchContains
}

// Matcher produces autocomplete candidates for partial input.
type Matcher struct {
	Mode     MatchMode
	Limit    int  // <= 0 means DefaultSuggestLimit
	Capitals bool // also match on capital name, yielding the country
}

func (m Matcher) match(name, input string) bool {
	if m.Mode == MatchPrefix {
		return strings.HasPrefix(name, input)
	}
	return strings.Contains(name, input)
}

// Suggest yields country names from d, in dataset order, whose normalized
// form matches the normalized input. The sequence is empty for blank input,
// never longer than the limit, and may be ranged over repeatedly.
func (m Matcher) Suggest(d *Dataset, input string) iter.Seq[string] {
	key := Normalize(input)
	limit := m.Limit
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	return func(yield func(string) bool) {
		if key == "" || d == nil {
			return
		}
		n := 0
		for i, name := range d.normCountry {
			if !m.match(name, key) && !(m.Capitals && d.normCapital[i] != "" && m.match(d.normCapital[i], key)) {
				continue
			}
			if !yield(d.records[i].Country) {
				return
			}
			n++
			if n >= limit {
				return
			}
		}
	}
}
