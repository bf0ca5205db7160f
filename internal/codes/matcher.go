package codes

import "strings"

// Matcher tests response statuses against a compiled set of specifications.
// It is read-only after Compile and safe for concurrent use.
type Matcher struct {
	specs []Spec
}

// Compile builds a matcher from specs. An empty list matches only 000.
func Compile(specs []Spec) *Matcher {
	if len(specs) == 0 {
		noConnection, _ := FromInt(0)
		return &Matcher{specs: []Spec{noConnection}}
	}

	compiled := make([]Spec, len(specs))
	copy(compiled, specs)
	return &Matcher{specs: compiled}
}

// Match reports whether the zero-padded status equals one of the alternatives.
// Statuses without a 3-digit form (negative, above 999) never match.
func (m *Matcher) Match(status int) bool {
	candidate, ok := pad(status)
	if !ok {
		return false
	}
	for _, spec := range m.specs {
		if spec.matches(candidate) {
			return true
		}
	}
	return false
}

// Specs returns a copy of the compiled alternatives
func (m *Matcher) Specs() []Spec {
	specs := make([]Spec, len(m.specs))
	copy(specs, m.specs)
	return specs
}

// String renders the alternation, e.g. "000|50X"
func (m *Matcher) String() string {
	parts := make([]string, len(m.specs))
	for i, spec := range m.specs {
		parts[i] = spec.String()
	}
	return strings.Join(parts, "|")
}
