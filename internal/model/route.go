package model

import "strings"

// Route is the order in which axes are varied, outermost first.
// The outermost axis changes least often. The innermost axis is never
// selected: its values are read from the result table as columns.
type Route []string

// Outer returns the axes that must be selected, outermost first.
func (r Route) Outer() []string {
	if len(r) == 0 {
		return nil
	}
	return r[:len(r)-1]
}

// Inner returns the innermost axis.
func (r Route) Inner() string {
	if len(r) == 0 {
		return ""
	}
	return r[len(r)-1]
}

// IsPermutationOf reports whether r holds each of axes exactly once.
func (r Route) IsPermutationOf(axes []string) bool {
	if len(r) != len(axes) {
		return false
	}
	seen := make(map[string]int, len(axes))
	for _, a := range axes {
		seen[a]++
	}
	for _, a := range r {
		seen[a]--
		if seen[a] < 0 {
			return false
		}
	}
	return true
}

// String returns the route as "outer > middle > inner".
func (r Route) String() string {
	return strings.Join(r, " > ")
}
