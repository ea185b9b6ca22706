package model

import (
	"encoding/json"
	"strings"
)

// Choice is a single axis assignment.
type Choice struct {
	// Axis is the axis name as shown by the target page.
	Axis string `json:"axis"`

	// Value is the option label chosen for the axis.
	Value string `json:"value"`
}

// Selection is an ordered sequence of choices, outermost first.
// The zero value is the empty selection (nothing chosen yet).
//
// A Selection is immutable: With returns a new Selection and never touches
// the receiver's backing array.
type Selection struct {
	choices []Choice
}

// NewSelection builds a Selection from the given choices.
// Later choices for an axis already present replace the earlier value.
func NewSelection(choices ...Choice) Selection {
	var s Selection
	for _, c := range choices {
		s = s.With(c.Axis, c.Value)
	}
	return s
}

// With returns a copy of s with axis set to value.
// If axis is already chosen, its value is replaced in place (order is kept);
// otherwise the choice is appended as the new innermost entry.
func (s Selection) With(axis, value string) Selection {
	next := make([]Choice, 0, len(s.choices)+1)
	replaced := false
	for _, c := range s.choices {
		if c.Axis == axis {
			next = append(next, Choice{Axis: axis, Value: value})
			replaced = true
			continue
		}
		next = append(next, c)
	}
	if !replaced {
		next = append(next, Choice{Axis: axis, Value: value})
	}
	return Selection{choices: next}
}

// Value returns the value chosen for axis.
func (s Selection) Value(axis string) (string, bool) {
	for _, c := range s.choices {
		if c.Axis == axis {
			return c.Value, true
		}
	}
	return "", false
}

// Has reports whether axis has a chosen value.
func (s Selection) Has(axis string) bool {
	_, ok := s.Value(axis)
	return ok
}

// Len returns the number of choices.
func (s Selection) Len() int {
	return len(s.choices)
}

// IsEmpty reports whether nothing is chosen.
func (s Selection) IsEmpty() bool {
	return len(s.choices) == 0
}

// At returns the i-th choice, outermost first.
func (s Selection) At(i int) Choice {
	return s.choices[i]
}

// Choices returns a copy of the choices.
func (s Selection) Choices() []Choice {
	out := make([]Choice, len(s.choices))
	copy(out, s.choices)
	return out
}

// Prefix returns the first n choices.
func (s Selection) Prefix(n int) Selection {
	if n >= len(s.choices) {
		return s
	}
	if n <= 0 {
		return Selection{}
	}
	out := make([]Choice, n)
	copy(out, s.choices[:n])
	return Selection{choices: out}
}

// Equal reports whether both selections hold the same choices in the same order.
func (s Selection) Equal(other Selection) bool {
	if len(s.choices) != len(other.choices) {
		return false
	}
	for i := range s.choices {
		if s.choices[i] != other.choices[i] {
			return false
		}
	}
	return true
}

// CommonPrefix returns how many leading choices s and other share.
func (s Selection) CommonPrefix(other Selection) int {
	n := 0
	for n < len(s.choices) && n < len(other.choices) && s.choices[n] == other.choices[n] {
		n++
	}
	return n
}

// Matches reports whether every choice in s agrees with other on the
// axes both of them define. Axes chosen by only one side are ignored.
// It is used to decide whether a failed prefix covers a combination.
func (s Selection) Matches(other Selection) bool {
	for _, c := range s.choices {
		if v, ok := other.Value(c.Axis); ok && v != c.Value {
			return false
		}
	}
	return true
}

// Covers reports whether every choice in s is also present in other.
func (s Selection) Covers(other Selection) bool {
	for _, c := range s.choices {
		if v, ok := other.Value(c.Axis); !ok || v != c.Value {
			return false
		}
	}
	return true
}

// Key returns a string usable as a map key.
func (s Selection) Key() string {
	var sb strings.Builder
	for i, c := range s.choices {
		if i > 0 {
			sb.WriteByte('\x1f')
		}
		sb.WriteString(c.Axis)
		sb.WriteByte('\x1e')
		sb.WriteString(c.Value)
	}
	return sb.String()
}

// String returns a human-readable form such as "Year=2020, State=TX".
func (s Selection) String() string {
	if len(s.choices) == 0 {
		return "(none)"
	}
	parts := make([]string, len(s.choices))
	for i, c := range s.choices {
		parts[i] = c.Axis + "=" + c.Value
	}
	return strings.Join(parts, ", ")
}

// MarshalJSON encodes the selection as an ordered list of choices.
func (s Selection) MarshalJSON() ([]byte, error) {
	if s.choices == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.choices)
}

// UnmarshalJSON decodes an ordered list of choices.
func (s *Selection) UnmarshalJSON(data []byte) error {
	var choices []Choice
	if err := json.Unmarshal(data, &choices); err != nil {
		return err
	}
	*s = NewSelection(choices...)
	return nil
}
