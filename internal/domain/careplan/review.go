package careplan

import (
	"sort"
	"strings"
)

// Review is an in-progress edit of a snapshot's note. It is not safe for
// concurrent use.
type Review struct {
	rules       []Rule
	base        string
	lines       []string
	highlighted map[int]bool
	accepted    []string
	unmatched   []string
}

func NewReview(base string) *Review {
	return NewReviewWithRules(base, DefaultRules)
}

func NewReviewWithRules(base string, rules []Rule) *Review {
	r := &Review{rules: rules, base: base}
	r.Reset()
	return r
}

// Replay starts a review of base and accepts each label in order.
func Replay(base string, labels []string) *Review {
	r := NewReview(base)
	for _, l := range labels {
		r.Apply(l)
	}
	return r
}

// Apply accepts a suggestion label and rewrites the note with the first rule
// matching it. Accepting a label twice changes nothing. It reports whether
// any line was touched.
func (r *Review) Apply(label string) bool {
	for _, a := range r.accepted {
		if a == label {
			return false
		}
	}
	r.accepted = append(r.accepted, label)

	rule, ok := MatchRule(r.rules, label)
	if !ok {
		r.unmatched = append(r.unmatched, label)
		return false
	}

	out := make([]string, 0, len(r.lines)+1)
	moved := make([]int, len(r.lines))
	fresh := make(map[int]bool)
	touched := false
	for i, line := range r.lines {
		moved[i] = len(out)
		if !strings.Contains(line, rule.MatchLine) {
			out = append(out, line)
			continue
		}
		touched = true
		for _, repl := range rule.Transform(line) {
			fresh[len(out)] = true
			out = append(out, repl)
		}
	}

	// Inserted lines push earlier highlights down.
	next := make(map[int]bool, len(r.highlighted)+len(fresh))
	for idx := range r.highlighted {
		next[moved[idx]] = true
	}
	for idx := range fresh {
		next[idx] = true
	}
	r.highlighted = next
	r.lines = out
	return touched
}

// Reset drops every accepted suggestion and restores the original note.
func (r *Review) Reset() {
	r.lines = strings.Split(r.base, "\n")
	r.highlighted = make(map[int]bool)
	r.accepted = nil
	r.unmatched = nil
}

func (r *Review) Text() string {
	return strings.Join(r.lines, "\n")
}

// Highlighted returns the indices of touched lines in ascending order.
func (r *Review) Highlighted() []int {
	out := make([]int, 0, len(r.highlighted))
	for idx := range r.highlighted {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func (r *Review) Accepted() []string {
	return append([]string(nil), r.accepted...)
}

// Unmatched returns accepted labels that no rule recognised.
func (r *Review) Unmatched() []string {
	return append([]string(nil), r.unmatched...)
}
