package tags

import (
	"sort"
	"strings"
)

// Tag is a dotted hierarchical gameplay tag, e.g. "Ability.Targeting.Individual"
type Tag string

// Matches reports whether t equals parent or is nested under it
func (t Tag) Matches(parent Tag) bool {
	if parent == "" {
		return false
	}
	if t == parent {
		return true
	}
	return strings.HasPrefix(string(t), string(parent)+".")
}

// Set is an immutable sorted set of tags. The zero value is empty.
type Set struct {
	tags []Tag
}

// New builds a set from the given tags
func New(ts ...Tag) Set {
	if len(ts) == 0 {
		return Set{}
	}
	out := make([]Tag, 0, len(ts))
	for _, t := range ts {
		if t != "" {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	// dedupe in place
	n := 0
	for i, t := range out {
		if i == 0 || t != out[n-1] {
			out[n] = t
			n++
		}
	}
	return Set{tags: out[:n]}
}

// FromStrings builds a set from plain strings
func FromStrings(ss []string) Set {
	ts := make([]Tag, len(ss))
	for i, s := range ss {
		ts[i] = Tag(s)
	}
	return New(ts...)
}

// Len returns the number of tags
func (s Set) Len() int { return len(s.tags) }

// IsEmpty reports whether the set holds no tags
func (s Set) IsEmpty() bool { return len(s.tags) == 0 }

// Has reports whether any tag in the set matches t, including children of t
func (s Set) Has(t Tag) bool {
	for _, own := range s.tags {
		if own.Matches(t) {
			return true
		}
	}
	return false
}

// HasExact reports whether t itself is in the set
func (s Set) HasExact(t Tag) bool {
	i := sort.Search(len(s.tags), func(i int) bool { return s.tags[i] >= t })
	return i < len(s.tags) && s.tags[i] == t
}

// HasAny reports whether the set has at least one tag of o
func (s Set) HasAny(o Set) bool {
	for _, t := range o.tags {
		if s.Has(t) {
			return true
		}
	}
	return false
}

// HasAll reports whether the set has every tag of o. An empty o is always satisfied.
func (s Set) HasAll(o Set) bool {
	for _, t := range o.tags {
		if !s.Has(t) {
			return false
		}
	}
	return true
}

// With returns a copy of the set with ts added
func (s Set) With(ts ...Tag) Set {
	all := make([]Tag, 0, len(s.tags)+len(ts))
	all = append(all, s.tags...)
	all = append(all, ts...)
	return New(all...)
}

// Merge returns the union of both sets
func (s Set) Merge(o Set) Set {
	if o.IsEmpty() {
		return s
	}
	if s.IsEmpty() {
		return o
	}
	return s.With(o.tags...)
}

// Slice returns a copy of the tags
func (s Set) Slice() []Tag {
	return append([]Tag(nil), s.tags...)
}

// Strings returns the tags as plain strings
func (s Set) Strings() []string {
	out := make([]string, len(s.tags))
	for i, t := range s.tags {
		out[i] = string(t)
	}
	return out
}

func (s Set) String() string {
	return "{" + strings.Join(s.Strings(), ", ") + "}"
}
