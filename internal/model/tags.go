package model

import (
	"slices"
	"strings"
)

// NormalizeTag lowercases a tag, trims it and joins inner whitespace with underscores.
func NormalizeTag(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

// TagSet is a pair of include and exclude tag lists.
// Tags are normalized and unique within each list.
type TagSet struct {
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
}

// Empty reports whether the set has no tags at all.
func (s TagSet) Empty() bool {
	return len(s.Include) == 0 && len(s.Exclude) == 0
}

// Clone returns a deep copy of the set.
func (s TagSet) Clone() TagSet {
	return TagSet{Include: slices.Clone(s.Include), Exclude: slices.Clone(s.Exclude)}
}

// Add normalizes raw and appends it to the include list, or to the exclude
// list when it starts with "-". A tag moves out of the opposite list.
// It returns false when raw normalizes to nothing.
func (s *TagSet) Add(raw string) bool {
	t := NormalizeTag(raw)
	excluded := strings.HasPrefix(t, "-")
	if excluded {
		t = strings.TrimLeft(t, "-")
	}
	if t == "" {
		return false
	}
	if excluded {
		s.Include = remove(s.Include, t)
		if !slices.Contains(s.Exclude, t) {
			s.Exclude = append(s.Exclude, t)
		}
		return true
	}
	s.Exclude = remove(s.Exclude, t)
	if !slices.Contains(s.Include, t) {
		s.Include = append(s.Include, t)
	}
	return true
}

// Remove deletes tag from the include or exclude list and reports whether it was present.
func (s *TagSet) Remove(tag string, excluded bool) bool {
	tag = strings.TrimLeft(NormalizeTag(tag), "-")
	if excluded {
		if !slices.Contains(s.Exclude, tag) {
			return false
		}
		s.Exclude = remove(s.Exclude, tag)
		return true
	}
	if !slices.Contains(s.Include, tag) {
		return false
	}
	s.Include = remove(s.Include, tag)
	return true
}

// Toggle moves tag between the include and exclude lists.
func (s *TagSet) Toggle(tag string, excluded bool) bool {
	if !s.Remove(tag, excluded) {
		return false
	}
	tag = strings.TrimLeft(NormalizeTag(tag), "-")
	if excluded {
		return s.Add(tag)
	}
	return s.Add("-" + tag)
}

// Strings renders the set the way a user typed it: includes, then excludes prefixed with "-".
func (s TagSet) Strings() []string {
	out := make([]string, 0, len(s.Include)+len(s.Exclude))
	out = append(out, s.Include...)
	for _, t := range s.Exclude {
		out = append(out, "-"+t)
	}
	return out
}

func remove(list []string, tag string) []string {
	return slices.DeleteFunc(list, func(s string) bool { return s == tag })
}
