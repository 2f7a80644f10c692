package table

import (
	"maps"
	"slices"
)

// Selection is a set of selected row IDs.
type Selection map[string]struct{}

// NewSelection returns a selection holding ids.
func NewSelection(ids ...string) Selection {
	s := make(Selection, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Selection) Add(id string) {
	s[id] = struct{}{}
}

func (s Selection) Remove(id string) {
	delete(s, id)
}

func (s Selection) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Selection) Len() int {
	return len(s)
}

// Intersect returns the IDs of s that also appear in ids.
func (s Selection) Intersect(ids []string) Selection {
	out := make(Selection, min(len(s), len(ids)))
	for _, id := range ids {
		if s.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// IDs returns the selected IDs in ascending order.
func (s Selection) IDs() []string {
	return slices.Sorted(maps.Keys(s))
}

func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	maps.Copy(out, s)
	return out
}

func (s Selection) Equal(o Selection) bool {
	return maps.Equal(s, o)
}
