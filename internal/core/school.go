package core

import "github.com/kurspanel/kurspanel-server/internal/catalog"

// CategoryCounts maps a license category to the number of enrolled
// candidates. A missing key means zero; counts never go negative.
type CategoryCounts map[catalog.Category]int

// Clone returns an independent copy of the counts.
func (c CategoryCounts) Clone() CategoryCounts {
	out := make(CategoryCounts, len(c))
	for cat, n := range c {
		out[cat] = n
	}
	return out
}

// School is a tenant record: one driving school with its per-category
// candidate counts. Identity is ID; Name and Candidates are mutable and owned
// by the remote store, the local copy is a cache.
type School struct {
	ID         string
	Name       string
	Candidates CategoryCounts
}

// Clone returns an independent copy of the school.
func (s School) Clone() School {
	s.Candidates = s.Candidates.Clone()
	return s
}

// CloneSnapshot copies a full registry snapshot.
func CloneSnapshot(snapshot []School) []School {
	out := make([]School, len(snapshot))
	for i, s := range snapshot {
		out[i] = s.Clone()
	}
	return out
}
