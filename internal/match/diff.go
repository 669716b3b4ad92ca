package match

import "time"

// Snapshot is the last known state of the ticket page.
// It is replaced wholesale after every detected change, never merged.
type Snapshot struct {
	Matches   []*Match  `json:"matches"`
	UpdatedAt time.Time `json:"updated_at"` // zero if the snapshot was never persisted
}

// NewSnapshot creates an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Matches: make([]*Match, 0),
	}
}

// CreateSnapshot creates a snapshot from a list of matches
func CreateSnapshot(matches []*Match, updatedAt time.Time) *Snapshot {
	snap := NewSnapshot()
	snap.UpdatedAt = updatedAt
	snap.Matches = append(snap.Matches, Dedupe(matches)...)
	return snap
}

// IsBaseline reports whether the snapshot was never persisted before
func (s *Snapshot) IsBaseline() bool {
	return s == nil || s.UpdatedAt.IsZero()
}

// Len returns the number of matches in the snapshot
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Matches)
}

// Changes contains the results of comparing two match sets
type Changes struct {
	Added   []*Match `json:"added"`
	Removed []*Match `json:"removed"`
}

// Empty reports whether nothing was added or removed
func (c *Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// Diff compares the current matches against the previous ones.
// Added holds records of current missing from previous, Removed the reverse.
// Both keep the order of their source slice.
func Diff(previous, current []*Match) *Changes {
	result := &Changes{
		Added:   make([]*Match, 0),
		Removed: make([]*Match, 0),
	}

	prevKeys := keySet(previous)
	currKeys := keySet(current)

	for _, m := range Dedupe(current) {
		if !prevKeys[m.IdentityKey()] {
			result.Added = append(result.Added, m)
		}
	}

	for _, m := range Dedupe(previous) {
		if !currKeys[m.IdentityKey()] {
			result.Removed = append(result.Removed, m)
		}
	}

	return result
}

// DiffSnapshot is Diff against a possibly nil snapshot
func DiffSnapshot(previous *Snapshot, current []*Match) *Changes {
	if previous == nil {
		previous = NewSnapshot()
	}
	return Diff(previous.Matches, current)
}

func keySet(matches []*Match) map[string]bool {
	keys := make(map[string]bool, len(matches))
	for _, m := range matches {
		if m != nil {
			keys[m.IdentityKey()] = true
		}
	}
	return keys
}
