package race

import (
	"slices"

	"github.com/google/uuid"
)

// Less reports whether a is ahead of b: more laps, then a later checkpoint,
// then less distance left to the next checkpoint.
func Less(a, b Participant) bool {
	return compare(a, b) < 0
}

func compare(a, b Participant) int {
	if a.LapCount != b.LapCount {
		if a.LapCount > b.LapCount {
			return -1
		}
		return 1
	}
	if a.CheckpointIndex != b.CheckpointIndex {
		if a.CheckpointIndex > b.CheckpointIndex {
			return -1
		}
		return 1
	}
	switch {
	case a.DistanceToNext < b.DistanceToNext:
		return -1
	case a.DistanceToNext > b.DistanceToNext:
		return 1
	}
	return 0
}

// Order returns a copy of ps sorted leader first. Participants equal on all
// three keys keep their relative input order, so callers pass join order.
func Order(ps []Participant) []Participant {
	out := slices.Clone(ps)
	slices.SortStableFunc(out, compare)
	return out
}

// Rank returns the 1-based position of id in the ranking of ps, or 0 if id is
// not among them.
func Rank(ps []Participant, id uuid.UUID) int {
	for i, p := range Order(ps) {
		if p.ConnectionID == id {
			return i + 1
		}
	}
	return 0
}
