package race

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Result is the outcome of one finished race, recorded for history.
type Result struct {
	ID         string
	RoomName   string
	StartedAt  time.Time
	FinishedAt time.Time
	Standings  []Standing
}

type Standing struct {
	ConnectionID    uuid.UUID `json:"connection_id"`
	UserName        string    `json:"user_name"`
	Place           int       `json:"place"`
	LapCount        int       `json:"lap_count"`
	CheckpointIndex int       `json:"checkpoint_index"`
	Goaled          bool      `json:"goaled"`
}

// Standings orders finishers by the order they goaled, followed by everyone
// still racing in live ranking order. Place is rewritten to be 1..n.
func Standings(ps []Participant) []Standing {
	var finished, racing []Participant
	for _, p := range ps {
		if p.IsGoaled {
			finished = append(finished, p)
		} else {
			racing = append(racing, p)
		}
	}
	slices.SortStableFunc(finished, func(a, b Participant) int {
		return a.Place - b.Place
	})

	out := make([]Standing, 0, len(ps))
	for _, p := range append(finished, Order(racing)...) {
		out = append(out, Standing{
			ConnectionID:    p.ConnectionID,
			UserName:        p.UserName,
			Place:           len(out) + 1,
			LapCount:        p.LapCount,
			CheckpointIndex: p.CheckpointIndex,
			Goaled:          p.IsGoaled,
		})
	}
	return out
}
