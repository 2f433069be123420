package race

import (
	"github.com/google/uuid"
)

type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// One connection's identity and race progress within a room
type Participant struct {
	ConnectionID  uuid.UUID `json:"connectionId"`
	UserName      string    `json:"userName"`
	JoinOrder     int       `json:"joinOrder"`
	IsOwner       bool      `json:"isOwner"`
	IsReady       bool      `json:"isReady"`
	SpawnPosition Vector3   `json:"spawnPosition"`
	IsGoaled      bool      `json:"isGoaled"`
	Place         int       `json:"place,omitempty"`

	// Self-reported, last write wins
	Position        Vector3    `json:"-"`
	Rotation        Quaternion `json:"-"`
	Tick            int64      `json:"-"`
	LapCount        int        `json:"lapCount"`
	CheckpointIndex int        `json:"checkpointIndex"`
	DistanceToNext  float64    `json:"distanceToNext"`
}

// Progress is one move report from the physics collaborator.
type Progress struct {
	Position        Vector3    `json:"position"`
	Rotation        Quaternion `json:"rotation"`
	Tick            int64      `json:"tick"`
	LapCount        int        `json:"lapCount"`
	CheckpointIndex int        `json:"checkpointIndex"`
	DistanceToNext  float64    `json:"distanceToNext"`
}

// Overwrites the progress fields with a new report
func (p *Participant) Apply(pr Progress) {
	p.Position = pr.Position
	p.Rotation = pr.Rotation
	p.Tick = pr.Tick
	p.LapCount = pr.LapCount
	p.CheckpointIndex = pr.CheckpointIndex
	p.DistanceToNext = pr.DistanceToNext
}
