package room

import (
	"sync"

	"github.com/google/uuid"
	"github.com/manpreetbhatti/driftrace/backend/internal/race"
)

// Receiver is the push side of one connection. Implementations must not
// block: they are invoked while the room's lock is held.
type Receiver interface {
	OnJoin(p race.Participant)
	OnLeave(connectionID uuid.UUID)
	OnMove(m Move)
	OnReady(p race.Participant)
	OnStart(ps []race.Participant)
	OnCountdown(remaining int)
	OnCountdownCancel()
	OnGameFinish()
}

type Move struct {
	ConnectionID uuid.UUID       `json:"connectionId"`
	Position     race.Vector3    `json:"position"`
	Rotation     race.Quaternion `json:"rotation"`
	Tick         int64           `json:"tick"`
	Rank         int             `json:"rank"`
}

// The set of connections subscribed to one room's events
type Group struct {
	members map[uuid.UUID]Receiver
	mu      sync.RWMutex
}

func NewGroup() *Group {
	return &Group{
		members: make(map[uuid.UUID]Receiver),
	}
}

func (g *Group) Add(id uuid.UUID, r Receiver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[id] = r
}

func (g *Group) Remove(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.members, id)
}

func (g *Group) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

// Sends to every member
func (g *Group) All(send func(Receiver)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, r := range g.members {
		send(r)
	}
}

// Sends to every member except one, usually the caller
func (g *Group) Except(id uuid.UUID, send func(Receiver)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for memberID, r := range g.members {
		if memberID != id {
			send(r)
		}
	}
}
