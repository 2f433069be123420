package room

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/manpreetbhatti/driftrace/backend/internal/race"
	"github.com/segmentio/ksuid"
)

type Phase int

const (
	PhaseLobby Phase = iota
	PhaseStarting
	PhaseRacing
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseStarting:
		return "starting"
	case PhaseRacing:
		return "racing"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

type Settings struct {
	LobbyGrid         race.Grid
	StartGrid         race.Grid
	CountdownSeconds  int
	CountdownInterval time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		LobbyGrid:         race.DefaultLobbyGrid(),
		StartGrid:         race.DefaultStartGrid(),
		CountdownSeconds:  3,
		CountdownInterval: time.Second,
	}
}

// A race session shared by every connection that joined the same name
type Room struct {
	Name string

	group        *Group
	participants map[uuid.UUID]*race.Participant
	order        []uuid.UUID
	joins        int
	places       int

	phase        Phase
	countdown    *Countdown
	countdownGen int
	raceID       string
	startedAt    time.Time

	settings Settings
	onFinish func(race.Result)
	hooks    *sync.WaitGroup
	logger   *slog.Logger

	mu sync.Mutex
}

// Info is a point-in-time view of a room for the HTTP API.
type Info struct {
	Name         string             `json:"name"`
	Phase        string             `json:"phase"`
	RaceID       string             `json:"race_id,omitempty"`
	Participants []race.Participant `json:"participants"`
}

func newRoom(name string, settings Settings, onFinish func(race.Result), hooks *sync.WaitGroup, logger *slog.Logger) *Room {
	return &Room{
		Name:         name,
		group:        NewGroup(),
		participants: make(map[uuid.UUID]*race.Participant),
		settings:     settings,
		onFinish:     onFinish,
		hooks:        hooks,
		logger:       logger.With("room", name),
	}
}

// join inserts a participant and announces it. The caller holds r.mu.
func (r *Room) join(id uuid.UUID, userName string, recv Receiver, owner bool) []race.Participant {
	p := &race.Participant{
		ConnectionID:  id,
		UserName:      userName,
		JoinOrder:     r.joins,
		IsOwner:       owner,
		IsReady:       owner,
		SpawnPosition: r.settings.LobbyGrid.Slot(r.joins),
	}
	r.joins++

	r.participants[id] = p
	r.order = append(r.order, id)
	r.group.Add(id, recv)

	joined := *p
	r.group.Except(id, func(rc Receiver) { rc.OnJoin(joined) })

	r.logger.Info("user joined",
		"user", userName, "connection_id", id, "owner", owner, "count", len(r.order))

	return r.rosterLocked()
}

// leave removes a participant. It reports whether anything was removed and
// whether the room is now empty.
func (r *Room) leave(id uuid.UUID) (removed, empty bool, res *race.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return false, len(r.participants) == 0, nil
	}

	r.group.Except(id, func(rc Receiver) { rc.OnLeave(id) })
	r.group.Remove(id)
	delete(r.participants, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.logger.Info("user left", "user", p.UserName, "connection_id", id, "count", len(r.order))

	if len(r.participants) == 0 {
		r.stopCountdownLocked()
		return true, true, nil
	}

	if r.phase == PhaseStarting {
		r.stopCountdownLocked()
		r.phase = PhaseLobby
		r.group.All(func(rc Receiver) { rc.OnCountdownCancel() })
		r.logger.Info("countdown cancelled", "reason", "participant left")
	}

	return true, false, r.checkFinishLocked()
}

// Move records a progress report and pushes the caller's transform and rank
// to the whole room, caller included. Unknown ids are ignored.
func (r *Room) Move(id uuid.UUID, pr race.Progress) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return false
	}
	p.Apply(pr)

	m := Move{
		ConnectionID: id,
		Position:     pr.Position,
		Rotation:     pr.Rotation,
		Tick:         pr.Tick,
		Rank:         race.Rank(r.rosterLocked(), id),
	}
	r.group.All(func(rc Receiver) { rc.OnMove(m) })
	return true
}

// Ready marks target as ready and tells everyone but the caller.
func (r *Room) Ready(caller, target uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[target]
	if !ok {
		return false
	}
	p.IsReady = true

	ready := *p
	r.group.Except(caller, func(rc Receiver) { rc.OnReady(ready) })
	return true
}

// Start moves every participant onto the starting grid in join order and
// pushes the new roster to the whole room. From the lobby it also begins the
// countdown.
func (r *Room) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, id := range r.order {
		r.participants[id].SpawnPosition = r.settings.StartGrid.Slot(i)
	}

	roster := r.rosterLocked()
	r.group.All(func(rc Receiver) { rc.OnStart(roster) })

	switch r.phase {
	case PhaseLobby:
		r.raceID = ksuid.New().String()
		r.startedAt = time.Now().UTC()
		r.beginCountdownLocked()
	case PhaseStarting:
		r.beginCountdownLocked()
	}

	r.logger.Info("race start requested", "race_id", r.raceID, "phase", r.phase.String(), "count", len(roster))
}

func (r *Room) beginCountdownLocked() {
	r.stopCountdownLocked()

	if r.settings.CountdownSeconds <= 0 {
		r.phase = PhaseRacing
		return
	}

	r.phase = PhaseStarting
	gen := r.countdownGen
	r.countdown = StartCountdown(r.settings.CountdownSeconds, r.settings.CountdownInterval, func(remaining int) {
		r.countdownTick(gen, remaining)
	})
}

func (r *Room) countdownTick(gen, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.countdownGen || r.phase != PhaseStarting {
		return
	}

	r.group.All(func(rc Receiver) { rc.OnCountdown(remaining) })

	if remaining == 0 {
		r.countdown = nil
		r.phase = PhaseRacing
		r.logger.Info("race started", "race_id", r.raceID)
	}
}

func (r *Room) stopCountdownLocked() {
	r.countdownGen++
	if r.countdown != nil {
		r.countdown.Stop()
		r.countdown = nil
	}
}

// Goal marks id as finished. Once every participant has goaled the room
// latches into PhaseFinished and pushes onGameFinish exactly once.
func (r *Room) Goal(id uuid.UUID) bool {
	r.mu.Lock()

	p, ok := r.participants[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if !p.IsGoaled {
		r.places++
		p.IsGoaled = true
		p.Place = r.places
		r.logger.Info("user goaled", "user", p.UserName, "connection_id", id, "place", p.Place)
	}

	res := r.checkFinishLocked()
	r.mu.Unlock()

	r.report(res)
	return true
}

func (r *Room) checkFinishLocked() *race.Result {
	if r.phase == PhaseFinished || len(r.participants) == 0 {
		return nil
	}
	for _, p := range r.participants {
		if !p.IsGoaled {
			return nil
		}
	}

	r.stopCountdownLocked()
	r.phase = PhaseFinished
	r.group.All(func(rc Receiver) { rc.OnGameFinish() })

	if r.raceID == "" {
		r.raceID = ksuid.New().String()
	}
	finishedAt := time.Now().UTC()
	if r.startedAt.IsZero() {
		r.startedAt = finishedAt
	}

	r.logger.Info("race finished", "race_id", r.raceID, "count", len(r.participants))

	return &race.Result{
		ID:         r.raceID,
		RoomName:   r.Name,
		StartedAt:  r.startedAt,
		FinishedAt: finishedAt,
		Standings:  race.Standings(r.rosterLocked()),
	}
}

// report hands a finished race to the hook without holding the room lock.
func (r *Room) report(res *race.Result) {
	if res == nil || r.onFinish == nil {
		return
	}
	r.hooks.Add(1)
	go func() {
		defer r.hooks.Done()
		r.onFinish(*res)
	}()
}

// Returns every participant in join order
func (r *Room) Roster() []race.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked()
}

func (r *Room) rosterLocked() []race.Participant {
	roster := make([]race.Participant, 0, len(r.order))
	for _, id := range r.order {
		roster = append(roster, *r.participants[id])
	}
	return roster
}

func (r *Room) Has(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.participants[id]
	return ok
}

func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Room) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Info{
		Name:         r.Name,
		Phase:        r.phase.String(),
		RaceID:       r.raceID,
		Participants: r.rosterLocked(),
	}
}
