package room

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/manpreetbhatti/driftrace/backend/internal/race"
)

const shardCount = 32

type shard struct {
	rooms map[string]*Room
	mu    sync.Mutex
}

// Registry maps room names to live rooms. Names are spread over independently
// locked shards so lookups for unrelated rooms never contend. Lock order is
// always shard, then room.
type Registry struct {
	shards   [shardCount]*shard
	settings Settings
	onFinish func(race.Result)
	hooks    sync.WaitGroup
	logger   *slog.Logger
}

type Option func(*Registry)

func WithSettings(s Settings) Option {
	return func(g *Registry) { g.settings = s }
}

// WithFinishHook registers fn to receive every finished race. fn runs on its
// own goroutine.
func WithFinishHook(fn func(race.Result)) Option {
	return func(g *Registry) { g.onFinish = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Registry) { g.logger = l }
}

func NewRegistry(opts ...Option) *Registry {
	g := &Registry{
		settings: DefaultSettings(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	for i := range g.shards {
		g.shards[i] = &shard{rooms: make(map[string]*Room)}
	}
	return g
}

func (g *Registry) shardFor(name string) *shard {
	h := fnv.New32a()
	h.Write([]byte(name))
	return g.shards[h.Sum32()%shardCount]
}

// getOrCreate returns the room for name with its lock held. created is true
// only for the call that inserted it. A room left empty by a leave that has
// not yet been removed is replaced, so its next joiner becomes the owner.
func (g *Registry) getOrCreate(name string) (*Room, bool) {
	s := g.shardFor(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rooms[name]; ok {
		r.mu.Lock()
		if len(r.participants) > 0 {
			return r, false
		}
		r.stopCountdownLocked()
		r.mu.Unlock()
	}

	r := newRoom(name, g.settings, g.onFinish, &g.hooks, g.logger)
	r.mu.Lock()
	s.rooms[name] = r
	g.logger.Info("room created", "room", name)
	return r, true
}

// Join adds the connection to the named room, creating it if needed, and
// returns the roster as of right after the insert.
func (g *Registry) Join(name string, id uuid.UUID, userName string, recv Receiver) (*Room, []race.Participant, bool) {
	r, created := g.getOrCreate(name)
	defer r.mu.Unlock()

	roster := r.join(id, userName, recv, created)
	return r, roster, created
}

// Leave removes the connection from r and drops r from the registry once it
// is empty. Calling it again for the same connection is a no-op.
func (g *Registry) Leave(r *Room, id uuid.UUID) bool {
	removed, empty, res := r.leave(id)
	if empty {
		g.RemoveIfEmpty(r.Name)
	}
	r.report(res)
	return removed
}

// Wait blocks until every finish hook started so far has returned, or ctx is
// done.
func (g *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.hooks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Registry) RemoveIfEmpty(name string) {
	s := g.shardFor(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[name]
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.participants) > 0 {
		return
	}
	r.stopCountdownLocked()
	delete(s.rooms, name)
	g.logger.Info("room removed (empty)", "room", name)
}

func (g *Registry) Get(name string) (*Room, bool) {
	s := g.shardFor(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[name]
	return r, ok
}

// Count returns the number of rooms with at least one participant.
func (g *Registry) Count() int {
	return len(g.rooms())
}

// Snapshot returns every live room sorted by name.
func (g *Registry) Snapshot() []Info {
	rooms := g.rooms()
	infos := make([]Info, 0, len(rooms))
	for _, r := range rooms {
		infos = append(infos, r.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (g *Registry) rooms() []*Room {
	var out []*Room
	for _, s := range g.shards {
		s.mu.Lock()
		for _, r := range s.rooms {
			out = append(out, r)
		}
		s.mu.Unlock()
	}

	live := out[:0]
	for _, r := range out {
		if r.Len() > 0 {
			live = append(live, r)
		}
	}
	return live
}
