package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/manpreetbhatti/driftrace/backend/internal/protocol"
	"github.com/manpreetbhatti/driftrace/backend/internal/race"
	"github.com/manpreetbhatti/driftrace/backend/internal/room"
)

var (
	ErrInvalidParams = errors.New("invalid params")
	ErrUnknownMethod = errors.New("unknown method")
)

// Pusher hands an encoded frame to the transport. It must not block.
type Pusher interface {
	Push(frame []byte)
}

// Handler is the per-connection entry point. It turns calls into registry and
// room operations and room events into pushes for its own connection.
type Handler struct {
	id       uuid.UUID
	registry *room.Registry
	out      Pusher
	logger   *slog.Logger

	mu   sync.Mutex
	room *room.Room
}

func New(id uuid.UUID, registry *room.Registry, out Pusher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		id:       id,
		registry: registry,
		out:      out,
		logger:   logger.With("connection_id", id),
	}
}

func (h *Handler) ConnectionID() uuid.UUID {
	return h.id
}

// Returns the room this connection is in, or nil
func (h *Handler) Room() *room.Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.room
}

// Join enters the named room, leaving any room joined before, and returns the
// roster including this connection.
func (h *Handler) Join(roomName, userName string) ([]race.Participant, error) {
	roomName = strings.TrimSpace(roomName)
	userName = strings.TrimSpace(userName)
	if roomName == "" {
		return nil, fmt.Errorf("%w: roomName is required", ErrInvalidParams)
	}
	if userName == "" {
		return nil, fmt.Errorf("%w: userName is required", ErrInvalidParams)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.room != nil {
		h.logger.Info("switching rooms", "from", h.room.Name, "to", roomName)
		h.leaveLocked()
	}

	h.logger.Info("join request", "room", roomName, "user", userName)
	r, roster, _ := h.registry.Join(roomName, h.id, userName, h)
	h.room = r
	return roster, nil
}

func (h *Handler) Leave() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked()
}

// Disconnect runs the leave path for a connection the transport lost.
func (h *Handler) Disconnect() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.room == nil {
		h.logger.Info("client disconnected outside a room")
		return
	}
	h.leaveLocked()
}

func (h *Handler) leaveLocked() {
	if h.room == nil {
		return
	}
	h.registry.Leave(h.room, h.id)
	h.room = nil
}

func (h *Handler) Move(pr race.Progress) {
	if r := h.Room(); r != nil {
		r.Move(h.id, pr)
	}
}

func (h *Handler) Ready(target uuid.UUID) {
	if r := h.Room(); r != nil && r.Has(h.id) {
		r.Ready(h.id, target)
	}
}

func (h *Handler) Start() {
	if r := h.Room(); r != nil && r.Has(h.id) {
		r.Start()
	}
}

func (h *Handler) Goal(target uuid.UUID) {
	if r := h.Room(); r != nil && r.Has(h.id) {
		r.Goal(target)
	}
}

// Dispatch runs one decoded call and returns its result.
func (h *Handler) Dispatch(c protocol.Call) (any, error) {
	switch c.Method {
	case protocol.MethodJoin:
		var p protocol.JoinParams
		if err := protocol.DecodeParams(c, &p); err != nil {
			return nil, err
		}
		return h.Join(p.RoomName, p.UserName)

	case protocol.MethodLeave:
		h.Leave()
		return nil, nil

	case protocol.MethodGetConnectionID:
		return protocol.ConnectionIDResult{ConnectionID: h.id}, nil

	case protocol.MethodMove:
		var p protocol.MoveParams
		if err := protocol.DecodeParams(c, &p); err != nil {
			return nil, err
		}
		h.Move(p)
		return nil, nil

	case protocol.MethodReady, protocol.MethodGoal:
		var p protocol.TargetParams
		if err := protocol.DecodeParams(c, &p); err != nil {
			return nil, err
		}
		if p.ConnectionID == uuid.Nil {
			p.ConnectionID = h.id
		}
		if c.Method == protocol.MethodReady {
			h.Ready(p.ConnectionID)
		} else {
			h.Goal(p.ConnectionID)
		}
		return nil, nil

	case protocol.MethodStart:
		h.Start()
		return nil, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, c.Method)
}

// ErrorFor maps a dispatch error onto the wire error sent back to the caller.
func ErrorFor(err error) *protocol.Error {
	if err == nil {
		return nil
	}
	var perr *protocol.Error
	switch {
	case errors.As(err, &perr):
		return perr
	case errors.Is(err, ErrInvalidParams):
		return &protocol.Error{Code: protocol.CodeInvalidParams, Message: err.Error()}
	case errors.Is(err, ErrUnknownMethod):
		return &protocol.Error{Code: protocol.CodeUnknownMethod, Message: err.Error()}
	default:
		return &protocol.Error{Code: protocol.CodeInternal, Message: err.Error()}
	}
}
