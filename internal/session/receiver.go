package session

import (
	"github.com/google/uuid"
	"github.com/manpreetbhatti/driftrace/backend/internal/protocol"
	"github.com/manpreetbhatti/driftrace/backend/internal/race"
	"github.com/manpreetbhatti/driftrace/backend/internal/room"
)

// Handler is the room.Receiver for its own connection.
var _ room.Receiver = (*Handler)(nil)

func (h *Handler) push(event string, data any) {
	frame, err := protocol.EncodePush(event, data)
	if err != nil {
		h.logger.Error("encode push", "event", event, "error", err)
		return
	}
	h.out.Push(frame)
}

func (h *Handler) OnJoin(p race.Participant) {
	h.push(protocol.EventJoin, p)
}

func (h *Handler) OnLeave(connectionID uuid.UUID) {
	h.push(protocol.EventLeave, protocol.LeavePayload{ConnectionID: connectionID})
}

func (h *Handler) OnMove(m room.Move) {
	h.push(protocol.EventMove, m)
}

func (h *Handler) OnReady(p race.Participant) {
	h.push(protocol.EventReady, p)
}

func (h *Handler) OnStart(ps []race.Participant) {
	h.push(protocol.EventStart, ps)
}

func (h *Handler) OnCountdown(remaining int) {
	h.push(protocol.EventCountdown, protocol.CountdownPayload{Remaining: remaining})
}

func (h *Handler) OnCountdownCancel() {
	h.push(protocol.EventCountdownCancel, nil)
}

func (h *Handler) OnGameFinish() {
	h.push(protocol.EventGameFinish, nil)
}
