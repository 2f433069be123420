package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/manpreetbhatti/driftrace/backend/internal/protocol"
	"github.com/manpreetbhatti/driftrace/backend/internal/race"
	"github.com/manpreetbhatti/driftrace/backend/internal/room"
)

type outbox struct {
	mu     sync.Mutex
	frames []protocol.Push
}

func (o *outbox) Push(frame []byte) {
	var p protocol.Push
	if err := json.Unmarshal(frame, &p); err != nil {
		panic(err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames = append(o.frames, p)
}

func (o *outbox) events() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, f := range o.frames {
		out = append(out, f.Event)
	}
	return out
}

func newHandler(registry *room.Registry) (*Handler, *outbox) {
	out := &outbox{}
	return New(uuid.New(), registry, out, nil), out
}

func call(method string, params any) protocol.Call {
	c := protocol.Call{ID: 1, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			panic(err)
		}
		c.Params = raw
	}
	return c
}

func TestDispatchJoin(t *testing.T) {
	registry := room.NewRegistry()
	h, _ := newHandler(registry)

	result, err := h.Dispatch(call(protocol.MethodJoin, protocol.JoinParams{RoomName: "R", UserName: "alice"}))
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	roster, ok := result.([]race.Participant)
	if !ok {
		t.Fatalf("Expected roster, got %T", result)
	}
	if len(roster) != 1 || roster[0].ConnectionID != h.ConnectionID() || !roster[0].IsOwner {
		t.Errorf("Unexpected roster %+v", roster)
	}
	if h.Room() == nil || h.Room().Name != "R" {
		t.Error("Handler should remember its room")
	}
}

func TestDispatchJoinRequiresNames(t *testing.T) {
	registry := room.NewRegistry()
	h, _ := newHandler(registry)

	tests := []struct {
		name   string
		params protocol.JoinParams
	}{
		{"missing room", protocol.JoinParams{UserName: "alice"}},
		{"missing user", protocol.JoinParams{RoomName: "R"}},
		{"blank room", protocol.JoinParams{RoomName: "   ", UserName: "alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Dispatch(call(protocol.MethodJoin, tt.params))
			if !errors.Is(err, ErrInvalidParams) {
				t.Errorf("Expected ErrInvalidParams, got %v", err)
			}
			if got := ErrorFor(err); got.Code != protocol.CodeInvalidParams {
				t.Errorf("Expected code %s, got %s", protocol.CodeInvalidParams, got.Code)
			}
		})
	}
	if registry.Count() != 0 {
		t.Error("Rejected joins should not create rooms")
	}
}

func TestDispatchMalformedParams(t *testing.T) {
	h, _ := newHandler(room.NewRegistry())

	c := protocol.Call{ID: 1, Method: protocol.MethodJoin, Params: json.RawMessage(`[1,2]`)}
	_, err := h.Dispatch(c)

	if got := ErrorFor(err); got == nil || got.Code != protocol.CodeInvalidParams {
		t.Errorf("Expected invalid_params, got %v", got)
	}
}

func TestDispatchGetConnectionID(t *testing.T) {
	h, _ := newHandler(room.NewRegistry())

	result, err := h.Dispatch(call(protocol.MethodGetConnectionID, nil))
	if err != nil {
		t.Fatalf("getConnectionId failed: %v", err)
	}
	if got := result.(protocol.ConnectionIDResult).ConnectionID; got != h.ConnectionID() {
		t.Errorf("Expected %s, got %s", h.ConnectionID(), got)
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	h, _ := newHandler(room.NewRegistry())

	_, err := h.Dispatch(call("teleport", nil))
	if !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("Expected ErrUnknownMethod, got %v", err)
	}
	if got := ErrorFor(err); got.Code != protocol.CodeUnknownMethod {
		t.Errorf("Expected code %s, got %s", protocol.CodeUnknownMethod, got.Code)
	}
}

func TestCallsBeforeJoinAreNoOps(t *testing.T) {
	h, out := newHandler(room.NewRegistry())

	for _, method := range []string{protocol.MethodMove, protocol.MethodReady, protocol.MethodStart, protocol.MethodGoal, protocol.MethodLeave} {
		if _, err := h.Dispatch(call(method, nil)); err != nil {
			t.Errorf("%s before join should not fail: %v", method, err)
		}
	}
	h.Disconnect()

	if n := len(out.events()); n != 0 {
		t.Errorf("Expected no pushes, got %d", n)
	}
}

func TestPushesReachOtherConnections(t *testing.T) {
	registry := room.NewRegistry()
	alice, aliceOut := newHandler(registry)
	bob, bobOut := newHandler(registry)

	alice.Join("R", "alice")
	bob.Join("R", "bob")

	if _, err := bob.Dispatch(call(protocol.MethodMove, race.Progress{LapCount: 1})); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if _, err := bob.Dispatch(call(protocol.MethodReady, nil)); err != nil {
		t.Fatalf("Ready failed: %v", err)
	}
	bob.Leave()

	want := []string{protocol.EventJoin, protocol.EventMove, protocol.EventReady, protocol.EventLeave}
	got := aliceOut.events()
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Event %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	bobEvents := bobOut.events()
	if len(bobEvents) != 1 || bobEvents[0] != protocol.EventMove {
		t.Errorf("Bob should only see his own move, got %v", bobEvents)
	}
}

func TestJoinSwitchesRooms(t *testing.T) {
	registry := room.NewRegistry()
	h, _ := newHandler(registry)

	h.Join("first", "alice")
	h.Join("second", "alice")

	if _, ok := registry.Get("first"); ok {
		t.Error("Previous room should be left and removed")
	}
	if h.Room().Name != "second" {
		t.Errorf("Expected room second, got %s", h.Room().Name)
	}
}

func TestStaleRoomCallsAreIgnored(t *testing.T) {
	registry := room.NewRegistry()
	h, out := newHandler(registry)
	other, _ := newHandler(registry)

	h.Join("R", "alice")
	other.Join("R", "bob")
	h.Leave()
	h.Leave()

	h.Goal(h.ConnectionID())
	h.Start()

	r, _ := registry.Get("R")
	if r.Phase() != room.PhaseLobby {
		t.Errorf("Calls after leave should not affect the room, phase %s", r.Phase())
	}
	if n := len(out.events()); n != 1 {
		t.Errorf("Expected only bob's onJoin, got %v", out.events())
	}
}

func TestErrorFor(t *testing.T) {
	if ErrorFor(nil) != nil {
		t.Error("nil error should map to nil")
	}

	wire := &protocol.Error{Code: protocol.CodeInvalidRequest, Message: "bad"}
	if got := ErrorFor(wire); got != wire {
		t.Errorf("Protocol errors should pass through, got %v", got)
	}

	if got := ErrorFor(errors.New("boom")); got.Code != protocol.CodeInternal {
		t.Errorf("Expected internal, got %s", got.Code)
	}
}

func TestDisconnectAfterLeaveLogsOutsideRoom(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := New(uuid.New(), room.NewRegistry(), &outbox{}, logger)

	h.Join("R", "alice")
	h.Leave()
	h.Disconnect()

	if !strings.Contains(buf.String(), "client disconnected outside a room") {
		t.Errorf("Expected disconnect outside a room to be logged, got:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "before join") {
		t.Error("A connection that joined earlier should not be logged as never joined")
	}
}
