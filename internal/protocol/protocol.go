package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/manpreetbhatti/driftrace/backend/internal/race"
)

// Client to server calls
const (
	MethodJoin            = "join"
	MethodLeave           = "leave"
	MethodGetConnectionID = "getConnectionId"
	MethodMove            = "move"
	MethodReady           = "ready"
	MethodStart           = "start"
	MethodGoal            = "goal"
)

// Server to client pushes
const (
	EventJoin            = "onJoin"
	EventLeave           = "onLeave"
	EventMove            = "onMove"
	EventReady           = "onReady"
	EventStart           = "onStart"
	EventCountdown       = "onCountdown"
	EventCountdownCancel = "onCountdownCancel"
	EventGameFinish      = "onGameFinish"
)

// Error codes carried in a response
const (
	CodeInvalidRequest = "invalid_request"
	CodeUnknownMethod  = "unknown_method"
	CodeInvalidParams  = "invalid_params"
	CodeRateLimited    = "rate_limited"
	CodeInternal       = "internal"
)

var knownMethods = map[string]bool{
	MethodJoin:            true,
	MethodLeave:           true,
	MethodGetConnectionID: true,
	MethodMove:            true,
	MethodReady:           true,
	MethodStart:           true,
	MethodGoal:            true,
}

// Call is one inbound request. ID is echoed in the matching Response.
type Call struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	ID     uint64 `json:"id"`
	Result any    `json:"result"`
	Error  *Error `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Push is a server-initiated event.
type Push struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type JoinParams struct {
	RoomName string `json:"roomName"`
	UserName string `json:"userName"`
}

type MoveParams = race.Progress

// Params for ready and goal
type TargetParams struct {
	ConnectionID uuid.UUID `json:"connectionId"`
}

type ConnectionIDResult struct {
	ConnectionID uuid.UUID `json:"connectionId"`
}

type LeavePayload struct {
	ConnectionID uuid.UUID `json:"connectionId"`
}

type CountdownPayload struct {
	Remaining int `json:"remaining"`
}

// Decodes a single frame into a call
func ParseCall(data []byte) (Call, error) {
	var c Call
	if len(data) == 0 {
		return c, &Error{Code: CodeInvalidRequest, Message: "empty message"}
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, &Error{Code: CodeInvalidRequest, Message: fmt.Sprintf("malformed frame: %v", err)}
	}
	return c, ValidateCall(c)
}

func ValidateCall(c Call) error {
	if c.ID == 0 {
		return &Error{Code: CodeInvalidRequest, Message: "missing call id"}
	}
	if c.Method == "" {
		return &Error{Code: CodeInvalidRequest, Message: "missing method"}
	}
	if !knownMethods[c.Method] {
		return &Error{Code: CodeUnknownMethod, Message: fmt.Sprintf("unknown method: %s", c.Method)}
	}
	return nil
}

// Unmarshals params into v. Absent params leave v at its zero value.
func DecodeParams(c Call, v any) error {
	if len(c.Params) == 0 || string(c.Params) == "null" {
		return nil
	}
	if err := json.Unmarshal(c.Params, v); err != nil {
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func EncodeResponse(id uint64, result any, callErr *Error) ([]byte, error) {
	return json.Marshal(Response{ID: id, Result: result, Error: callErr})
}

func EncodePush(event string, data any) ([]byte, error) {
	return json.Marshal(Push{Event: event, Data: data})
}
