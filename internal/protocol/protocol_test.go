package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseCall(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode string
	}{
		{"valid", `{"id":1,"method":"join","params":{"roomName":"R","userName":"a"}}`, ""},
		{"no params", `{"id":2,"method":"start"}`, ""},
		{"empty", ``, CodeInvalidRequest},
		{"not json", `hello`, CodeInvalidRequest},
		{"missing id", `{"method":"join"}`, CodeInvalidRequest},
		{"missing method", `{"id":3}`, CodeInvalidRequest},
		{"unknown method", `{"id":4,"method":"fly"}`, CodeUnknownMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCall([]byte(tt.input))
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				return
			}

			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("Expected *Error, got %v", err)
			}
			if perr.Code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, perr.Code)
			}
		})
	}
}

func TestParseCallKeepsIDOnUnknownMethod(t *testing.T) {
	c, err := ParseCall([]byte(`{"id":9,"method":"fly"}`))
	if err == nil {
		t.Fatal("Expected an error")
	}
	if c.ID != 9 {
		t.Errorf("Expected id 9 for the error response, got %d", c.ID)
	}
}

func TestDecodeParams(t *testing.T) {
	var p JoinParams
	if err := DecodeParams(Call{ID: 1, Method: MethodJoin}, &p); err != nil {
		t.Errorf("Absent params should decode to zero value: %v", err)
	}
	if err := DecodeParams(Call{ID: 1, Method: MethodJoin, Params: json.RawMessage(`null`)}, &p); err != nil {
		t.Errorf("null params should decode to zero value: %v", err)
	}

	err := DecodeParams(Call{ID: 1, Method: MethodJoin, Params: json.RawMessage(`"x"`)}, &p)
	var perr *Error
	if !errors.As(err, &perr) || perr.Code != CodeInvalidParams {
		t.Errorf("Expected invalid_params, got %v", err)
	}
}

func TestEncodeResponse(t *testing.T) {
	frame, err := EncodeResponse(5, nil, &Error{Code: CodeRateLimited, Message: "slow down"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(frame, &got); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got["id"] != float64(5) {
		t.Errorf("Expected id 5, got %v", got["id"])
	}
	errObj, ok := got["error"].(map[string]any)
	if !ok || errObj["code"] != CodeRateLimited {
		t.Errorf("Expected rate_limited error, got %v", got["error"])
	}
}

func TestEncodePushOmitsEmptyData(t *testing.T) {
	frame, err := EncodePush(EventGameFinish, nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(frame) != `{"event":"onGameFinish"}` {
		t.Errorf("Unexpected frame %s", frame)
	}
}
