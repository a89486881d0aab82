package main

import (
	"errors"
	"testing"

	"arena-server/internal/room"
	"arena-server/internal/world"

	"github.com/gorilla/websocket"
)

func TestControlEnvelope(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{world.InitPayload{}, MsgInit},
		{MeMsg{}, MsgMe},
		{ErrorMsg{Msg: "x"}, MsgError},
		{Envelope{T: "custom"}, "custom"},
	}
	for _, tt := range tests {
		env, err := controlEnvelope(tt.in)
		if err != nil {
			t.Errorf("%T: %v", tt.in, err)
			continue
		}
		if env.T != tt.want {
			t.Errorf("%T: type %q, want %q", tt.in, env.T, tt.want)
		}
	}
	if _, err := controlEnvelope(42); !errors.Is(err, errUnknownControl) {
		t.Errorf("expected errUnknownControl, got %v", err)
	}
}

func TestReadReason(t *testing.T) {
	if readReason(errors.New("i/o timeout")) != room.ReasonDisconnected {
		t.Error("plain errors are lost peers")
	}
	normal := &websocket.CloseError{Code: websocket.CloseNormalClosure}
	if readReason(normal) != room.ReasonClosed {
		t.Error("an orderly close is not a lost peer")
	}
}
