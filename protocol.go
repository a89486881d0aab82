package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"arena-server/internal/ident"
	"arena-server/internal/world"

	"github.com/vmihailenco/msgpack/v5"
)

// Client -> Server message types
const (
	MsgKey    = "key"    // key press or release
	MsgRotate = "rotate" // aim offset from the player's person
)

// Server -> Client message types
const (
	MsgInit  = "init"  // world options and the player's person, once
	MsgMe    = "me"    // the player's person changed after a respawn
	MsgError = "error" // rejected input
)

var errUnknownControl = errors.New("unknown control message")

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string `json:"t" msgpack:"t"`
	Data any    `json:"d,omitempty" msgpack:"d,omitempty"`
}

// InEnvelope is used for incoming text messages; json.RawMessage avoids
// double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// BinaryEnvelope is the msgpack form of InEnvelope, sent by native clients
type BinaryEnvelope struct {
	T string             `msgpack:"t"`
	D msgpack.RawMessage `msgpack:"d"`
}

// RotateMsg is an aim offset relative to the player's person
type RotateMsg struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// MeMsg tells a player which person it controls now
type MeMsg struct {
	ID ident.ID `json:"id"`
}

// ErrorMsg is sent when input cannot be processed
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// controlEnvelope wraps a control push from the room in its typed envelope.
func controlEnvelope(v any) (Envelope, error) {
	switch m := v.(type) {
	case Envelope:
		return m, nil
	case world.InitPayload:
		return Envelope{T: MsgInit, Data: m}, nil
	case MeMsg:
		return Envelope{T: MsgMe, Data: m}, nil
	case ErrorMsg:
		return Envelope{T: MsgError, Data: m}, nil
	}
	return Envelope{}, fmt.Errorf("%w: %T", errUnknownControl, v)
}
