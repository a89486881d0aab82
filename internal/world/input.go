package world

import (
	"arena-server/internal/ident"

	"github.com/jakecoffman/cp"
)

// Key event types.
const (
	KeyDown = "down"
	KeyUp   = "up"
)

// KeyEvent is a press or release of a named key.
type KeyEvent struct {
	Type string `json:"type" msgpack:"type"`
	Key  string `json:"key" msgpack:"key"`
}

type keys uint8

const (
	keyUp keys = 1 << iota
	keyLeft
	keyDown
	keyRight
	keyFire
)

var keyNames = map[string]keys{
	"w":    keyUp,
	"a":    keyLeft,
	"s":    keyDown,
	"d":    keyRight,
	"fire": keyFire,
	"tap":  keyFire,
}

// direction turns the pressed movement keys into a unit vector. Screen y
// grows downward.
func (k keys) direction() cp.Vector {
	var v cp.Vector
	if k&keyUp != 0 {
		v.Y--
	}
	if k&keyDown != 0 {
		v.Y++
	}
	if k&keyLeft != 0 {
		v.X--
	}
	if k&keyRight != 0 {
		v.X++
	}
	if v.X == 0 && v.Y == 0 {
		return v
	}
	return v.Normalize()
}

// player binds a channel to the person it controls.
type player struct {
	channel string
	person  ident.ID
	keys    keys
	aim     cp.Vector
	aimed   bool
}
