// Package ident generates the short ids carried by entities and snapshots.
package ident

import (
	"encoding/json"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Size is the wire width of an id.
const Size = 6

// ID is a fixed-width ASCII id. Being an array it is comparable, usable as a
// map key, and copied without allocation.
type ID [Size]byte

// Zero is the unset id.
var Zero ID

// New returns a random id from the nanoid url-safe alphabet.
func New() ID {
	var id ID
	copy(id[:], gonanoid.Must(Size))
	return id
}

// Parse converts s to an ID. s must be exactly Size bytes.
func Parse(s string) (ID, error) {
	var id ID
	if len(s) != Size {
		return id, fmt.Errorf("ident: %q is %d bytes, want %d", s, len(s), Size)
	}
	copy(id[:], s)
	return id, nil
}

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool {
	return id == Zero
}

func (id ID) String() string {
	if id.IsZero() {
		return ""
	}
	return string(id[:])
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*id = Zero
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
