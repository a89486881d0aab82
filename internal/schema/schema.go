// Package schema defines the snapshot wire records and their fixed binary
// layout.
package schema

import (
	"bytes"
	"encoding/json"
	"math"

	"arena-server/internal/ident"
)

// Kind tags an entity-kind array on the wire. Arrays appear in tag order.
type Kind uint8

const (
	KindSounds Kind = iota
	KindPersons
	KindWeapons
	KindBullets
	KindItems
	KindWalls

	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindSounds:
		return "sounds"
	case KindPersons:
		return "persons"
	case KindWeapons:
		return "weapons"
	case KindBullets:
		return "bullets"
	case KindItems:
		return "items"
	case KindWalls:
		return "walls"
	}
	return "unknown"
}

// Record sizes in bytes.
const (
	SoundSize  = ident.Size + ResourceSize + 4 + 8 + 8 + 8 + 1
	PersonSize = 2*ident.Size + 8 + 8 + 4 + 8 + 1 + 1
	WeaponSize = 2*ident.Size + 8 + 1 + 4
	BulletSize = ident.Size + 8 + 8 + 4 + 1
	ItemSize   = ident.Size + 8 + 8 + 1
	WallSize   = ident.Size + 8 + 8 + 8 + 8

	// HeaderSize covers the snapshot id and timestamp.
	HeaderSize = ident.Size + 8
	// ArrayHeaderSize covers a kind tag and its record count.
	ArrayHeaderSize = 1 + 2
	// MaxRecords is the largest count one array can carry.
	MaxRecords = math.MaxUint16
)

// ResourceSize is the fixed width of a sound resource name.
const ResourceSize = 10

// Resource is a zero-padded sound resource name.
type Resource [ResourceSize]byte

// ResourceName pads s into a Resource. Names longer than ResourceSize are
// cut; callers validate names at setup.
func ResourceName(s string) Resource {
	var r Resource
	copy(r[:], s)
	return r
}

func (r Resource) String() string {
	return string(bytes.TrimRight(r[:], "\x00"))
}

func (r Resource) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// Coord truncates a world coordinate for the wire.
func Coord(v float64) int64 {
	return int64(math.Floor(v))
}

type Sound struct {
	ID       ident.ID `json:"id"`
	Resource Resource `json:"resource"`
	Volume   float32  `json:"volume"`
	Range    uint64   `json:"range"`
	X        int64    `json:"x"`
	Y        int64    `json:"y"`
	Played   bool     `json:"isPlayed"`
}

type Person struct {
	ID        ident.ID `json:"id"`
	Owner     ident.ID `json:"owner"`
	X         int64    `json:"x"`
	Y         int64    `json:"y"`
	Angle     float32  `json:"angle"`
	HP        int64    `json:"hp"`
	Sprite    uint8    `json:"sprite"`
	Animation uint8    `json:"animation"`
}

type Weapon struct {
	ID      ident.ID `json:"id"`
	Owner   ident.ID `json:"owner"`
	Ammo    uint64   `json:"bullets"`
	Variant uint8    `json:"type"`
	Energy  float32  `json:"energy"`
}

type Bullet struct {
	ID     ident.ID `json:"id"`
	X      int64    `json:"x"`
	Y      int64    `json:"y"`
	Angle  float32  `json:"angle"`
	Sprite uint8    `json:"sprite"`
}

type Item struct {
	ID      ident.ID `json:"id"`
	X       int64    `json:"x"`
	Y       int64    `json:"y"`
	Variant uint8    `json:"type"`
}

type Wall struct {
	ID     ident.ID `json:"id"`
	X      int64    `json:"x"`
	Y      int64    `json:"y"`
	Width  int64    `json:"width"`
	Height int64    `json:"height"`
}

// State is the fixed ordered set of entity-kind arrays.
type State struct {
	Sounds  []Sound  `json:"sounds"`
	Persons []Person `json:"persons"`
	Weapons []Weapon `json:"weapons"`
	Bullets []Bullet `json:"bullets"`
	Items   []Item   `json:"items"`
	Walls   []Wall   `json:"walls"`
}

// Reset truncates every array, keeping capacity.
func (s *State) Reset() {
	s.Sounds = s.Sounds[:0]
	s.Persons = s.Persons[:0]
	s.Weapons = s.Weapons[:0]
	s.Bullets = s.Bullets[:0]
	s.Items = s.Items[:0]
	s.Walls = s.Walls[:0]
}

// Fill replaces nil arrays with empty ones so readers never see a missing
// kind.
func (s *State) Fill() {
	if s.Sounds == nil {
		s.Sounds = []Sound{}
	}
	if s.Persons == nil {
		s.Persons = []Person{}
	}
	if s.Weapons == nil {
		s.Weapons = []Weapon{}
	}
	if s.Bullets == nil {
		s.Bullets = []Bullet{}
	}
	if s.Items == nil {
		s.Items = []Item{}
	}
	if s.Walls == nil {
		s.Walls = []Wall{}
	}
}

// Len returns the total record count.
func (s *State) Len() int {
	return len(s.Sounds) + len(s.Persons) + len(s.Weapons) + len(s.Bullets) + len(s.Items) + len(s.Walls)
}

// Snapshot is one timestamped capture of the world.
type Snapshot struct {
	ID    ident.ID `json:"id"`
	Time  uint64   `json:"time"`
	State State    `json:"state"`
}

// NewSnapshotID returns a fresh snapshot id.
func NewSnapshotID() ident.ID {
	return ident.New()
}
