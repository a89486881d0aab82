package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"arena-server/internal/ident"
	"arena-server/internal/schema"
)

var (
	// ErrUnknownResource is returned when a sprite, sound or tileset refers
	// to a resource that is not declared.
	ErrUnknownResource = errors.New("world: unknown resource")
	// ErrResourceName is returned for sound names that do not fit the wire.
	ErrResourceName = errors.New("world: resource name too long")
	// ErrOptions is returned for out-of-range settings.
	ErrOptions = errors.New("world: invalid options")
)

type Animation struct {
	Name   string  `json:"name"`
	Speed  float64 `json:"speed"`
	Frames []int   `json:"frames"`
}

type Sprite struct {
	Name       string      `json:"name"`
	Resource   string      `json:"resource"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Animations []Animation `json:"animations,omitempty"`
}

// WeaponInfo is the presentation entry for one weapon variant.
type WeaponInfo struct {
	Name  string `json:"name"`
	Sound string `json:"sound,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

type Tileset struct {
	Resource   string `json:"resource"`
	TileWidth  int    `json:"tileWidth"`
	TileHeight int    `json:"tileHeight"`
	Columns    int    `json:"columns"`
}

type Layer struct {
	Name   string `json:"name"`
	ZIndex int    `json:"zIndex"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Tiles  []int  `json:"tiles"`
}

// MapInfo is passed through to clients untouched.
type MapInfo struct {
	Tileset Tileset `json:"tileset"`
	Layers  []Layer `json:"layers"`
}

// Rect is an axis-aligned box given by its center and size.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Options is the immutable world configuration. It is sent to every client
// on connect.
type Options struct {
	FPS    int     `json:"fps"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Resources map[string]string `json:"resources"`
	Sprites   []Sprite          `json:"sprites"`
	Weapons   []WeaponInfo      `json:"weapons"`
	Map       MapInfo           `json:"map"`
	Walls     []Rect            `json:"walls"`

	PersonRadius  float64 `json:"personRadius"`
	PersonSpeed   float64 `json:"personSpeed"`
	PersonHP      int     `json:"personHp"`
	SpawnAmmo     int     `json:"spawnAmmo"`
	Items         int     `json:"items"`
	BotsPerPlayer int     `json:"botsPerPlayer"`
}

// Sprite table indexes.
const (
	SpritePlayer uint8 = iota
	SpriteBot
	SpriteBullet
	SpritePellet
	SpriteItem
)

// Person animations.
const (
	AnimationIdle uint8 = iota
	AnimationWalk
)

// DefaultOptions returns a playable 1366x768 arena.
func DefaultOptions() Options {
	const w, h, t = 1366.0, 768.0, 20.0
	return Options{
		FPS:    60,
		Width:  w,
		Height: h,
		Resources: map[string]string{
			"person":     "sprites/person.png",
			"bot":        "sprites/bot.png",
			"bullet":     "sprites/bullet.png",
			"pellet":     "sprites/pellet.png",
			"item":       "sprites/item.png",
			"tiles":      "tiles/arena.png",
			"pistol":     "sounds/pistol.mp3",
			"shotgun":    "sounds/shotgun.mp3",
			"machinegun": "sounds/machinegun.mp3",
		},
		Sprites: []Sprite{
			SpritePlayer: {Name: "player", Resource: "person", Width: 32, Height: 32, Animations: []Animation{
				{Name: "idle", Speed: 0, Frames: []int{0}},
				{Name: "walk", Speed: 0.1, Frames: []int{1, 2, 3, 2}},
			}},
			SpriteBot: {Name: "bot", Resource: "bot", Width: 32, Height: 32, Animations: []Animation{
				{Name: "idle", Speed: 0, Frames: []int{0}},
				{Name: "walk", Speed: 0.1, Frames: []int{1, 2, 3, 2}},
			}},
			SpriteBullet: {Name: "bullet", Resource: "bullet", Width: 6, Height: 6},
			SpritePellet: {Name: "pellet", Resource: "pellet", Width: 4, Height: 4},
			SpriteItem:   {Name: "item", Resource: "item", Width: 16, Height: 16},
		},
		Weapons: []WeaponInfo{
			None:       {Name: "none"},
			Pistol:     {Name: "pistol", Sound: "pistol"},
			Shotgun:    {Name: "shotgun", Sound: "shotgun"},
			Machinegun: {Name: "machinegun", Sound: "machinegun"},
		},
		Map: MapInfo{
			Tileset: Tileset{Resource: "tiles", TileWidth: 32, TileHeight: 32, Columns: 8},
		},
		Walls: []Rect{
			{X: w / 2, Y: t / 2, Width: w, Height: t},
			{X: w / 2, Y: h - t/2, Width: w, Height: t},
			{X: t / 2, Y: h / 2, Width: t, Height: h},
			{X: w - t/2, Y: h / 2, Width: t, Height: h},
			{X: w / 3, Y: h / 3, Width: 120, Height: 24},
			{X: 2 * w / 3, Y: 2 * h / 3, Width: 120, Height: 24},
			{X: w / 2, Y: h / 2, Width: 24, Height: 160},
		},
		PersonRadius:  10,
		PersonSpeed:   150,
		PersonHP:      5,
		SpawnAmmo:     30,
		Items:         5,
		BotsPerPlayer: 3,
	}
}

// LoadOptions overlays the JSON file at path onto DefaultOptions. An empty
// path returns the defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	if path == "" {
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read world options: %w", err)
	}
	if err := json.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse world options %s: %w", path, err)
	}
	return opts, nil
}

// Validate checks the settings and that every referenced resource is
// declared.
func (o *Options) Validate() error {
	if o.FPS <= 0 {
		return fmt.Errorf("%w: fps %d", ErrOptions, o.FPS)
	}
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("%w: size %gx%g", ErrOptions, o.Width, o.Height)
	}
	if o.PersonRadius <= 0 || o.PersonSpeed < 0 || o.PersonHP <= 0 {
		return fmt.Errorf("%w: person radius %g speed %g hp %d", ErrOptions, o.PersonRadius, o.PersonSpeed, o.PersonHP)
	}
	if o.Items < 0 || o.BotsPerPlayer < 0 || o.SpawnAmmo < 0 {
		return fmt.Errorf("%w: negative count", ErrOptions)
	}
	if len(o.Weapons) != int(variantCount) {
		return fmt.Errorf("%w: %d weapon entries, want %d", ErrOptions, len(o.Weapons), variantCount)
	}
	for _, s := range o.Sprites {
		if _, ok := o.Resources[s.Resource]; !ok {
			return fmt.Errorf("%w: sprite %q uses %q", ErrUnknownResource, s.Name, s.Resource)
		}
	}
	for _, info := range o.Weapons {
		if info.Sound == "" {
			continue
		}
		if _, ok := o.Resources[info.Sound]; !ok {
			return fmt.Errorf("%w: weapon %q sound %q", ErrUnknownResource, info.Name, info.Sound)
		}
		if len(info.Sound) > schema.ResourceSize {
			return fmt.Errorf("%w: %q exceeds %d bytes", ErrResourceName, info.Sound, schema.ResourceSize)
		}
	}
	if ts := o.Map.Tileset.Resource; ts != "" {
		if _, ok := o.Resources[ts]; !ok {
			return fmt.Errorf("%w: tileset %q", ErrUnknownResource, ts)
		}
	}
	return nil
}

// InitPayload is pushed once to every new connection.
type InitPayload struct {
	Options Options  `json:"options"`
	Me      ident.ID `json:"me"`
}
