package world

import (
	"arena-server/internal/ident"
	"arena-server/internal/schema"

	"github.com/jakecoffman/cp"
)

// Sound is a positional audio trigger. It plays for Duration seconds after
// Play and can be restarted at any time.
type Sound struct {
	id       ident.ID
	resource schema.Resource

	Volume   float64
	Range    float64
	Duration float64

	pos     cp.Vector
	playing bool
	elapsed float64
}

func NewSound(resource string, volume, rng, duration float64) *Sound {
	return &Sound{
		id:       ident.New(),
		resource: schema.ResourceName(resource),
		Volume:   volume,
		Range:    rng,
		Duration: duration,
	}
}

func (s *Sound) ID() ident.ID { return s.id }

// Play (re)starts the sound at pos.
func (s *Sound) Play(pos cp.Vector) {
	s.pos = pos
	s.playing = true
	s.elapsed = 0
}

func (s *Sound) Stop() {
	s.playing = false
	s.elapsed = 0
}

func (s *Sound) Playing() bool { return s.playing }

// Update advances the play timer and stops the sound once it has run for
// its duration.
func (s *Sound) Update(dt float64) {
	if !s.playing {
		return
	}
	s.elapsed += dt
	if s.elapsed >= s.Duration {
		s.Stop()
	}
}

func (s *Sound) State() schema.Sound {
	return schema.Sound{
		ID:       s.id,
		Resource: s.resource,
		Volume:   float32(s.Volume),
		Range:    uint64(s.Range),
		X:        schema.Coord(s.pos.X),
		Y:        schema.Coord(s.pos.Y),
		Played:   s.playing,
	}
}
