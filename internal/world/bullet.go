package world

import (
	"arena-server/internal/ident"
	"arena-server/internal/physics"
	"arena-server/internal/schema"

	"github.com/jakecoffman/cp"
)

// BulletRadius is the radius of every bullet's sensor.
const BulletRadius = 3

// Bullet flies along a fixed heading until its ttl runs out or it hits
// something.
type Bullet struct {
	id      ident.ID
	owner   ident.ID
	pos     cp.Vector
	heading float64
	speed   float64
	ttl     float64
	damage  int
	sprite  uint8
	body    *physics.Body
}

func newBullet(owner ident.ID, origin cp.Vector, heading float64, p pattern) *Bullet {
	return &Bullet{
		id:      ident.New(),
		owner:   owner,
		pos:     origin,
		heading: heading,
		speed:   p.speed,
		ttl:     p.ttl,
		damage:  p.damage,
		sprite:  p.sprite,
	}
}

func (b *Bullet) ID() ident.ID        { return b.id }
func (b *Bullet) Owner() ident.ID     { return b.owner }
func (b *Bullet) Position() cp.Vector { return b.pos }
func (b *Bullet) Heading() float64    { return b.heading }
func (b *Bullet) TTL() float64        { return b.ttl }
func (b *Bullet) Damage() int         { return b.damage }

// Advance moves the bullet dt seconds along its heading and burns ttl.
// A bullet never travels past the end of its ttl. It reports whether the
// bullet is still alive.
func (b *Bullet) Advance(dt float64) bool {
	b.pos = b.pos.Add(cp.ForAngle(b.heading).Mult(b.speed * min(dt, b.ttl)))
	if b.body != nil {
		b.body.SetPosition(b.pos)
	}
	b.ttl -= dt
	return b.ttl > 0
}

func (b *Bullet) State() schema.Bullet {
	return schema.Bullet{
		ID:     b.id,
		X:      schema.Coord(b.pos.X),
		Y:      schema.Coord(b.pos.Y),
		Angle:  float32(b.heading),
		Sprite: b.sprite,
	}
}
