package world

import (
	"arena-server/internal/geom"
	"arena-server/internal/ident"
	"arena-server/internal/physics"
	"arena-server/internal/schema"

	"github.com/jakecoffman/cp"
)

// Person is a player avatar or a bot.
type Person struct {
	id     ident.ID
	owner  ident.ID
	hp     int
	maxHP  int
	speed  float64
	radius float64

	sprite    uint8
	animation uint8

	pos    cp.Vector
	angle  float64
	firing bool
	arena  cp.BB

	weapon   *Weapon
	behavior Behavior
	body     *physics.Body
}

func (p *Person) ID() ident.ID { return p.id }

// Owner is the person that spawned this one; zero for players.
func (p *Person) Owner() ident.ID { return p.owner }

func (p *Person) HP() int { return p.hp }

func (p *Person) Alive() bool { return p.hp > 0 }

func (p *Person) Position() cp.Vector { return p.pos }

func (p *Person) Angle() float64 { return p.angle }

func (p *Person) Weapon() *Weapon { return p.weapon }

// Ammo is the reserve of the held weapon.
func (p *Person) Ammo() int {
	if p.weapon == nil {
		return 0
	}
	return p.weapon.ammo
}

// TakeDamage lowers hp, never below zero. Returns true if this hit killed
// the person.
func (p *Person) TakeDamage(amount int) bool {
	if p.hp <= 0 || amount <= 0 {
		return false
	}
	p.hp -= amount
	if p.hp < 0 {
		p.hp = 0
	}
	return p.hp == 0
}

// Walk moves the person dt seconds along dir, which must be a unit vector
// or zero, keeping it inside the arena.
func (p *Person) Walk(dir cp.Vector, dt float64) {
	if dir.X == 0 && dir.Y == 0 {
		p.animation = AnimationIdle
		return
	}
	p.animation = AnimationWalk
	next := p.pos.Add(dir.Mult(p.speed * dt))
	next.X = geom.Clamp(next.X, p.arena.L+p.radius, p.arena.R-p.radius)
	next.Y = geom.Clamp(next.Y, p.arena.B+p.radius, p.arena.T-p.radius)
	p.setPosition(next)
}

// Face turns the person toward angle.
func (p *Person) Face(angle float64) {
	p.angle = geom.NormalizeAngle(angle)
	if p.body != nil {
		p.body.SetAngle(p.angle)
	}
}

// SetFiring asserts or releases the trigger for the next tick.
func (p *Person) SetFiring(on bool) { p.firing = on }

func (p *Person) setPosition(v cp.Vector) {
	p.pos = v
	if p.body != nil {
		p.body.SetPosition(v)
	}
}

// settle reads back the position the physics step resolved and drops any
// velocity picked up from contacts. Persons are moved only by input.
func (p *Person) settle() {
	if p.body == nil {
		return
	}
	p.pos = p.body.Position()
	p.body.SetVelocity(cp.Vector{})
}

// muzzle is where bullets leave the person.
func (p *Person) muzzle() cp.Vector {
	return p.pos.Add(cp.ForAngle(p.angle).Mult(p.radius + 5))
}

func (p *Person) State() schema.Person {
	return schema.Person{
		ID:        p.id,
		Owner:     p.owner,
		X:         schema.Coord(p.pos.X),
		Y:         schema.Coord(p.pos.Y),
		Angle:     float32(p.angle),
		HP:        int64(p.hp),
		Sprite:    p.sprite,
		Animation: p.animation,
	}
}
