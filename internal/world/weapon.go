package world

import (
	"math/rand/v2"

	"arena-server/internal/geom"
	"arena-server/internal/ident"
	"arena-server/internal/schema"

	"github.com/jakecoffman/cp"
)

// Variant selects a weapon's firing pattern.
type Variant uint8

const (
	None Variant = iota
	Pistol
	Shotgun
	Machinegun

	variantCount
)

func (v Variant) String() string {
	switch v {
	case None:
		return "none"
	case Pistol:
		return "pistol"
	case Shotgun:
		return "shotgun"
	case Machinegun:
		return "machinegun"
	}
	return "unknown"
}

// Valid reports whether v names a known variant.
func (v Variant) Valid() bool { return v < variantCount }

// pattern is the fixed firing table entry of a variant.
type pattern struct {
	cooldown float64
	pellets  int
	cost     int
	scatter  float64
	speed    float64
	ttl      float64
	damage   int
	sprite   uint8

	volume   float64
	hearing  float64
	duration float64
}

var arsenal = [variantCount]pattern{
	None: {},
	Pistol: {
		cooldown: 0.5, pellets: 1, cost: 1, scatter: 0.05,
		speed: 400, ttl: 1, damage: 1, sprite: SpriteBullet,
		volume: 0.5, hearing: 400, duration: 0.3,
	},
	Shotgun: {
		cooldown: 1, pellets: 6, cost: 1, scatter: 0.3,
		speed: 400, ttl: 0.75, damage: 1, sprite: SpritePellet,
		volume: 0.8, hearing: 500, duration: 0.5,
	},
	Machinegun: {
		cooldown: 2, pellets: 1, cost: 1, scatter: 0.02,
		speed: 600, ttl: 2, damage: 3, sprite: SpriteBullet,
		volume: 1, hearing: 700, duration: 0.6,
	},
}

// Cooldown returns the seconds a variant needs to recover full energy.
func (v Variant) Cooldown() float64 { return arsenal[v].cooldown }

// Pellets returns the number of bullets one shot spawns.
func (v Variant) Pellets() int { return arsenal[v].pellets }

// Scatter returns the maximum angular offset of a bullet from the heading.
func (v Variant) Scatter() float64 { return arsenal[v].scatter }

// Arm is the capability set every weapon variant provides.
type Arm interface {
	Fire(origin cp.Vector, heading float64) []*Bullet
	Update(dt float64)
	State() schema.Weapon
}

// Weapon is the tagged union over all variants. Behavior is looked up in
// the arsenal by variant.
type Weapon struct {
	id      ident.ID
	owner   ident.ID
	variant Variant
	energy  float64
	ammo    int
	sound   *Sound
	rng     *rand.Rand
}

var _ Arm = (*Weapon)(nil)

func (w *Weapon) ID() ident.ID     { return w.id }
func (w *Weapon) Owner() ident.ID  { return w.owner }
func (w *Weapon) Variant() Variant { return w.variant }
func (w *Weapon) Energy() float64  { return w.energy }
func (w *Weapon) Ammo() int        { return w.ammo }
func (w *Weapon) Sound() *Sound    { return w.sound }

// Ready reports whether the next Fire spawns bullets.
func (w *Weapon) Ready() bool {
	return w.variant != None && w.energy >= 1 && w.ammo >= arsenal[w.variant].cost
}

// Fire spawns the variant's bullets from origin, spends ammo, drains energy
// and plays the fire sound. It does nothing unless the weapon is Ready.
func (w *Weapon) Fire(origin cp.Vector, heading float64) []*Bullet {
	if !w.Ready() {
		return nil
	}
	p := arsenal[w.variant]
	bullets := make([]*Bullet, p.pellets)
	for i := range bullets {
		bullets[i] = newBullet(w.owner, origin, geom.NormalizeAngle(heading+w.spread(i, p)), p)
	}
	w.ammo -= p.cost
	w.energy = 0
	if w.sound != nil {
		w.sound.Play(origin)
	}
	return bullets
}

// spread draws the offset of pellet i. Multi-pellet shots split the scatter
// range into equal slices and jitter within each, so angles never repeat.
func (w *Weapon) spread(i int, p pattern) float64 {
	if p.pellets == 1 {
		return (w.rng.Float64()*2 - 1) * p.scatter
	}
	slice := 2 * p.scatter / float64(p.pellets)
	return -p.scatter + (float64(i)+w.rng.Float64())*slice
}

// Update recovers energy at 1/cooldown per second.
func (w *Weapon) Update(dt float64) {
	if w.variant == None || w.energy >= 1 {
		return
	}
	w.energy = geom.Clamp(w.energy+dt/arsenal[w.variant].cooldown, 0, 1)
}

func (w *Weapon) State() schema.Weapon {
	return schema.Weapon{
		ID:      w.id,
		Owner:   w.owner,
		Ammo:    uint64(w.ammo),
		Variant: uint8(w.variant),
		Energy:  float32(w.energy),
	}
}

// Armory issues weapons with the sound resources configured for the world.
type Armory struct {
	sounds [variantCount]string
	rng    *rand.Rand
}

func NewArmory(opts Options, rng *rand.Rand) *Armory {
	a := &Armory{rng: rng}
	for v := range a.sounds {
		if v < len(opts.Weapons) {
			a.sounds[v] = opts.Weapons[v].Sound
		}
	}
	return a
}

// Issue creates a fully charged weapon for owner.
func (a *Armory) Issue(v Variant, owner ident.ID, ammo int) *Weapon {
	w := &Weapon{
		id:      ident.New(),
		owner:   owner,
		variant: v,
		energy:  1,
		ammo:    max(ammo, 0),
		rng:     a.rng,
	}
	if res := a.sounds[v]; res != "" && v != None {
		p := arsenal[v]
		w.sound = NewSound(res, p.volume, p.hearing, p.duration)
	}
	return w
}

// Take applies a pickup of ammo rounds for variant v to p. Picking up the
// variant p already holds adds to its reserve; any other variant replaces
// the held weapon and its remaining ammo. The replaced weapon is returned,
// nil when the reserve was topped up.
func (a *Armory) Take(p *Person, v Variant, ammo int) (replaced *Weapon) {
	if !v.Valid() || v == None {
		return nil
	}
	if p.weapon != nil && p.weapon.variant == v {
		p.weapon.ammo += max(ammo, 0)
		return nil
	}
	replaced = p.weapon
	p.weapon = a.Issue(v, p.id, ammo)
	return replaced
}
