// Package world is the authoritative arena simulation.
package world

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"arena-server/internal/hash"
	"arena-server/internal/ident"
	"arena-server/internal/logger"
	"arena-server/internal/physics"
	"arena-server/internal/schema"
	"arena-server/internal/signal"

	"github.com/jakecoffman/cp"
	"github.com/sirupsen/logrus"
)

// Respawn reports a person replaced after death. Channel is set when the
// person was controlled by a player.
type Respawn struct {
	Old     ident.ID
	New     ident.ID
	Channel string
}

// spot is a position handed out to an entity whose body is not in the
// engine yet.
type spot struct {
	pos    cp.Vector
	radius float64
}

// spawnTries bounds the search for a free spot before settling for any.
const spawnTries = 32

// World owns every entity collection and the physics engine. It is not safe
// for concurrent use: one goroutine drives Update and all input calls.
type World struct {
	opts   Options
	log    logrus.FieldLogger
	rng    *rand.Rand
	engine *physics.Engine
	armory *Armory
	arena  cp.BB

	persons *hash.Hash[schema.Person, *Person]
	weapons *hash.Hash[schema.Weapon, *Weapon]
	bullets *hash.Hash[schema.Bullet, *Bullet]
	items   *hash.Hash[schema.Item, *Item]
	walls   *hash.Hash[schema.Wall, *Wall]
	sounds  *hash.Hash[schema.Sound, *Sound]

	players map[string]*player
	prevDt  float64

	// scratch reused across ticks
	expired []*Bullet
	swept   []physics.Contact
	spent   map[ident.ID]struct{}
	taken   map[ident.ID]struct{}
	dead    []*Person
	claimed []spot

	OnRespawn signal.Signal[Respawn]
}

// New validates opts and builds the walls and initial items. A nil rng is
// seeded from the clock; a nil log discards output.
func New(opts Options, log logrus.FieldLogger, rng *rand.Rand) (*World, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	w := &World{
		opts:    opts,
		log:     log,
		rng:     rng,
		engine:  physics.New(),
		armory:  NewArmory(opts, rng),
		arena:   cp.BB{L: 0, B: 0, R: opts.Width, T: opts.Height},
		persons: hash.New[schema.Person, *Person](),
		weapons: hash.New[schema.Weapon, *Weapon](),
		bullets: hash.New[schema.Bullet, *Bullet](),
		items:   hash.New[schema.Item, *Item](),
		walls:   hash.New[schema.Wall, *Wall](),
		sounds:  hash.New[schema.Sound, *Sound](),
		players: make(map[string]*player),
		spent:   make(map[ident.ID]struct{}),
		taken:   make(map[ident.ID]struct{}),
	}
	w.wire()

	walls := make([]*Wall, len(opts.Walls))
	for i, r := range opts.Walls {
		if r.Width <= 0 || r.Height <= 0 {
			return nil, fmt.Errorf("%w: wall %d is %gx%g", ErrOptions, i, r.Width, r.Height)
		}
		walls[i] = &Wall{id: ident.New(), rect: r}
	}
	w.walls.Add(walls...)

	items := make([]*Item, opts.Items)
	for i := range items {
		items[i] = w.newItem()
	}
	w.items.Add(items...)
	return w, nil
}

// wire keeps physics bodies and dependent collections in step with the
// entity collections.
func (w *World) wire() {
	w.persons.OnAdd.On(func(ps []*Person) {
		arms := make([]*Weapon, 0, len(ps))
		for _, p := range ps {
			p.body = w.engine.AddCircle(physics.Tag{ID: p.id, Kind: physics.KindPerson}, p.pos, p.radius, physics.BodyOptions{})
			p.body.SetAngle(p.angle)
			if p.weapon != nil {
				arms = append(arms, p.weapon)
			}
		}
		w.claimed = w.claimed[:0]
		w.weapons.Add(arms...)
	})
	w.persons.OnDelete.On(func(ps []*Person) {
		arms := make([]*Weapon, 0, len(ps))
		for _, p := range ps {
			w.engine.Remove(p.body)
			if p.weapon != nil {
				arms = append(arms, p.weapon)
			}
		}
		w.weapons.Delete(arms...)
	})

	w.weapons.OnAdd.On(func(ws []*Weapon) {
		w.sounds.Add(weaponSounds(ws)...)
	})
	w.weapons.OnDelete.On(func(ws []*Weapon) {
		w.sounds.Delete(weaponSounds(ws)...)
	})

	w.bullets.OnAdd.On(func(bs []*Bullet) {
		for _, b := range bs {
			b.body = w.engine.AddCircle(physics.Tag{ID: b.id, Kind: physics.KindBullet}, b.pos, BulletRadius,
				physics.BodyOptions{Sensor: true, Mass: 0.1})
		}
	})
	w.bullets.OnDelete.On(func(bs []*Bullet) {
		for _, b := range bs {
			w.engine.Remove(b.body)
		}
	})

	w.items.OnAdd.On(func(is []*Item) {
		for _, it := range is {
			it.body = w.engine.AddCircle(physics.Tag{ID: it.id, Kind: physics.KindItem}, it.pos, ItemRadius,
				physics.BodyOptions{Static: true, Sensor: true})
		}
		w.claimed = w.claimed[:0]
	})
	w.items.OnDelete.On(func(is []*Item) {
		for _, it := range is {
			w.engine.Remove(it.body)
		}
	})

	w.walls.OnAdd.On(func(ws []*Wall) {
		for _, wl := range ws {
			r := wl.rect
			wl.body = w.engine.AddBox(physics.Tag{ID: wl.id, Kind: physics.KindWall}, cp.Vector{X: r.X, Y: r.Y}, r.Width, r.Height,
				physics.BodyOptions{Static: true})
		}
	})
}

func weaponSounds(ws []*Weapon) []*Sound {
	out := make([]*Sound, 0, len(ws))
	for _, wp := range ws {
		if wp.sound != nil {
			out = append(out, wp.sound)
		}
	}
	return out
}

// Options returns the configuration the world was built with.
func (w *World) Options() Options { return w.opts }

func (w *World) Persons() *hash.Hash[schema.Person, *Person] { return w.persons }
func (w *World) Weapons() *hash.Hash[schema.Weapon, *Weapon] { return w.weapons }
func (w *World) Bullets() *hash.Hash[schema.Bullet, *Bullet] { return w.bullets }
func (w *World) Items() *hash.Hash[schema.Item, *Item]       { return w.items }
func (w *World) Walls() *hash.Hash[schema.Wall, *Wall]       { return w.walls }
func (w *World) Sounds() *hash.Hash[schema.Sound, *Sound]    { return w.sounds }

// Join spawns a person for channel together with its bots and binds the
// channel to it. Joining twice returns the existing person.
func (w *World) Join(channel string) ident.ID {
	if pl, ok := w.players[channel]; ok {
		return pl.person
	}
	p := w.newPerson(ident.Zero, SpritePlayer, nil)
	w.persons.Add(p)

	bots := make([]*Person, w.opts.BotsPerPlayer)
	for i := range bots {
		bots[i] = w.newPerson(p.id, SpriteBot, &Wander{})
	}
	w.persons.Add(bots...)

	w.players[channel] = &player{channel: channel, person: p.id}
	w.log.WithFields(logrus.Fields{"channel": channel, "person": p.id.String()}).Info("player joined")
	return p.id
}

// Leave unbinds channel and removes its person and every person it owns.
// Unknown channels are ignored.
func (w *World) Leave(channel string) {
	pl, ok := w.players[channel]
	if !ok {
		return
	}
	delete(w.players, channel)

	ids := []ident.ID{pl.person}
	w.persons.Each(func(p *Person) {
		if p.owner == pl.person {
			ids = append(ids, p.id)
		}
	})
	w.persons.DeleteID(ids...)
	w.log.WithFields(logrus.Fields{"channel": channel, "person": pl.person.String()}).Info("player left")
}

// Key records a key press or release for channel. Unknown channels, keys
// and event types are ignored.
func (w *World) Key(channel string, ev KeyEvent) {
	pl, ok := w.players[channel]
	if !ok {
		return
	}
	k, ok := keyNames[ev.Key]
	if !ok {
		return
	}
	switch ev.Type {
	case KeyDown:
		pl.keys |= k
	case KeyUp:
		pl.keys &^= k
	}
}

// Rotate sets where channel's person aims, as an offset from the person.
// The last call before a tick wins.
func (w *World) Rotate(channel string, x, y float64) {
	pl, ok := w.players[channel]
	if !ok || !finite(x) || !finite(y) {
		return
	}
	pl.aim = cp.Vector{X: x, Y: y}
	pl.aimed = true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Person returns the person bound to channel.
func (w *World) Person(channel string) (*Person, bool) {
	pl, ok := w.players[channel]
	if !ok {
		return nil, false
	}
	return w.persons.Get(pl.person)
}

// Init is the payload pushed to channel when it connects.
func (w *World) Init(channel string) any {
	payload := InitPayload{Options: w.opts}
	if pl, ok := w.players[channel]; ok {
		payload.Me = pl.person
	}
	return payload
}

// State writes every collection's projection into dst, reusing its arrays.
func (w *World) State(dst *schema.State) {
	dst.Reset()
	dst.Sounds = w.sounds.AppendState(dst.Sounds)
	dst.Persons = w.persons.AppendState(dst.Persons)
	dst.Weapons = w.weapons.AppendState(dst.Weapons)
	dst.Bullets = w.bullets.AppendState(dst.Bullets)
	dst.Items = w.items.AppendState(dst.Items)
	dst.Walls = w.walls.AppendState(dst.Walls)
}

// Update advances the world by dt seconds.
func (w *World) Update(dt float64) {
	if dt <= 0 || !finite(dt) {
		return
	}
	correction := 1.0
	if w.prevDt > 0 {
		correction = dt / w.prevDt
	}
	w.prevDt = dt

	w.steer(dt)

	w.persons.Each(func(p *Person) {
		if p.behavior != nil {
			p.behavior.Update(p, dt, w.rng)
		}
		if p.weapon != nil {
			p.weapon.Update(dt)
		}
	})
	w.sounds.Each(func(s *Sound) { s.Update(dt) })

	w.persons.Each(func(p *Person) {
		if p.firing {
			w.fire(p)
		}
	})

	w.expired = w.expired[:0]
	w.swept = w.swept[:0]
	w.bullets.Each(func(b *Bullet) {
		from := b.pos
		alive := b.Advance(dt)
		if c, ok := w.sweep(b, from); ok {
			w.swept = append(w.swept, c)
			return
		}
		if !alive {
			w.expired = append(w.expired, b)
		}
	})
	w.bullets.Delete(w.expired...)

	contacts := w.engine.Step(dt, correction)
	w.persons.Each(func(p *Person) { p.settle() })

	w.swept = append(w.swept, contacts...)
	w.resolve(w.swept)
	w.respawn()
}

// sweep reports the first person or wall on the path a bullet just
// travelled, so fast bullets and long ticks cannot tunnel through them.
func (w *World) sweep(b *Bullet, from cp.Vector) (physics.Contact, bool) {
	hit, ok := w.engine.Sweep(from, b.pos, BulletRadius, b.owner, physics.KindPerson, physics.KindWall)
	if !ok {
		return physics.Contact{}, false
	}
	bullet := physics.Tag{ID: b.id, Kind: physics.KindBullet}
	if hit.Tag.Kind == physics.KindPerson {
		return physics.Contact{A: hit.Tag, B: bullet}, true
	}
	return physics.Contact{A: bullet, B: hit.Tag}, true
}

// steer applies player input: movement, facing and trigger.
func (w *World) steer(dt float64) {
	for _, pl := range w.players {
		p, ok := w.persons.Get(pl.person)
		if !ok {
			continue
		}
		if pl.aimed && (pl.aim.X != 0 || pl.aim.Y != 0) {
			p.Face(pl.aim.ToAngle())
		}
		p.Walk(pl.keys.direction(), dt)
		p.firing = pl.keys&keyFire != 0
	}
}

func (w *World) fire(p *Person) {
	if p.weapon == nil || !p.weapon.Ready() {
		return
	}
	if bullets := p.weapon.Fire(p.muzzle(), p.angle); len(bullets) > 0 {
		w.bullets.Add(bullets...)
	}
}

// resolve turns the contacts of one physics step into damage, pickups and
// removals. Every bullet and item is consumed at most once.
func (w *World) resolve(contacts []physics.Contact) {
	clear(w.spent)
	clear(w.taken)
	w.dead = w.dead[:0]
	var fresh []*Item

	for _, c := range contacts {
		switch {
		case c.A.Kind == physics.KindPerson && c.B.Kind == physics.KindBullet:
			if _, gone := w.spent[c.B.ID]; gone {
				continue
			}
			p, ok := w.persons.Get(c.A.ID)
			b, ok2 := w.bullets.Get(c.B.ID)
			if !ok || !ok2 || b.owner == p.id {
				continue
			}
			w.spent[b.id] = struct{}{}
			if p.TakeDamage(b.damage) {
				w.dead = append(w.dead, p)
			}

		case c.A.Kind == physics.KindBullet && c.B.Kind == physics.KindWall:
			if w.bullets.Has(c.A.ID) {
				w.spent[c.A.ID] = struct{}{}
			}

		case c.A.Kind == physics.KindPerson && c.B.Kind == physics.KindItem:
			if _, gone := w.taken[c.B.ID]; gone {
				continue
			}
			p, ok := w.persons.Get(c.A.ID)
			it, ok2 := w.items.Get(c.B.ID)
			if !ok || !ok2 || !p.Alive() {
				continue
			}
			w.taken[it.id] = struct{}{}
			w.take(p, it)
			fresh = append(fresh, w.newItem())
		}
	}

	if len(w.spent) > 0 {
		ids := make([]ident.ID, 0, len(w.spent))
		for id := range w.spent {
			ids = append(ids, id)
		}
		w.bullets.DeleteID(ids...)
	}
	if len(w.taken) > 0 {
		ids := make([]ident.ID, 0, len(w.taken))
		for id := range w.taken {
			ids = append(ids, id)
		}
		w.items.DeleteID(ids...)
		w.items.Add(fresh...)
	}
}

func (w *World) take(p *Person, it *Item) {
	replaced := w.armory.Take(p, it.variant, it.ammo)
	if replaced != nil {
		w.weapons.Delete(replaced)
		w.weapons.Add(p.weapon)
	}
	w.log.WithFields(logrus.Fields{"person": p.id.String(), "weapon": it.variant.String(), "ammo": p.Ammo()}).Debug("item taken")
}

// respawn replaces the persons killed this tick. Players are rebound to the
// replacement and bots follow their new owner.
func (w *World) respawn() {
	if len(w.dead) == 0 {
		return
	}
	replacements := make([]*Person, len(w.dead))
	for i, p := range w.dead {
		var behavior Behavior
		if p.behavior != nil {
			behavior = &Wander{}
		}
		replacements[i] = w.newPerson(p.owner, p.sprite, behavior)
	}
	w.persons.Delete(w.dead...)

	var events []Respawn
	for i, p := range w.dead {
		np := replacements[i]
		ev := Respawn{Old: p.id, New: np.id}
		for _, pl := range w.players {
			if pl.person == p.id {
				pl.person = np.id
				ev.Channel = pl.channel
			}
		}
		for _, q := range replacements {
			if q.owner == p.id {
				q.owner = np.id
			}
		}
		w.persons.Each(func(q *Person) {
			if q.owner == p.id {
				q.owner = np.id
			}
		})
		events = append(events, ev)
	}
	w.persons.Add(replacements...)

	for _, ev := range events {
		w.log.WithFields(logrus.Fields{"old": ev.Old.String(), "new": ev.New.String(), "channel": ev.Channel}).Debug("person respawned")
		w.OnRespawn.Emit(ev)
	}
}

func (w *World) newPerson(owner ident.ID, sprite uint8, behavior Behavior) *Person {
	id := ident.New()
	p := &Person{
		id:       id,
		owner:    owner,
		hp:       w.opts.PersonHP,
		maxHP:    w.opts.PersonHP,
		speed:    w.opts.PersonSpeed,
		radius:   w.opts.PersonRadius,
		sprite:   sprite,
		arena:    w.arena,
		angle:    w.rng.Float64()*2*math.Pi - math.Pi,
		behavior: behavior,
		weapon:   w.armory.Issue(Pistol, id, w.opts.SpawnAmmo),
	}
	p.pos = w.freeSpot(p.radius)
	return p
}

func (w *World) newItem() *Item {
	v := oneOf(w.rng, Pistol, Shotgun, Machinegun)
	return &Item{
		id:      ident.New(),
		variant: v,
		ammo:    pickupAmmo[v],
		pos:     w.freeSpot(ItemRadius),
	}
}

// freeSpot picks a random point at least radius away from every shape and
// every spot already claimed for a body not added yet, falling back to the
// last candidate when the arena is crowded. The spot is claimed until the
// next batch of persons or items is added.
func (w *World) freeSpot(radius float64) cp.Vector {
	margin := radius + 1
	var p cp.Vector
	for i := 0; i < spawnTries; i++ {
		p = pointIn(w.rng, w.arena, margin)
		if w.engine.Free(p, radius+2) && w.unclaimed(p, radius+2) {
			break
		}
	}
	w.claimed = append(w.claimed, spot{pos: p, radius: radius})
	return p
}

func (w *World) unclaimed(p cp.Vector, radius float64) bool {
	for _, s := range w.claimed {
		if p.Distance(s.pos) < radius+s.radius {
			return false
		}
	}
	return true
}
