package mirror

import (
	"arena-server/internal/geom"
	"arena-server/internal/ident"
	"arena-server/internal/schema"
)

// Interpolator blends two snapshots. It keeps scratch space between calls
// and is not safe for concurrent use.
type Interpolator struct {
	index map[ident.ID]int
}

func NewInterpolator() *Interpolator {
	return &Interpolator{index: make(map[ident.ID]int)}
}

// Ratio is how far t lies from older to newer, clamped to [0, 1].
func Ratio(older, newer *schema.Snapshot, t uint64) float64 {
	if newer.Time <= older.Time || t >= newer.Time {
		return 1
	}
	if t <= older.Time {
		return 0
	}
	return float64(t-older.Time) / float64(newer.Time-older.Time)
}

// Interpolate writes the state at server time t into dst. Records are
// matched by id. Positions move linearly and angles along the shorter arc;
// everything else comes from newer. Records missing from older are taken
// from newer unchanged, records missing from newer are dropped.
func (in *Interpolator) Interpolate(dst *schema.State, older, newer *schema.Snapshot, t uint64) {
	r := Ratio(older, newer, t)
	a, b := &older.State, &newer.State

	dst.Reset()
	dst.Sounds = blend(in.index, dst.Sounds, a.Sounds, b.Sounds, soundID, nil, r)
	dst.Persons = blend(in.index, dst.Persons, a.Persons, b.Persons, personID, mixPerson, r)
	dst.Weapons = blend(in.index, dst.Weapons, a.Weapons, b.Weapons, weaponID, mixWeapon, r)
	dst.Bullets = blend(in.index, dst.Bullets, a.Bullets, b.Bullets, bulletID, mixBullet, r)
	dst.Items = blend(in.index, dst.Items, a.Items, b.Items, itemID, nil, r)
	dst.Walls = blend(in.index, dst.Walls, a.Walls, b.Walls, wallID, nil, r)
	dst.Fill()
}

func blend[R any](index map[ident.ID]int, dst, older, newer []R, id func(*R) ident.ID, mix func(a, b *R, r float64) R, r float64) []R {
	if mix == nil || len(older) == 0 {
		return append(dst, newer...)
	}
	clear(index)
	for i := range older {
		index[id(&older[i])] = i
	}
	for i := range newer {
		n := &newer[i]
		if j, ok := index[id(n)]; ok {
			dst = append(dst, mix(&older[j], n, r))
			continue
		}
		dst = append(dst, *n)
	}
	return dst
}

func lerpCoord(a, b int64, r float64) int64 {
	return schema.Coord(geom.Lerp(float64(a), float64(b), r))
}

func lerpAngle(a, b float32, r float64) float32 {
	return float32(geom.LerpAngle(float64(a), float64(b), r))
}

func mixPerson(a, b *schema.Person, r float64) schema.Person {
	out := *b
	out.X = lerpCoord(a.X, b.X, r)
	out.Y = lerpCoord(a.Y, b.Y, r)
	out.Angle = lerpAngle(a.Angle, b.Angle, r)
	return out
}

func mixWeapon(a, b *schema.Weapon, r float64) schema.Weapon {
	out := *b
	out.Energy = float32(geom.Lerp(float64(a.Energy), float64(b.Energy), r))
	return out
}

func mixBullet(a, b *schema.Bullet, r float64) schema.Bullet {
	out := *b
	out.X = lerpCoord(a.X, b.X, r)
	out.Y = lerpCoord(a.Y, b.Y, r)
	out.Angle = lerpAngle(a.Angle, b.Angle, r)
	return out
}

func soundID(s *schema.Sound) ident.ID   { return s.ID }
func personID(p *schema.Person) ident.ID { return p.ID }
func weaponID(w *schema.Weapon) ident.ID { return w.ID }
func bulletID(b *schema.Bullet) ident.ID { return b.ID }
func itemID(i *schema.Item) ident.ID     { return i.ID }
func wallID(w *schema.Wall) ident.ID     { return w.ID }
