package world

import (
	"math"
	"math/rand/v2"

	"arena-server/internal/geom"

	"github.com/jakecoffman/cp"
)

// Behavior is the periodic hook run for a person every tick.
type Behavior interface {
	Update(p *Person, dt float64, rng *rand.Rand)
}

// Wander walks in a random direction, aims somewhere random and pulls the
// trigger now and then, choosing again every one to three seconds.
type Wander struct {
	wait   float64
	dir    cp.Vector
	aim    float64
	firing bool
}

// turnRate is how fast a wandering person turns, in radians per second.
const turnRate = 4.0

func (w *Wander) Update(p *Person, dt float64, rng *rand.Rand) {
	w.wait -= dt
	if w.wait <= 0 {
		w.wait = 1 + 2*rng.Float64()
		if dice(rng, 4) == 0 {
			w.dir = cp.Vector{}
		} else {
			w.dir = cp.ForAngle(rng.Float64() * 2 * math.Pi)
		}
		w.aim = rng.Float64()*2*math.Pi - math.Pi
		w.firing = dice(rng, 2) == 0
	}

	diff := geom.NormalizeAngle(w.aim - p.angle)
	step := turnRate * dt
	if math.Abs(diff) <= step {
		p.Face(w.aim)
	} else {
		p.Face(p.angle + math.Copysign(step, diff))
	}
	p.Walk(w.dir, dt)
	p.SetFiring(w.firing)
}
