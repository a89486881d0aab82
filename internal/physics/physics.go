// Package physics wraps a cp space with an explicit registry from shapes to
// the entities they belong to.
package physics

import (
	"math"
	"slices"

	"arena-server/internal/ident"

	"github.com/jakecoffman/cp"
)

// Kind is the collision category of a body.
type Kind uint8

const (
	KindPerson Kind = iota + 1
	KindBullet
	KindItem
	KindWall
)

func (k Kind) String() string {
	switch k {
	case KindPerson:
		return "person"
	case KindBullet:
		return "bullet"
	case KindItem:
		return "item"
	case KindWall:
		return "wall"
	}
	return "unknown"
}

// Tag identifies the entity owning a body.
type Tag struct {
	ID   ident.ID
	Kind Kind
}

// Contact is a begin-contact between two tagged bodies. A has the lower
// kind.
type Contact struct {
	A, B Tag
}

// Hit is the first body met along a swept path. Alpha is the fraction of
// the path travelled before touching it.
type Hit struct {
	Tag   Tag
	Point cp.Vector
	Alpha float64
}

// BodyOptions describes how a body takes part in the simulation.
type BodyOptions struct {
	Static bool
	Sensor bool
	Mass   float64
}

// Body is a handle to one body and its single shape.
type Body struct {
	body    *cp.Body
	shape   *cp.Shape
	tag     Tag
	removed bool
}

func (b *Body) Tag() Tag { return b.tag }

func (b *Body) Position() cp.Vector { return b.body.Position() }

func (b *Body) SetPosition(p cp.Vector) { b.body.SetPosition(p) }

func (b *Body) Angle() float64 { return b.body.Angle() }

func (b *Body) SetAngle(a float64) { b.body.SetAngle(a) }

func (b *Body) Velocity() cp.Vector { return b.body.Velocity() }

func (b *Body) SetVelocity(v cp.Vector) { b.body.SetVelocityVector(v) }

// Engine owns the cp space and the shape registry. Not safe for concurrent
// use.
type Engine struct {
	space    *cp.Space
	registry map[*cp.Shape]Tag
	contacts []Contact

	// TimeScale converts simulation seconds into engine time units.
	TimeScale float64
}

// New creates an engine without gravity that reports contacts for
// person/bullet, wall/bullet and person/item pairs.
func New() *Engine {
	space := cp.NewSpace()
	space.SetGravity(cp.Vector{})
	e := &Engine{
		space:     space,
		registry:  make(map[*cp.Shape]Tag),
		TimeScale: 1,
	}
	e.watch(KindPerson, KindBullet)
	e.watch(KindWall, KindBullet)
	e.watch(KindPerson, KindItem)
	return e
}

func (e *Engine) watch(a, b Kind) {
	h := e.space.NewCollisionHandler(cp.CollisionType(a), cp.CollisionType(b))
	h.BeginFunc = func(arb *cp.Arbiter, _ *cp.Space, _ interface{}) bool {
		sa, sb := arb.Shapes()
		ta, okA := e.registry[sa]
		tb, okB := e.registry[sb]
		if okA && okB {
			if ta.Kind > tb.Kind {
				ta, tb = tb, ta
			}
			e.contacts = append(e.contacts, Contact{A: ta, B: tb})
		}
		return true
	}
}

// AddCircle adds a circular body centered at pos.
func (e *Engine) AddCircle(tag Tag, pos cp.Vector, radius float64, opts BodyOptions) *Body {
	body := e.newBody(opts)
	body.SetPosition(pos)
	e.space.AddBody(body)
	return e.attach(tag, body, cp.NewCircle(body, radius, cp.Vector{}), opts)
}

// AddBox adds a static box centered at center.
func (e *Engine) AddBox(tag Tag, center cp.Vector, w, h float64, opts BodyOptions) *Body {
	body := e.newBody(opts)
	body.SetPosition(center)
	e.space.AddBody(body)
	return e.attach(tag, body, cp.NewBox(body, w, h, 0), opts)
}

func (e *Engine) newBody(opts BodyOptions) *cp.Body {
	if opts.Static {
		return cp.NewStaticBody()
	}
	mass := opts.Mass
	if mass <= 0 {
		mass = 1
	}
	// Infinite moment keeps bodies from spinning; orientation is set directly.
	return cp.NewBody(mass, cp.INFINITY)
}

func (e *Engine) attach(tag Tag, body *cp.Body, shape *cp.Shape, opts BodyOptions) *Body {
	shape.SetSensor(opts.Sensor)
	shape.SetElasticity(0)
	shape.SetFriction(0)
	shape.SetCollisionType(cp.CollisionType(tag.Kind))
	e.space.AddShape(shape)
	e.registry[shape] = tag
	return &Body{body: body, shape: shape, tag: tag}
}

// Remove takes b out of the space and the registry. Removing twice is a
// no-op. Must not be called during Step.
func (e *Engine) Remove(b *Body) {
	if b == nil || b.removed {
		return
	}
	b.removed = true
	delete(e.registry, b.shape)
	e.space.RemoveShape(b.shape)
	e.space.RemoveBody(b.body)
}

// Lookup returns the tag registered for a shape.
func (e *Engine) Lookup(shape *cp.Shape) (Tag, bool) {
	tag, ok := e.registry[shape]
	return tag, ok
}

// Len returns the number of registered bodies.
func (e *Engine) Len() int {
	return len(e.registry)
}

// Step advances the space by dt seconds. correction is the ratio of this
// tick's duration to the previous one; residual velocities of dynamic
// bodies are rescaled by it first so uneven ticks do not accumulate drift.
// The returned contacts are valid until the next Step.
func (e *Engine) Step(dt, correction float64) []Contact {
	e.contacts = e.contacts[:0]
	if dt <= 0 {
		return e.contacts
	}
	if correction > 0 && correction != 1 && !math.IsInf(correction, 0) {
		e.space.EachBody(func(body *cp.Body) {
			if body.GetType() == cp.BODY_DYNAMIC {
				body.SetVelocityVector(body.Velocity().Mult(correction))
			}
		})
	}
	e.space.Step(dt * e.TimeScale)
	return e.contacts
}

// Free reports whether no shape lies within radius of p.
func (e *Engine) Free(p cp.Vector, radius float64) bool {
	info := e.space.PointQueryNearest(p, radius, cp.SHAPE_FILTER_ALL)
	return info.Shape == nil
}

// Sweep moves a circle of radius from a to b and returns the nearest body
// of one of kinds that it touches. The body tagged skip is ignored. Static
// shapes come from the space index; dynamic circles are tested at their
// current position because the index only refreshes during Step. A
// zero-length sweep finds nothing; overlaps at rest are Step's job.
func (e *Engine) Sweep(a, b cp.Vector, radius float64, skip ident.ID, kinds ...Kind) (Hit, bool) {
	best := Hit{Alpha: math.Inf(1)}
	if a == b {
		return best, false
	}
	consider := func(tag Tag, point cp.Vector, alpha float64) {
		if tag.ID == skip || !slices.Contains(kinds, tag.Kind) || alpha >= best.Alpha {
			return
		}
		best = Hit{Tag: tag, Point: point, Alpha: alpha}
	}

	e.space.SegmentQuery(a, b, radius, cp.SHAPE_FILTER_ALL, func(shape *cp.Shape, point, _ cp.Vector, alpha float64, _ interface{}) {
		if shape.Body().GetType() != cp.BODY_STATIC {
			return
		}
		if tag, ok := e.registry[shape]; ok {
			consider(tag, point, alpha)
		}
	}, nil)

	for shape, tag := range e.registry {
		circle, ok := shape.Class.(*cp.Circle)
		if !ok || shape.Body().GetType() == cp.BODY_STATIC {
			continue
		}
		var info cp.SegmentQueryInfo
		cp.CircleSegmentQuery(shape, shape.Body().Position(), circle.Radius(), a, b, radius, &info)
		if info.Shape != nil {
			consider(tag, info.Point, info.Alpha)
		}
	}
	return best, !math.IsInf(best.Alpha, 1)
}
