package physics

import (
	"testing"

	"arena-server/internal/ident"

	"github.com/jakecoffman/cp"
)

func tag(k Kind) Tag {
	return Tag{ID: ident.New(), Kind: k}
}

func TestBulletHitsPerson(t *testing.T) {
	e := New()
	person := tag(KindPerson)
	bullet := tag(KindBullet)
	e.AddCircle(person, cp.Vector{X: 100, Y: 100}, 10, BodyOptions{})
	e.AddCircle(bullet, cp.Vector{X: 105, Y: 100}, 3, BodyOptions{Sensor: true})

	contacts := e.Step(1.0/60, 1)
	if len(contacts) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(contacts))
	}
	if contacts[0].A != person || contacts[0].B != bullet {
		t.Errorf("unexpected contact order %+v", contacts[0])
	}
}

func TestWallStopsBullet(t *testing.T) {
	e := New()
	wall := tag(KindWall)
	bullet := tag(KindBullet)
	e.AddBox(wall, cp.Vector{X: 50, Y: 50}, 20, 20, BodyOptions{Static: true})
	e.AddCircle(bullet, cp.Vector{X: 50, Y: 50}, 3, BodyOptions{Sensor: true})

	contacts := e.Step(1.0/60, 1)
	if len(contacts) != 1 || contacts[0].A != bullet || contacts[0].B.Kind != KindWall {
		t.Errorf("expected one wall/bullet contact, got %+v", contacts)
	}
}

func TestPersonTakesItem(t *testing.T) {
	e := New()
	e.AddCircle(tag(KindItem), cp.Vector{X: 10, Y: 10}, 8, BodyOptions{Static: true, Sensor: true})
	e.AddCircle(tag(KindPerson), cp.Vector{X: 12, Y: 10}, 10, BodyOptions{})

	contacts := e.Step(1.0/60, 1)
	if len(contacts) != 1 || contacts[0].A.Kind != KindPerson || contacts[0].B.Kind != KindItem {
		t.Errorf("expected one person/item contact, got %+v", contacts)
	}
}

func TestNoContactWhenApart(t *testing.T) {
	e := New()
	e.AddCircle(tag(KindPerson), cp.Vector{X: 0, Y: 0}, 10, BodyOptions{})
	e.AddCircle(tag(KindBullet), cp.Vector{X: 100, Y: 0}, 3, BodyOptions{Sensor: true})
	if contacts := e.Step(1.0/60, 1); len(contacts) != 0 {
		t.Errorf("expected no contacts, got %+v", contacts)
	}
}

func TestWallPushesPersonOut(t *testing.T) {
	e := New()
	e.AddBox(tag(KindWall), cp.Vector{X: 0, Y: 0}, 100, 20, BodyOptions{Static: true})
	p := e.AddCircle(tag(KindPerson), cp.Vector{X: 0, Y: 15}, 10, BodyOptions{})

	for i := 0; i < 30; i++ {
		e.Step(1.0/60, 1)
		p.SetVelocity(cp.Vector{})
	}
	if y := p.Position().Y; y < 19 {
		t.Errorf("person should be pushed clear of the wall, y=%f", y)
	}
}

func TestRemove(t *testing.T) {
	e := New()
	b := e.AddCircle(tag(KindBullet), cp.Vector{}, 3, BodyOptions{Sensor: true})
	if e.Len() != 1 {
		t.Fatalf("expected 1 body, got %d", e.Len())
	}
	e.Remove(b)
	e.Remove(b)
	if e.Len() != 0 {
		t.Errorf("expected empty registry, got %d", e.Len())
	}
	if !e.Free(cp.Vector{}, 5) {
		t.Error("removed body should not occupy space")
	}
}

func TestFree(t *testing.T) {
	e := New()
	e.AddBox(tag(KindWall), cp.Vector{X: 50, Y: 50}, 20, 20, BodyOptions{Static: true})
	if e.Free(cp.Vector{X: 50, Y: 50}, 1) {
		t.Error("point inside wall should not be free")
	}
	if !e.Free(cp.Vector{X: 200, Y: 200}, 10) {
		t.Error("far point should be free")
	}
}

func TestCorrectionScalesVelocity(t *testing.T) {
	e := New()
	b := e.AddCircle(tag(KindPerson), cp.Vector{}, 10, BodyOptions{})
	b.SetVelocity(cp.Vector{X: 60})
	e.Step(1.0/60, 0.5)
	if v := b.Velocity().X; v < 29.9 || v > 30.1 {
		t.Errorf("expected velocity ~30 after correction, got %f", v)
	}
	if x := b.Position().X; x < 0.49 || x > 0.51 {
		t.Errorf("expected x ~0.5, got %f", x)
	}
}

func TestSweepFindsNearestWall(t *testing.T) {
	e := New()
	near := tag(KindWall)
	e.AddBox(tag(KindWall), cp.Vector{X: 200, Y: 0}, 20, 100, BodyOptions{Static: true})
	e.AddBox(near, cp.Vector{X: 100, Y: 0}, 20, 100, BodyOptions{Static: true})

	hit, ok := e.Sweep(cp.Vector{}, cp.Vector{X: 300, Y: 0}, 3, ident.Zero, KindPerson, KindWall)
	if !ok {
		t.Fatal("sweep through two walls found nothing")
	}
	if hit.Tag != near {
		t.Errorf("expected the nearer wall, got %+v", hit.Tag)
	}
	// the wall's face is at x=90, the swept circle touches it 3 earlier
	if hit.Alpha < 0.28 || hit.Alpha > 0.30 {
		t.Errorf("unexpected alpha %f", hit.Alpha)
	}
}

func TestSweepSeesMovedPerson(t *testing.T) {
	e := New()
	person := tag(KindPerson)
	b := e.AddCircle(person, cp.Vector{X: 500, Y: 500}, 10, BodyOptions{})
	e.Step(1.0/60, 1)
	b.SetPosition(cp.Vector{X: 50, Y: 0})

	hit, ok := e.Sweep(cp.Vector{}, cp.Vector{X: 100, Y: 0}, 3, ident.Zero, KindPerson, KindWall)
	if !ok || hit.Tag != person {
		t.Fatalf("expected to hit the person at its new position, got %+v %v", hit, ok)
	}
	if _, ok := e.Sweep(cp.Vector{X: 400, Y: 500}, cp.Vector{X: 600, Y: 500}, 3, ident.Zero, KindPerson); ok {
		t.Error("the old position should be empty")
	}
}

func TestSweepFilters(t *testing.T) {
	e := New()
	owner := tag(KindPerson)
	e.AddCircle(owner, cp.Vector{X: 50, Y: 0}, 10, BodyOptions{})
	e.AddCircle(tag(KindItem), cp.Vector{X: 80, Y: 0}, 8, BodyOptions{Static: true, Sensor: true})
	e.AddCircle(tag(KindBullet), cp.Vector{X: 90, Y: 0}, 3, BodyOptions{Sensor: true})

	if hit, ok := e.Sweep(cp.Vector{}, cp.Vector{X: 100, Y: 0}, 3, owner.ID, KindPerson, KindWall); ok {
		t.Errorf("skipped and unlisted kinds should be ignored, got %+v", hit)
	}
	if _, ok := e.Sweep(cp.Vector{}, cp.Vector{X: 100, Y: 0}, 3, ident.Zero, KindPerson, KindWall); !ok {
		t.Error("expected to hit the person when not skipped")
	}
}
