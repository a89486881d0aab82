package world

import (
	"testing"

	"arena-server/internal/ident"

	"github.com/jakecoffman/cp"
	"pgregory.net/rapid"
)

func TestBulletAdvance(t *testing.T) {
	b := newBullet(ident.New(), cp.Vector{X: 100, Y: 100}, 0, arsenal[Pistol])
	if !b.Advance(0.1) {
		t.Fatal("bullet should still be alive")
	}
	if x := b.Position().X; x < 139.9 || x > 140.1 {
		t.Errorf("expected x ~140, got %f", x)
	}
	if ttl := b.TTL(); ttl >= arsenal[Pistol].ttl {
		t.Errorf("ttl should decrease, got %f", ttl)
	}
}

func TestBulletExpiresOnceTTLCrossesZero(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := newBullet(ident.New(), cp.Vector{}, 0, arsenal[Shotgun])
		ttl := b.TTL()
		total := 0.0
		for {
			dt := rapid.Float64Range(0.001, 0.2).Draw(t, "dt")
			before := total
			total += dt
			if !b.Advance(dt) {
				if total < ttl-1e-9 {
					t.Fatalf("expired after %f of %f", total, ttl)
				}
				if before >= ttl+1e-9 {
					t.Fatalf("should have expired one tick earlier: %f >= %f", before, ttl)
				}
				return
			}
			if total > ttl+1e-9 {
				t.Fatalf("alive after %f of %f", total, ttl)
			}
		}
	})
}

func TestSoundStopsAfterDuration(t *testing.T) {
	s := NewSound("pistol", 1, 100, 0.3)
	s.Play(cp.Vector{X: 5, Y: 6})
	if !s.State().Played {
		t.Fatal("sound should be playing")
	}
	s.Update(0.2)
	if !s.Playing() {
		t.Error("sound stopped early")
	}
	s.Update(0.2)
	if s.Playing() {
		t.Error("sound should stop after its duration")
	}
	s.Play(cp.Vector{})
	s.Update(0.2)
	if !s.Playing() {
		t.Error("replayed sound should restart its timer")
	}
	if st := s.State(); st.Resource.String() != "pistol" || st.Range != 100 {
		t.Errorf("unexpected state %+v", st)
	}
}
