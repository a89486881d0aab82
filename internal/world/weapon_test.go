package world

import (
	"math"
	"math/rand/v2"
	"testing"

	"arena-server/internal/geom"
	"arena-server/internal/ident"

	"github.com/jakecoffman/cp"
	"pgregory.net/rapid"
)

func testArmory() *Armory {
	return NewArmory(DefaultOptions(), rand.New(rand.NewPCG(7, 11)))
}

func TestFireDrainsEnergy(t *testing.T) {
	w := testArmory().Issue(Pistol, ident.New(), 10)
	if w.Energy() != 1 {
		t.Fatalf("new weapon should be charged, energy %f", w.Energy())
	}
	bullets := w.Fire(cp.Vector{X: 10, Y: 10}, 0)
	if len(bullets) != 1 {
		t.Fatalf("pistol should fire 1 bullet, got %d", len(bullets))
	}
	if w.Energy() != 0 {
		t.Errorf("energy after firing: %f", w.Energy())
	}
	if w.Ammo() != 9 {
		t.Errorf("expected 9 ammo, got %d", w.Ammo())
	}
	if again := w.Fire(cp.Vector{}, 0); again != nil {
		t.Errorf("firing without energy should be a no-op, got %d bullets", len(again))
	}
	if !w.Sound().Playing() {
		t.Error("fire sound should be playing")
	}
}

func TestEnergyRecoversAfterCooldown(t *testing.T) {
	const dt = 1.0 / 60
	for _, v := range []Variant{Pistol, Shotgun, Machinegun} {
		w := testArmory().Issue(v, ident.New(), 100)
		w.Fire(cp.Vector{}, 0)

		ticks := 0
		for w.Energy() < 1 {
			w.Update(dt)
			ticks++
			if e := w.Energy(); e < 0 || e > 1 {
				t.Fatalf("%s: energy %f out of range", v, e)
			}
			if ticks > 10000 {
				t.Fatalf("%s: energy never recovered", v)
			}
		}
		elapsed := float64(ticks) * dt
		if math.Abs(elapsed-v.Cooldown()) > dt+1e-9 {
			t.Errorf("%s: recovered after %fs, cooldown %fs", v, elapsed, v.Cooldown())
		}
	}
}

func TestEnergyStaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := testArmory().Issue(Machinegun, ident.New(), 1000)
		steps := rapid.IntRange(1, 300).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(t, "fire") {
				w.Fire(cp.Vector{}, 0)
			}
			w.Update(rapid.Float64Range(0.001, 0.5).Draw(t, "dt"))
			if e := w.Energy(); e < 0 || e > 1 {
				t.Fatalf("energy %f out of range", e)
			}
			if w.Ammo() < 0 {
				t.Fatalf("ammo %d below zero", w.Ammo())
			}
		}
	})
}

func TestShotgunSpread(t *testing.T) {
	const heading = 1.0
	w := testArmory().Issue(Shotgun, ident.New(), 5)
	bullets := w.Fire(cp.Vector{X: 100, Y: 100}, heading)

	if w.Ammo() != 4 {
		t.Errorf("expected ammo 4, got %d", w.Ammo())
	}
	if len(bullets) != 6 {
		t.Fatalf("expected 6 bullets, got %d", len(bullets))
	}
	seen := make(map[float64]bool)
	for _, b := range bullets {
		off := geom.NormalizeAngle(b.Heading() - heading)
		if math.Abs(off) > Shotgun.Scatter() {
			t.Errorf("bullet angle offset %f outside ±%f", off, Shotgun.Scatter())
		}
		if seen[b.Heading()] {
			t.Errorf("duplicate bullet angle %f", b.Heading())
		}
		seen[b.Heading()] = true
		if b.Owner() != w.Owner() {
			t.Error("bullet should carry the weapon owner")
		}
	}
}

func TestNoneNeverFires(t *testing.T) {
	w := testArmory().Issue(None, ident.New(), 50)
	if bullets := w.Fire(cp.Vector{}, 0); bullets != nil {
		t.Errorf("None fired %d bullets", len(bullets))
	}
	if w.Sound() != nil {
		t.Error("None should have no sound")
	}
}

func TestFireWithoutAmmo(t *testing.T) {
	w := testArmory().Issue(Pistol, ident.New(), 0)
	if bullets := w.Fire(cp.Vector{}, 0); bullets != nil {
		t.Errorf("empty weapon fired %d bullets", len(bullets))
	}
	if w.Energy() != 1 {
		t.Errorf("failed shot should keep energy, got %f", w.Energy())
	}
}

func TestTakeSameVariantAddsReserve(t *testing.T) {
	a := testArmory()
	p := &Person{id: ident.New()}
	p.weapon = a.Issue(Pistol, p.id, 3)
	held := p.weapon

	if replaced := a.Take(p, Pistol, 15); replaced != nil {
		t.Error("same variant should not replace the weapon")
	}
	if p.weapon != held || p.Ammo() != 18 {
		t.Errorf("expected reserve 18 on the same weapon, got %d", p.Ammo())
	}
}

func TestTakeOtherVariantReplaces(t *testing.T) {
	a := testArmory()
	p := &Person{id: ident.New()}
	p.weapon = a.Issue(Pistol, p.id, 30)
	old := p.weapon

	replaced := a.Take(p, Shotgun, 5)
	if replaced != old {
		t.Fatal("expected the pistol to be returned as replaced")
	}
	if p.weapon.Variant() != Shotgun || p.Ammo() != 5 {
		t.Errorf("expected shotgun with 5 ammo, got %s with %d", p.weapon.Variant(), p.Ammo())
	}
	if p.weapon.Owner() != p.id {
		t.Error("new weapon should belong to the taker")
	}
	if a.Take(p, None, 10) != nil || a.Take(p, Variant(99), 10) != nil {
		t.Error("invalid variants should be ignored")
	}
}
