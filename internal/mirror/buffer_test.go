package mirror

import (
	"sync"
	"testing"
	"time"

	"arena-server/internal/schema"
)

func snapAt(ms uint64) *schema.Snapshot {
	s := &schema.Snapshot{ID: schema.NewSnapshotID(), Time: ms}
	s.State.Fill()
	return s
}

func TestBracketColdStart(t *testing.T) {
	b := NewBuffer(time.Second)
	if _, _, ok := b.Bracket(100); ok {
		t.Error("empty buffer should not bracket")
	}
	b.Add(snapAt(100))
	if _, _, ok := b.Bracket(100); ok {
		t.Error("a single snapshot should not bracket")
	}
	if b.Latest().Time != 100 {
		t.Error("latest should be the only snapshot")
	}
}

func TestBracket(t *testing.T) {
	b := NewBuffer(time.Second)
	for _, ms := range []uint64{100, 300, 200} {
		b.Add(snapAt(ms))
	}

	tests := []struct {
		t            uint64
		older, newer uint64
		ok           bool
	}{
		{50, 0, 0, false},
		{100, 100, 200, true},
		{150, 100, 200, true},
		{200, 100, 200, true},
		{250, 200, 300, true},
		{300, 200, 300, true},
		{301, 0, 0, false},
	}
	for _, tt := range tests {
		older, newer, ok := b.Bracket(tt.t)
		if ok != tt.ok {
			t.Errorf("Bracket(%d) ok = %v", tt.t, ok)
			continue
		}
		if ok && (older.Time != tt.older || newer.Time != tt.newer) {
			t.Errorf("Bracket(%d) = %d..%d, want %d..%d", tt.t, older.Time, newer.Time, tt.older, tt.newer)
		}
	}
}

func TestBufferPrunesByTime(t *testing.T) {
	b := NewBuffer(100 * time.Millisecond)
	for ms := uint64(0); ms <= 500; ms += 50 {
		b.Add(snapAt(ms))
	}
	if b.Len() != 3 {
		t.Errorf("expected 3 snapshots within the window, got %d", b.Len())
	}
	if _, _, ok := b.Bracket(300); ok {
		t.Error("pruned history should not bracket")
	}
	if b.Latest().Time != 500 {
		t.Errorf("latest is %d", b.Latest().Time)
	}
}

func TestBufferCapacity(t *testing.T) {
	b := NewBuffer(time.Hour)
	for ms := uint64(0); ms < DefaultCapacity*2; ms++ {
		b.Add(snapAt(ms))
	}
	if b.Len() != DefaultCapacity {
		t.Errorf("expected %d snapshots, got %d", DefaultCapacity, b.Len())
	}
}

func TestBufferConcurrentAccess(t *testing.T) {
	b := NewBuffer(time.Second)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for ms := uint64(0); ms < 2000; ms += 10 {
			b.Add(snapAt(ms))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			if older, newer, ok := b.Bracket(uint64(i)); ok && older.Time > newer.Time {
				t.Errorf("bracket out of order: %d > %d", older.Time, newer.Time)
				return
			}
		}
	}()
	wg.Wait()
}
