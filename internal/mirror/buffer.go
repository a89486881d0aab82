// Package mirror rebuilds an interpolated view of the arena from received
// snapshots.
package mirror

import (
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"arena-server/internal/schema"
)

// DefaultCapacity bounds the buffer regardless of its time window.
const DefaultCapacity = 120

// Buffer holds recent snapshots ordered by server time. Readers take a
// lock-free view; writers copy the slice, so a reader never blocks a writer
// and never sees a half-applied insert.
type Buffer struct {
	window   uint64
	capacity int

	mu    sync.Mutex
	snaps atomic.Pointer[[]*schema.Snapshot]
}

// NewBuffer keeps snapshots up to window older than the newest one.
func NewBuffer(window time.Duration) *Buffer {
	b := &Buffer{window: uint64(window.Milliseconds()), capacity: DefaultCapacity}
	b.snaps.Store(&[]*schema.Snapshot{})
	return b
}

// Add inserts s in time order and prunes what fell out of the window.
// s must not be modified afterwards.
func (b *Buffer) Add(s *schema.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := *b.snaps.Load()
	i := sort.Search(len(cur), func(i int) bool { return cur[i].Time > s.Time })
	next := slices.Insert(slices.Clone(cur), i, s)

	newest := next[len(next)-1].Time
	cut := 0
	for cut < len(next)-1 && newest-next[cut].Time > b.window {
		cut++
	}
	if n := len(next) - cut; n > b.capacity {
		cut += n - b.capacity
	}
	next = next[cut:]
	b.snaps.Store(&next)
}

// Bracket returns the two adjacent snapshots around server time t.
func (b *Buffer) Bracket(t uint64) (older, newer *schema.Snapshot, ok bool) {
	snaps := *b.snaps.Load()
	i := sort.Search(len(snaps), func(i int) bool { return snaps[i].Time >= t })
	switch {
	case i == len(snaps):
		return nil, nil, false
	case i == 0:
		if snaps[0].Time != t || len(snaps) < 2 {
			return nil, nil, false
		}
		return snaps[0], snaps[1], true
	}
	return snaps[i-1], snaps[i], true
}

func (b *Buffer) Len() int {
	return len(*b.snaps.Load())
}

// Latest returns the newest snapshot, or nil.
func (b *Buffer) Latest() *schema.Snapshot {
	snaps := *b.snaps.Load()
	if len(snaps) == 0 {
		return nil
	}
	return snaps[len(snaps)-1]
}
