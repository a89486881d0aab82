package room

import (
	"errors"
	"sync"
	"time"

	"arena-server/internal/ident"
	"arena-server/internal/schema"
	"arena-server/internal/world"
)

type fakeChannel struct {
	id string

	mu       sync.Mutex
	frames   [][]byte
	controls []any
	closed   []Reason
	failInit bool
}

func newFakeChannel(id string) *fakeChannel {
	return &fakeChannel{id: id}
}

func (c *fakeChannel) ID() string { return c.id }

func (c *fakeChannel) Send(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
}

func (c *fakeChannel) SendControl(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failInit {
		return errors.New("write failed")
	}
	c.controls = append(c.controls, v)
	return nil
}

func (c *fakeChannel) Close(reason Reason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, reason)
}

type fakeSim struct {
	calls   []string
	keys    []world.KeyEvent
	rotates [][2]float64
	person  schema.Person
}

func newFakeSim() *fakeSim {
	return &fakeSim{person: schema.Person{ID: ident.New(), X: 10, Y: 20, HP: 5}}
}

func (s *fakeSim) Update(dt float64) { s.calls = append(s.calls, "update") }

func (s *fakeSim) State(dst *schema.State) {
	dst.Reset()
	dst.Persons = append(dst.Persons, s.person)
}

func (s *fakeSim) Init(channel string) any {
	s.calls = append(s.calls, "init:"+channel)
	return map[string]string{"me": channel}
}

func (s *fakeSim) Key(channel string, ev world.KeyEvent) {
	s.calls = append(s.calls, "key")
	s.keys = append(s.keys, ev)
}

func (s *fakeSim) Rotate(channel string, x, y float64) {
	s.calls = append(s.calls, "rotate")
	s.rotates = append(s.rotates, [2]float64{x, y})
}

// fakeClock advances only when told to, or when a runner waits on it.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}
