package mirror

import (
	"fmt"
	"sync/atomic"
	"time"

	"arena-server/internal/logger"
	"arena-server/internal/schema"

	"github.com/sirupsen/logrus"
)

// Options tune a Mirror. Zero values select defaults.
type Options struct {
	// Delay is how far behind the server clock frames are rendered.
	Delay time.Duration
	// Window is how much history the buffer keeps.
	Window time.Duration
	Clock  func() time.Time
}

// Stage holds one client Hash per entity kind.
type Stage struct {
	Sounds  *Hash[schema.Sound]
	Persons *Hash[schema.Person]
	Weapons *Hash[schema.Weapon]
	Bullets *Hash[schema.Bullet]
	Items   *Hash[schema.Item]
	Walls   *Hash[schema.Wall]
}

func newStage() Stage {
	return Stage{
		Sounds:  NewHash(soundID),
		Persons: NewHash(personID),
		Weapons: NewHash(weaponID),
		Bullets: NewHash(bulletID),
		Items:   NewHash(itemID),
		Walls:   NewHash(wallID),
	}
}

// Mirror turns received frames into interpolated per-kind Hash updates.
// Receive may run on a network goroutine while Frame runs on a render
// goroutine; Frame itself must not be called concurrently.
type Mirror struct {
	Stage

	log    logrus.FieldLogger
	delay  time.Duration
	clock  func() time.Time
	buf    *Buffer
	interp *Interpolator
	state  schema.State

	offset atomic.Int64
	synced atomic.Bool
}

func New(log logrus.FieldLogger, opts Options) *Mirror {
	if log == nil {
		log = logger.Discard()
	}
	if opts.Delay <= 0 {
		opts.Delay = 100 * time.Millisecond
	}
	if opts.Window <= 0 {
		opts.Window = 10 * opts.Delay
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Mirror{
		Stage:  newStage(),
		log:    log,
		delay:  opts.Delay,
		clock:  opts.Clock,
		buf:    NewBuffer(opts.Window),
		interp: NewInterpolator(),
	}
}

// Receive decodes one snapshot frame into the buffer. Malformed frames are
// dropped.
func (m *Mirror) Receive(frame []byte) error {
	snap := new(schema.Snapshot)
	if err := schema.Decode(frame, snap); err != nil {
		m.log.WithError(err).WithField("bytes", len(frame)).Debug("dropping snapshot")
		return fmt.Errorf("receive snapshot: %w", err)
	}
	if m.synced.CompareAndSwap(false, true) {
		m.offset.Store(int64(snap.Time) - m.clock().UnixMilli())
	}
	m.buf.Add(snap)
	return nil
}

// ServerTime converts a local time to the server clock in milliseconds.
func (m *Mirror) ServerTime(now time.Time) uint64 {
	t := now.UnixMilli() + m.offset.Load()
	if t < 0 {
		return 0
	}
	return uint64(t)
}

// Frame renders the state Delay behind now into the Stage. It reports
// false, touching nothing, while no two snapshots bracket that time.
func (m *Mirror) Frame(now time.Time) bool {
	if !m.synced.Load() {
		return false
	}
	target := m.ServerTime(now.Add(-m.delay))
	older, newer, ok := m.buf.Bracket(target)
	if !ok {
		return false
	}
	m.interp.Interpolate(&m.state, older, newer, target)

	m.Sounds.Update(m.state.Sounds)
	m.Persons.Update(m.state.Persons)
	m.Weapons.Update(m.state.Weapons)
	m.Bullets.Update(m.state.Bullets)
	m.Items.Update(m.state.Items)
	m.Walls.Update(m.state.Walls)
	return true
}

// Latest is the newest received snapshot, or nil.
func (m *Mirror) Latest() *schema.Snapshot {
	return m.buf.Latest()
}

// Buffered is the number of snapshots waiting in the buffer.
func (m *Mirror) Buffered() int {
	return m.buf.Len()
}
