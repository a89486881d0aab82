// Package room binds one simulation to a set of network channels and drives
// the snapshot broadcast.
package room

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"arena-server/internal/logger"
	"arena-server/internal/schema"
	"arena-server/internal/signal"
	"arena-server/internal/world"

	"github.com/sirupsen/logrus"
)

var (
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("room closed")
	// ErrBusy is returned when the input queue is full. The input is dropped.
	ErrBusy = errors.New("room input queue is full")
	// ErrUnknownChannel is returned by SendControl for unregistered ids.
	ErrUnknownChannel = errors.New("unknown channel")
)

// Reason tells why a channel left the room.
type Reason string

const (
	// ReasonClosed is an orderly close by either side.
	ReasonClosed Reason = "closed"
	// ReasonDisconnected is a lost peer: timeout or abrupt close.
	ReasonDisconnected Reason = "disconnected"
	// ReasonFailed is a local transport failure.
	ReasonFailed Reason = "failed"
)

// Channel is one connected peer.
type Channel interface {
	ID() string
	// Send queues a snapshot frame. Delivery is best effort and frame is
	// shared between channels, so it must not be modified.
	Send(frame []byte)
	// SendControl delivers v reliably or reports why it could not.
	SendControl(v any) error
	Close(reason Reason)
}

// Simulation is the world a room drives. *world.World implements it.
type Simulation interface {
	Update(dt float64)
	State(dst *schema.State)
	Init(channel string) any
	Key(channel string, ev world.KeyEvent)
	Rotate(channel string, x, y float64)
}

// InputKind selects which field of Input is meaningful.
type InputKind uint8

const (
	InputKey InputKind = iota + 1
	InputRotate
)

// Input is one inbound control message from a channel.
type Input struct {
	Kind InputKind
	Key  world.KeyEvent
	X, Y float64
}

// Event reports a channel leaving.
type Event struct {
	ID     string
	Reason Reason
}

// Options tune a room. Zero values select defaults.
type Options struct {
	InputQueue int
	Clock      Clock
}

type lifecycle struct {
	connect Channel
	id      string
	reason  Reason
}

type delivery struct {
	id string
	in Input
}

// Room owns the channel registry. Connect, Disconnect and Deliver may be
// called from any goroutine; they are queued and applied at the start of
// the next Tick. Everything else, including the signal handlers, runs on
// the goroutine that calls Tick.
type Room struct {
	sim   Simulation
	log   logrus.FieldLogger
	clock Clock

	mu      sync.Mutex
	pending []lifecycle
	closed  bool

	inputs   chan delivery
	channels map[string]Channel
	count    atomic.Int64

	epoch     time.Time
	epochMs   uint64
	snap      schema.Snapshot
	frameSize int

	OnConnect    signal.Signal[string]
	OnDisconnect signal.Signal[Event]
}

// New creates a room around sim.
func New(sim Simulation, log logrus.FieldLogger, opts Options) *Room {
	if log == nil {
		log = logger.Discard()
	}
	if opts.InputQueue <= 0 {
		opts.InputQueue = 1024
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	epoch := opts.Clock.Now()
	return &Room{
		sim:      sim,
		log:      log,
		clock:    opts.Clock,
		inputs:   make(chan delivery, opts.InputQueue),
		channels: make(map[string]Channel),
		epoch:    epoch,
		epochMs:  uint64(epoch.UnixMilli()),
	}
}

// Connect registers ch at the next tick. A closed room closes ch at once.
func (r *Room) Connect(ch Channel) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		ch.Close(ReasonClosed)
		return ErrClosed
	}
	r.pending = append(r.pending, lifecycle{connect: ch, id: ch.ID()})
	r.mu.Unlock()
	return nil
}

// Disconnect removes the channel at the next tick. Unknown or already
// removed ids are ignored.
func (r *Room) Disconnect(id string, reason Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.pending = append(r.pending, lifecycle{id: id, reason: reason})
}

// Deliver queues an input from channel id. Inputs are best effort: a full
// queue drops them.
func (r *Room) Deliver(id string, in Input) error {
	select {
	case r.inputs <- delivery{id: id, in: in}:
		return nil
	default:
		return ErrBusy
	}
}

// SendControl pushes v reliably to one channel. A channel that cannot take
// it is disconnected as failed.
func (r *Room) SendControl(id string, v any) error {
	ch, ok := r.channels[id]
	if !ok {
		return ErrUnknownChannel
	}
	if err := ch.SendControl(v); err != nil {
		r.log.WithError(err).WithField("channel", id).Warn("control push failed")
		r.remove(id, ReasonFailed)
		return err
	}
	return nil
}

// Connections is the number of registered channels. Safe from any
// goroutine.
func (r *Room) Connections() int {
	return int(r.count.Load())
}

// Tick applies queued lifecycle changes and inputs, advances the simulation
// by dt seconds and broadcasts the full state to every channel.
func (r *Room) Tick(dt float64) {
	r.applyLifecycle()

INPUTS:
	for {
		select {
		case d := <-r.inputs:
			r.apply(d)
		default:
			break INPUTS
		}
	}

	r.sim.Update(dt)
	r.broadcast()
}

// Close disconnects every channel with ReasonClosed and rejects further
// connections. It must not run concurrently with Tick.
func (r *Room) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	pending := r.pending
	r.pending = nil
	r.closed = true
	r.mu.Unlock()

	for _, op := range pending {
		if op.connect != nil {
			op.connect.Close(ReasonClosed)
		}
	}
	for id := range r.channels {
		r.remove(id, ReasonClosed)
	}
}

func (r *Room) applyLifecycle() {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, op := range pending {
		if op.connect == nil {
			r.remove(op.id, op.reason)
			continue
		}
		r.add(op.connect)
	}
}

func (r *Room) add(ch Channel) {
	id := ch.ID()
	if _, ok := r.channels[id]; ok {
		return
	}
	r.channels[id] = ch
	r.count.Add(1)
	r.log.WithField("channel", id).Info("channel connected")
	r.OnConnect.Emit(id)

	if _, ok := r.channels[id]; !ok {
		return
	}
	if err := ch.SendControl(r.sim.Init(id)); err != nil {
		r.log.WithError(err).WithField("channel", id).Warn("init push failed")
		r.remove(id, ReasonFailed)
	}
}

func (r *Room) remove(id string, reason Reason) {
	ch, ok := r.channels[id]
	if !ok {
		return
	}
	delete(r.channels, id)
	r.count.Add(-1)
	ch.Close(reason)
	r.log.WithFields(logrus.Fields{"channel": id, "reason": string(reason)}).Info("channel disconnected")
	r.OnDisconnect.Emit(Event{ID: id, Reason: reason})
}

func (r *Room) apply(d delivery) {
	if _, ok := r.channels[d.id]; !ok {
		return
	}
	switch d.in.Kind {
	case InputKey:
		r.sim.Key(d.id, d.in.Key)
	case InputRotate:
		r.sim.Rotate(d.id, d.in.X, d.in.Y)
	}
}

// broadcast encodes one snapshot and hands the same frame to every channel.
// Cost grows with entities times channels; there is no delta encoding.
func (r *Room) broadcast() {
	if len(r.channels) == 0 {
		return
	}
	r.sim.State(&r.snap.State)
	r.snap.ID = schema.NewSnapshotID()
	// Two ticks can share a millisecond right after a slow one.
	now := r.epochMs + uint64(r.clock.Now().Sub(r.epoch).Milliseconds())
	r.snap.Time = max(now, r.snap.Time+1)

	frame, err := schema.AppendSnapshot(make([]byte, 0, r.frameSize), &r.snap)
	if err != nil {
		r.log.WithError(err).Error("encode snapshot")
		return
	}
	r.frameSize = len(frame)
	for _, ch := range r.channels {
		ch.Send(frame)
	}
}
