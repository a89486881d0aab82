package main

import (
	"math/rand/v2"

	"arena-server/internal/room"
	"arena-server/internal/world"

	"github.com/sirupsen/logrus"
)

// Game ties the world, the room broadcasting it and the runner driving
// both. Every world mutation happens on the runner goroutine.
type Game struct {
	world  *world.World
	room   *room.Room
	runner *room.Runner
	log    logrus.FieldLogger
}

// NewGame builds a stopped game. A zero seed draws one from the clock.
func NewGame(opts world.Options, seed uint64, log logrus.FieldLogger) (*Game, error) {
	var rng *rand.Rand
	if seed != 0 {
		rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	w, err := world.New(opts, log.WithField("component", "world"), rng)
	if err != nil {
		return nil, err
	}
	rm := room.New(w, log.WithField("component", "room"), room.Options{})
	g := &Game{
		world:  w,
		room:   rm,
		runner: room.NewRunner(opts.FPS),
		log:    log,
	}

	g.runner.OnTick.On(rm.Tick)
	rm.OnConnect.On(func(id string) { w.Join(id) })
	rm.OnDisconnect.On(func(ev room.Event) { w.Leave(ev.ID) })
	w.OnRespawn.On(func(ev world.Respawn) {
		if ev.Channel == "" {
			return
		}
		rm.SendControl(ev.Channel, MeMsg{ID: ev.New})
	})
	return g, nil
}

func (g *Game) Room() *room.Room { return g.room }

// Start begins ticking.
func (g *Game) Start() {
	g.log.WithField("fps", g.world.Options().FPS).Info("game started")
	g.runner.Play()
}

// Stop halts the runner, waits for the last tick and closes every channel.
func (g *Game) Stop() {
	g.runner.Stop()
	<-g.runner.Done()
	g.room.Close()
	g.log.Info("game stopped")
}
