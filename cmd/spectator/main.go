// Command spectator connects to an arena server, mirrors its snapshots and
// logs what it sees. With -walk it also plays, sending random input.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"arena-server/internal/logger"
	"arena-server/internal/mirror"
	"arena-server/internal/schema"
	"arena-server/internal/world"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
)

type envelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d"`
}

type outEnvelope struct {
	T string `msgpack:"t"`
	D any    `msgpack:"d"`
}

type rotate struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
}

type spectator struct {
	conn   *websocket.Conn
	mirror *mirror.Mirror
	log    logrus.FieldLogger

	writeMu sync.Mutex

	adds, deletes int
}

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "Server WebSocket URL")
	fps := flag.Int("fps", 60, "Render rate")
	delay := flag.Duration("delay", 100*time.Millisecond, "Interpolation delay")
	walk := flag.Bool("walk", false, "Send random movement and fire input")
	report := flag.Duration("report", 2*time.Second, "Interval between status lines")
	flag.Parse()

	log := logger.FromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, *url, nil)
	if err != nil {
		log.WithError(err).Fatal("dial")
	}
	s := &spectator{
		conn:   conn,
		mirror: mirror.New(log, mirror.Options{Delay: *delay}),
		log:    log,
	}
	s.mirror.Persons.OnAdd.On(func(schema.Person) { s.adds++ })
	s.mirror.Persons.OnDelete.On(func(schema.Person) { s.deletes++ })

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.read() })
	g.Go(func() error { return s.render(ctx, *fps, *report) })
	if *walk {
		g.Go(func() error { return s.play(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return s.conn.Close()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("spectator stopped")
		os.Exit(1)
	}
}

// read feeds snapshot frames to the mirror and logs control messages.
func (s *spectator) read() error {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return context.Canceled
			}
			return err
		}
		if msgType == websocket.BinaryMessage {
			s.mirror.Receive(data)
			continue
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.log.WithError(err).Warn("bad control message")
			continue
		}
		switch env.T {
		case "init":
			var init world.InitPayload
			if err := json.Unmarshal(env.D, &init); err != nil {
				return err
			}
			s.log.WithFields(logrus.Fields{
				"me":    init.Me.String(),
				"fps":   init.Options.FPS,
				"width": init.Options.Width,
				"walls": len(init.Options.Walls),
			}).Info("joined")
		case "me":
			s.log.WithField("payload", string(env.D)).Info("respawned")
		default:
			s.log.WithFields(logrus.Fields{"type": env.T, "payload": string(env.D)}).Debug("control")
		}
	}
}

// render interpolates at fps and reports periodically.
func (s *spectator) render(ctx context.Context, fps int, report time.Duration) error {
	frame := time.NewTicker(time.Second / time.Duration(max(fps, 1)))
	defer frame.Stop()
	status := time.NewTicker(report)
	defer status.Stop()

	frames := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-frame.C:
			if s.mirror.Frame(now) {
				frames++
			}
		case <-status.C:
			s.log.WithFields(logrus.Fields{
				"frames":    frames,
				"buffered":  s.mirror.Buffered(),
				"persons":   s.mirror.Persons.Len(),
				"bullets":   s.mirror.Bullets.Len(),
				"items":     s.mirror.Items.Len(),
				"spawned":   s.adds,
				"despawned": s.deletes,
			}).Info("status")
			frames = 0
		}
	}
}

// play holds a random direction and the trigger for a second at a time.
func (s *spectator) play(ctx context.Context) error {
	keys := []string{"w", "a", "s", "d"}
	held := ""
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		if held != "" {
			if err := s.send("key", world.KeyEvent{Type: world.KeyUp, Key: held}); err != nil {
				return err
			}
		}
		held = keys[rand.IntN(len(keys))]
		if err := s.send("key", world.KeyEvent{Type: world.KeyDown, Key: held}); err != nil {
			return err
		}
		a := rand.Float64() * 2 * math.Pi
		if err := s.send("rotate", rotate{X: math.Cos(a) * 100, Y: math.Sin(a) * 100}); err != nil {
			return err
		}
		if err := s.send("key", world.KeyEvent{Type: world.KeyDown, Key: "fire"}); err != nil {
			return err
		}
	}
}

func (s *spectator) send(t string, v any) error {
	data, err := msgpack.Marshal(outEnvelope{T: t, D: v})
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}
