package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"arena-server/internal/ident"
	"arena-server/internal/logger"
	"arena-server/internal/schema"
	"arena-server/internal/world"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// ---------- helpers ----------

var testLimits = Limits{MaxConnsPerIP: 5, MaxTotalConns: 100}

// startTestServer spins up an httptest.Server with a running game and
// returns the server, its WebSocket URL, and a cleanup func.
func startTestServer(t *testing.T, limits Limits) (*httptest.Server, string, func()) {
	t.Helper()

	// Create a temp client dir with a minimal index.html
	tmpDir := t.TempDir()
	jsDir := filepath.Join(tmpDir, "js")
	os.MkdirAll(jsDir, 0o755)
	os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte("<html>test</html>"), 0o644)
	os.WriteFile(filepath.Join(jsDir, "main.js"), []byte("// test"), 0o644)

	opts := world.DefaultOptions()
	opts.BotsPerPlayer = 0
	opts.Items = 2
	game, err := NewGame(opts, 1, logger.Discard())
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	hub := NewHub(game.Room(), logger.Discard(), limits)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	game.Start()

	mux := SetupRoutes(hub, tmpDir, "http://arena.test/")
	srv := httptest.NewServer(mux)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	return srv, wsURL, func() {
		game.Stop()
		cancel()
		srv.Close()
	}
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	return conn
}

// readEnvelope reads until the next JSON control message, skipping
// snapshots.
func readEnvelope(t *testing.T, conn *websocket.Conn) InEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS: %v", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var env InEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return env
	}
}

// readSnapshot reads until the next binary snapshot.
func readSnapshot(t *testing.T, conn *websocket.Conn) schema.Snapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS: %v", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		var snap schema.Snapshot
		if err := schema.Decode(raw, &snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		return snap
	}
}

// join reads the init message and returns our person.
func join(t *testing.T, conn *websocket.Conn) world.InitPayload {
	t.Helper()
	env := readEnvelope(t, conn)
	if env.T != MsgInit {
		t.Fatalf("expected init, got %s", env.T)
	}
	var init world.InitPayload
	if err := json.Unmarshal(env.D, &init); err != nil {
		t.Fatalf("unmarshal init: %v", err)
	}
	if init.Me.IsZero() {
		t.Fatal("init without a person")
	}
	return init
}

// sendMsg sends a typed JSON message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	raw, _ := json.Marshal(Envelope{T: msgType, Data: data})
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// sendBinary sends a typed msgpack message over the WebSocket.
func sendBinary(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	raw, err := msgpack.Marshal(Envelope{T: msgType, Data: data})
	if err != nil {
		t.Fatalf("msgpack: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

func findPerson(snap schema.Snapshot, id ident.ID) (schema.Person, bool) {
	for _, p := range snap.State.Persons {
		if p.ID == id {
			return p, true
		}
	}
	return schema.Person{}, false
}

// waitFor polls a snapshot predicate until it holds or time runs out.
func waitFor(t *testing.T, conn *websocket.Conn, what string, ok func(schema.Snapshot) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ok(readSnapshot(t, conn)) {
			return
		}
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ---------- WebSocket protocol ----------

func TestInitThenSnapshots(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t, testLimits)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()

	init := join(t, conn)
	if init.Options.FPS != 60 || len(init.Options.Walls) == 0 {
		t.Errorf("init should carry the world options, got fps %d", init.Options.FPS)
	}

	snap := readSnapshot(t, conn)
	p, ok := findPerson(snap, init.Me)
	if !ok {
		t.Fatal("our person is missing from the snapshot")
	}
	if p.HP != 5 {
		t.Errorf("expected hp 5, got %d", p.HP)
	}
	if len(snap.State.Items) != 2 || len(snap.State.Weapons) != 1 {
		t.Errorf("expected 2 items and 1 weapon, got %d and %d", len(snap.State.Items), len(snap.State.Weapons))
	}

	later := readSnapshot(t, conn)
	if later.Time < snap.Time || later.ID == snap.ID {
		t.Error("snapshots should be fresh and ordered")
	}
}

func TestRotateJSON(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t, testLimits)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()
	init := join(t, conn)

	sendMsg(t, conn, MsgRotate, RotateMsg{X: 0, Y: 10})
	waitFor(t, conn, "person to face down", func(s schema.Snapshot) bool {
		p, ok := findPerson(s, init.Me)
		return ok && math.Abs(float64(p.Angle)-math.Pi/2) < 1e-4
	})
}

func TestKeyMsgpack(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t, testLimits)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()
	init := join(t, conn)

	sendBinary(t, conn, MsgKey, world.KeyEvent{Type: world.KeyDown, Key: "d"})
	waitFor(t, conn, "person to walk", func(s schema.Snapshot) bool {
		p, ok := findPerson(s, init.Me)
		return ok && p.Animation == world.AnimationWalk
	})

	sendBinary(t, conn, MsgKey, world.KeyEvent{Type: world.KeyUp, Key: "d"})
	waitFor(t, conn, "person to stop", func(s schema.Snapshot) bool {
		p, ok := findPerson(s, init.Me)
		return ok && p.Animation == world.AnimationIdle
	})
}

func TestFireSpawnsBullets(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t, testLimits)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()
	join(t, conn)

	sendMsg(t, conn, MsgKey, world.KeyEvent{Type: world.KeyDown, Key: "fire"})
	waitFor(t, conn, "a bullet", func(s schema.Snapshot) bool {
		return len(s.State.Bullets) > 0
	})
}

func TestDisconnectDespawns(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t, testLimits)
	defer cleanup()

	watcher := dialWS(t, wsURL)
	defer watcher.Close()
	join(t, watcher)

	leaver := dialWS(t, wsURL)
	gone := join(t, leaver)
	waitFor(t, watcher, "second person", func(s schema.Snapshot) bool {
		_, ok := findPerson(s, gone.Me)
		return ok
	})

	leaver.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	leaver.Close()

	waitFor(t, watcher, "second person to despawn", func(s schema.Snapshot) bool {
		_, ok := findPerson(s, gone.Me)
		return !ok && len(s.State.Persons) == 1
	})
}

func TestConnectionLimit(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t, Limits{MaxConnsPerIP: 1, MaxTotalConns: 10})
	defer cleanup()

	first := dialWS(t, wsURL)
	defer first.Close()
	join(t, first)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("second connection from the same address should be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %v", resp)
	}
}

// ---------- HTTP routes ----------

func TestHealthz(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t, testLimits)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()
	join(t, conn)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.Status != "ok" || h.Clients != 1 || h.Connections != 1 {
		t.Errorf("unexpected health %+v", h)
	}
}

func TestQRCode(t *testing.T) {
	srv, _, cleanup := startTestServer(t, testLimits)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/qr")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("GET /qr status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
}

func TestStaticFiles(t *testing.T) {
	srv, _, cleanup := startTestServer(t, testLimits)
	defer cleanup()

	tests := []struct {
		path string
		code int
	}{
		{"/", 200},
		{"/js/main.js", 200},
		{"/missing.js", 404},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.code {
			t.Errorf("GET %s status = %d, want %d", tt.path, resp.StatusCode, tt.code)
		}
		if tt.code == 200 && resp.Header.Get("Cache-Control") != "no-cache" {
			t.Errorf("GET %s should not be cached", tt.path)
		}
	}
}
