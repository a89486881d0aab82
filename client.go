package main

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"arena-server/internal/room"
	"arena-server/internal/world"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 64
	controlBufSize    = 16
	maxMessagesPerSec = 120
)

var errControlOverflow = errors.New("control queue is full")

// Client represents a WebSocket connection. It is the room.Channel of one
// player.
type Client struct {
	id         string
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte // snapshots, dropped when full
	control    chan []byte // control messages, never dropped
	done       chan struct{}
	closeOnce  sync.Once
	remoteAddr string
	log        logrus.FieldLogger
	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	id := uuid.NewString()
	return &Client{
		id:         id,
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		control:    make(chan []byte, controlBufSize),
		done:       make(chan struct{}),
		remoteAddr: remoteAddr,
		log:        hub.log.WithFields(logrus.Fields{"channel": id, "remote": remoteAddr}),
	}
}

func (c *Client) ID() string { return c.id }

// Send queues a snapshot frame as a binary message. The frame is shared
// with every other client and only read. A slow client misses frames rather
// than holding up the room.
func (c *Client) Send(frame []byte) {
	select {
	case c.send <- frame:
	case <-c.done:
	default:
	}
}

// SendControl queues a JSON control message. It fails instead of dropping
// when the client cannot keep up.
func (c *Client) SendControl(v any) error {
	env, err := controlEnvelope(v)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	select {
	case c.control <- data:
		return nil
	case <-c.done:
		return websocket.ErrCloseSent
	default:
		return errControlOverflow
	}
}

// Close stops the write pump, which says goodbye and closes the socket.
func (c *Client) Close(reason room.Reason) {
	c.closeOnce.Do(func() {
		c.log.WithField("reason", string(reason)).Debug("closing client")
		close(c.done)
	})
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	reason := room.ReasonDisconnected
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.Unregister(c, reason)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			reason = readReason(err)
			if reason == room.ReasonDisconnected {
				c.log.WithError(err).Debug("connection lost")
			}
			return
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			c.log.Warn("rate limit exceeded, disconnecting")
			reason = room.ReasonFailed
			return
		}

		if msgType == websocket.BinaryMessage {
			c.handleBinary(message)
		} else {
			c.handleMessage(message)
		}
	}
}

// readReason classifies why reading stopped.
func readReason(err error) room.Reason {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return room.ReasonClosed
	}
	return room.ReasonDisconnected
}

// WritePump writes messages to the WebSocket connection. Control messages
// go out before any queued snapshot.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.control:
			if !c.write(websocket.TextMessage, data) {
				return
			}
			continue
		default:
		}

		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.control:
			if !c.write(websocket.TextMessage, data) {
				return
			}
		case frame := <-c.send:
			if !c.write(websocket.BinaryMessage, frame) {
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) write(msgType int, data []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(msgType, data); err != nil {
		c.log.WithError(err).Debug("write failed")
		c.hub.Unregister(c, room.ReasonFailed)
		return false
	}
	return true
}

// handleMessage routes incoming JSON messages (single-pass decode via
// InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.WithError(err).Debug("unmarshal error")
		return
	}
	switch env.T {
	case MsgKey:
		var msg world.KeyEvent
		if err := json.Unmarshal(env.D, &msg); err != nil {
			return
		}
		c.deliver(room.Input{Kind: room.InputKey, Key: msg})
	case MsgRotate:
		var msg RotateMsg
		if err := json.Unmarshal(env.D, &msg); err != nil {
			return
		}
		c.deliver(room.Input{Kind: room.InputRotate, X: msg.X, Y: msg.Y})
	}
}

// handleBinary routes incoming msgpack messages
func (c *Client) handleBinary(raw []byte) {
	var env BinaryEnvelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		c.log.WithError(err).Debug("msgpack unmarshal error")
		return
	}
	switch env.T {
	case MsgKey:
		var msg world.KeyEvent
		if err := msgpack.Unmarshal(env.D, &msg); err != nil {
			return
		}
		c.deliver(room.Input{Kind: room.InputKey, Key: msg})
	case MsgRotate:
		var msg RotateMsg
		if err := msgpack.Unmarshal(env.D, &msg); err != nil {
			return
		}
		c.deliver(room.Input{Kind: room.InputRotate, X: msg.X, Y: msg.Y})
	}
}

func (c *Client) deliver(in room.Input) {
	if err := c.hub.room.Deliver(c.id, in); err != nil {
		c.log.WithError(err).Debug("input dropped")
	}
}
