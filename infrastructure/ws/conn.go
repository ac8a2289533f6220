package ws

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"workspace-chat/domain"
	"workspace-chat/errors"
)

const (
	// Heartbeat: ping every pingPeriod, drop the peer if no pong
	// arrives within pongWait.
	pingPeriod = 30 * time.Second
	pongWait   = 40 * time.Second

	writeWait    = 10 * time.Second
	maxFrameSize = 4096
)

// Conn adapts one websocket to the hub's Session contract. Frames are
// decoded once in the read pump; the write pump drains a buffered
// outbound queue so one slow browser never blocks the hub.
type Conn struct {
	id     uuid.UUID
	socket *websocket.Conn
	hub    Hub
	log    *slog.Logger

	send      chan domain.ServerFrame
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

func newConn(socket *websocket.Conn, hub Hub, log *slog.Logger, sendBuffer int) *Conn {
	return &Conn{
		id:     uuid.New(),
		socket: socket,
		hub:    hub,
		log:    log,
		send:   make(chan domain.ServerFrame, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Conn) ID() uuid.UUID { return c.id }

// Send queues one outbound frame without blocking. After Close it is a
// no-op; a full queue is reported so the hub can drop the peer.
func (c *Conn) Send(frame domain.ServerFrame) error {
	if c.closed.Load() {
		return nil
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errors.ErrSendQueueFull
	}
}

// Close tears the socket down once. The read pump unblocks on the
// socket error and reports the detach to the hub.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		_ = c.socket.Close()
	})
}

func (c *Conn) readPump() {
	defer func() {
		c.hub.Detach(c)
		c.Close()
	}()

	c.socket.SetReadLimit(maxFrameSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Connection read failed", "connection", c.id, "error", err)
			}
			return
		}
		frame, err := domain.DecodeClientFrame(raw)
		if err != nil {
			// Malformed frames are ignored; the connection stays open.
			c.log.Warn("Ignoring bad frame", "connection", c.id, "error", err)
			continue
		}
		c.hub.Dispatch(c, frame)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(frame); err != nil {
				c.log.Debug("Connection write failed", "connection", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
