// Package client implements the widget-side of the chat protocol: one
// websocket connection, the local display name, a bounded mirror of
// recent messages, and rendering through the link sanitizer.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"workspace-chat/domain"
	"workspace-chat/errors"
	"workspace-chat/sanitize"
)

// DefaultMirrorLimit bounds the local message mirror.
const DefaultMirrorLimit = 200

// Handlers are the UI callbacks. All of them are optional and are
// invoked from the listen goroutine.
type Handlers struct {
	OnHistory func(messages []domain.Message)
	OnMessage func(message domain.Message)
	OnUsers   func(count int, users []string)
	OnCleared func(clearedBy, timestamp string)
	OnSuccess func(text string)
	OnError   func(text string)
}

// Client is one chat participant. The server broadcast is the single
// source of truth: the mirror only changes when a frame arrives, never
// on local echo.
type Client struct {
	serverURL string
	log       *slog.Logger
	sanitizer *sanitize.Sanitizer
	handlers  Handlers

	mu          sync.Mutex
	socket      *websocket.Conn
	pseudo      string
	pending     string
	mirror      []domain.Message
	users       []string
	mirrorLimit int

	done chan struct{}
}

func New(serverURL string, sanitizer *sanitize.Sanitizer, handlers Handlers, log *slog.Logger) *Client {
	return &Client{
		serverURL:   serverURL,
		log:         log,
		sanitizer:   sanitizer,
		handlers:    handlers,
		mirrorLimit: DefaultMirrorLimit,
		done:        make(chan struct{}),
	}
}

// Connect dials the hub and starts the listen loop.
func (c *Client) Connect(ctx context.Context) error {
	socket, _, err := websocket.DefaultDialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.serverURL, err)
	}
	c.mu.Lock()
	c.socket = socket
	c.mu.Unlock()

	go c.listen()
	return nil
}

// Done is closed when the server connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.socket == nil {
		return nil
	}
	return c.socket.Close()
}

// SetPseudo registers or renames the display name. Validation happens
// locally first so an obviously bad name never leaves the widget. The
// name stays pending until the server confirms it: a successful bind
// shows up as a presence broadcast carrying the name, a rejection as an
// error frame. Pseudo keeps reporting the last confirmed name until
// then.
func (c *Client) SetPseudo(pseudo string) error {
	if err := domain.ValidatePseudo(pseudo); err != nil {
		return err
	}
	c.mu.Lock()
	c.pending = pseudo
	c.mu.Unlock()
	if err := c.sendFrame(domain.SetPseudo{Pseudo: pseudo}); err != nil {
		c.mu.Lock()
		c.pending = ""
		c.mu.Unlock()
		return err
	}
	return nil
}

// Send submits one chat message. The mirror is not touched here; the
// message shows up when the server echoes it back.
func (c *Client) Send(message string) error {
	if err := domain.ValidateContent(message); err != nil {
		return err
	}
	c.mu.Lock()
	pseudo := c.pseudo
	c.mu.Unlock()
	return c.sendFrame(domain.Chat{Pseudo: pseudo, Content: message})
}

// ClearChat asks the hub to wipe the shared history.
func (c *Client) ClearChat() error {
	c.mu.Lock()
	pseudo := c.pseudo
	c.mu.Unlock()
	return c.sendFrame(domain.ClearChat{Pseudo: pseudo})
}

// Pseudo returns the last display name the server confirmed.
func (c *Client) Pseudo() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pseudo
}

// Messages returns a copy of the local mirror, oldest first.
func (c *Client) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Message(nil), c.mirror...)
}

// Users returns the last presence list received.
func (c *Client) Users() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.users...)
}

// Render segments one message for display. Plain segments are printed
// verbatim; link segments must stay inert until OpenLink.
func (c *Client) Render(message domain.Message) []sanitize.Segment {
	return c.sanitizer.Process(message.Content)
}

// OpenLink activates one link segment through the caller-provided
// opener (an external-open capability, like xdg-open). Links are never
// followed by the widget itself.
func (c *Client) OpenLink(segment sanitize.Segment, open func(url string) error) error {
	if !segment.IsLink() {
		return errors.ErrNotALink
	}
	return open(segment.URL)
}

func (c *Client) sendFrame(frame domain.ClientFrame) error {
	data, err := domain.EncodeClientFrame(frame)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.socket == nil {
		return fmt.Errorf("not connected")
	}
	return c.socket.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) listen() {
	defer close(c.done)
	for {
		c.mu.Lock()
		socket := c.socket
		c.mu.Unlock()
		if socket == nil {
			return
		}

		_, raw, err := socket.ReadMessage()
		if err != nil {
			c.log.Debug("Server connection closed", "error", err)
			return
		}
		c.handleFrame(raw)
	}
}

func (c *Client) handleFrame(raw []byte) {
	frame, err := domain.DecodeServerFrame(raw)
	if err != nil {
		c.log.Warn("Ignoring bad server frame", "error", err)
		return
	}

	switch f := frame.(type) {
	case *domain.HistoryFrame:
		messages, err := fromWire(f.Messages)
		if err != nil {
			c.log.Warn("Ignoring bad history frame", "error", err)
			return
		}
		c.mu.Lock()
		c.mirror = trimMirror(messages, c.mirrorLimit)
		c.mu.Unlock()
		if c.handlers.OnHistory != nil {
			c.handlers.OnHistory(messages)
		}
	case *domain.NewMessageFrame:
		message, err := domain.FromWireMessage(f.WireMessage)
		if err != nil {
			c.log.Warn("Ignoring bad message frame", "error", err)
			return
		}
		c.mu.Lock()
		c.mirror = trimMirror(append(c.mirror, message), c.mirrorLimit)
		c.mu.Unlock()
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(message)
		}
	case *domain.UserCountFrame:
		c.mu.Lock()
		c.users = append([]string(nil), f.Users...)
		// A presence list carrying the pending name is the server
		// accepting the bind; a rejection would have arrived as an
		// error frame before any later broadcast.
		if c.pending != "" && lo.Contains(f.Users, c.pending) {
			c.pseudo = c.pending
			c.pending = ""
		}
		c.mu.Unlock()
		if c.handlers.OnUsers != nil {
			c.handlers.OnUsers(f.Count, f.Users)
		}
	case *domain.ChatClearedFrame:
		c.mu.Lock()
		c.mirror = nil
		c.mu.Unlock()
		if c.handlers.OnCleared != nil {
			c.handlers.OnCleared(f.ClearedBy, f.Timestamp)
		}
	case *domain.SuccessFrame:
		if c.handlers.OnSuccess != nil {
			c.handlers.OnSuccess(f.Text)
		}
	case *domain.ErrorFrame:
		c.mu.Lock()
		c.pending = ""
		c.mu.Unlock()
		if c.handlers.OnError != nil {
			c.handlers.OnError(f.Text)
		}
	}
}

func fromWire(wire []domain.WireMessage) ([]domain.Message, error) {
	messages := make([]domain.Message, 0, len(wire))
	for _, w := range wire {
		message, err := domain.FromWireMessage(w)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func trimMirror(messages []domain.Message, limit int) []domain.Message {
	if limit <= 0 || len(messages) <= limit {
		return messages
	}
	return lo.Subset(messages, len(messages)-limit, uint(limit))
}
