package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"workspace-chat/contract"
	"workspace-chat/domain"
)

// DefaultCommandBuffer sizes the hub inbox. Transports enqueue here;
// the hub drains one command at a time.
const DefaultCommandBuffer = 256

type commandKind int

const (
	commandAttach commandKind = iota
	commandDetach
	commandFrame
)

type hubCommand struct {
	kind    commandKind
	session contract.Session
	frame   domain.ClientFrame
}

// Hub is the protocol state machine. One goroutine (Run) owns the
// session table and drives every mutating operation against the
// registry and the store as a single critical section, broadcast
// included. That single-writer loop is what gives every client the
// same relative order of messages and presence changes.
//
// Hub implements contract.Worker and runs under the supervisor.
type Hub struct {
	log          *slog.Logger
	registry     *Registry
	store        contract.MessageStore
	commands     chan hubCommand
	sessions     map[uuid.UUID]contract.Session
	historyLimit int

	// Counters read by telemetry from outside the hub goroutine.
	connections atomic.Int64
	broadcasts  atomic.Uint64
}

func NewHub(log *slog.Logger, registry *Registry, store contract.MessageStore,
	commandBuffer, historyLimit int) *Hub {
	if commandBuffer <= 0 {
		commandBuffer = DefaultCommandBuffer
	}
	return &Hub{
		log:          log,
		registry:     registry,
		store:        store,
		commands:     make(chan hubCommand, commandBuffer),
		sessions:     make(map[uuid.UUID]contract.Session),
		historyLimit: historyLimit,
	}
}

// Attach hands a freshly accepted transport to the hub. The connection
// stays unbound until its first valid setPseudo.
func (h *Hub) Attach(session contract.Session) {
	h.enqueue(hubCommand{kind: commandAttach, session: session})
}

// Detach signals a closed transport. Safe to call more than once for
// the same session.
func (h *Hub) Detach(session contract.Session) {
	h.enqueue(hubCommand{kind: commandDetach, session: session})
}

// Dispatch queues one decoded inbound frame. Per-connection order is
// preserved because each transport calls Dispatch from its single read
// loop.
func (h *Hub) Dispatch(session contract.Session, frame domain.ClientFrame) {
	h.enqueue(hubCommand{kind: commandFrame, session: session, frame: frame})
}

func (h *Hub) enqueue(cmd hubCommand) {
	// Frames are best effort: a full inbox drops the request and the
	// client retries. Lifecycle commands must never be lost — a dropped
	// detach would leave the display name bound to a dead transport
	// forever — so attach and detach block until the hub drains.
	if cmd.kind == commandFrame {
		select {
		case h.commands <- cmd:
		default:
			h.log.Warn("Hub inbox full, dropping frame", "connection", cmd.session.ID())
		}
		return
	}
	h.commands <- cmd
}

// Run drains the inbox until the context is canceled. Each command is
// handled fully (state mutation plus broadcast) before the next one
// starts.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-h.commands:
			h.handle(cmd)
		}
	}
}

// Stats exposes counters for the telemetry worker.
func (h *Hub) Stats() contract.HubStats {
	return contract.HubStats{
		Connections: int(h.connections.Load()),
		Bound:       h.registry.Len(),
		Broadcasts:  h.broadcasts.Load(),
	}
}

func (h *Hub) handle(cmd hubCommand) {
	switch cmd.kind {
	case commandAttach:
		h.attach(cmd.session)
	case commandDetach:
		h.detach(cmd.session)
	case commandFrame:
		switch frame := cmd.frame.(type) {
		case domain.SetPseudo:
			h.setPseudo(cmd.session, frame)
		case domain.Chat:
			h.chat(cmd.session, frame)
		case domain.ClearChat:
			h.clearChat(cmd.session, frame)
		default:
			// Unreachable with the closed frame set; decoding already
			// rejected unknown tags.
			h.log.Warn("Ignoring unexpected frame", "frame", fmt.Sprintf("%T", cmd.frame))
		}
	}
}

func (h *Hub) attach(session contract.Session) {
	if _, ok := h.sessions[session.ID()]; ok {
		return
	}
	h.sessions[session.ID()] = session
	h.connections.Add(1)
	h.log.Debug("Connection attached", "connection", session.ID())
}

func (h *Hub) detach(session contract.Session) {
	id := session.ID()
	if _, ok := h.sessions[id]; !ok {
		return
	}
	delete(h.sessions, id)
	h.connections.Add(-1)

	_, wasBound := h.registry.NameOf(id)
	h.registry.Unregister(id)
	session.Close()
	h.log.Debug("Connection detached", "connection", id)

	if wasBound {
		h.broadcastPresence()
	}
}

// setPseudo binds or renames. The first successful bind replays the
// history to the requester; a rename does not. Either way every bound
// connection gets a fresh presence broadcast.
func (h *Hub) setPseudo(session contract.Session, frame domain.SetPseudo) {
	if err := domain.ValidatePseudo(frame.Pseudo); err != nil {
		h.deliver(session, domain.NewErrorFrame(err.Error()))
		return
	}

	_, wasBound := h.registry.NameOf(session.ID())
	evicted, err := h.registry.Register(session.ID(), frame.Pseudo, time.Now().UTC())
	if err != nil {
		h.deliver(session, domain.NewErrorFrame(err.Error()))
		return
	}

	if evicted != nil {
		// Close the previous holder before finishing the registration
		// so two transports never race on the same name.
		h.log.Info("Display name taken over", "pseudo", frame.Pseudo, "evicted", evicted.ID)
		if old, ok := h.sessions[evicted.ID]; ok {
			old.Close()
		}
	}

	if !wasBound {
		h.sendHistory(session)
	}
	h.broadcastPresence()
}

// chat appends one message and echoes it to everyone, sender included:
// every UI renders from the same broadcast instead of trusting a local
// echo.
func (h *Hub) chat(session contract.Session, frame domain.Chat) {
	author, bound := h.registry.NameOf(session.ID())
	if !bound {
		h.deliver(session, domain.NewErrorFrame("register a display name first"))
		return
	}

	message, err := h.store.Append(author, strings.TrimSpace(frame.Content))
	if err != nil {
		h.log.Warn("Message rejected", "author", author, "error", err)
		h.deliver(session, domain.NewErrorFrame(err.Error()))
		return
	}
	h.broadcast(domain.NewMessageEvent(message))
}

// clearChat wipes the history for everyone. Any bound connection may do
// it; there is no elevated role in this protocol.
func (h *Hub) clearChat(session contract.Session, frame domain.ClearChat) {
	author, bound := h.registry.NameOf(session.ID())
	if !bound {
		h.deliver(session, domain.NewErrorFrame("register a display name first"))
		return
	}

	removed, err := h.store.ClearAll()
	if err != nil {
		h.log.Error("History wipe failed", "author", author, "error", err)
		h.deliver(session, domain.NewErrorFrame("history wipe failed"))
		return
	}
	h.log.Info("History wiped", "author", author, "removed", removed)
	h.broadcast(domain.NewChatClearedFrame(author, time.Now().UTC()))
	h.deliver(session, domain.NewSuccessFrame(fmt.Sprintf("%d messages removed", removed)))
}

func (h *Hub) sendHistory(session contract.Session) {
	messages, err := h.store.Recent(h.historyLimit)
	if err != nil {
		h.log.Error("History read failed", "error", err)
		h.deliver(session, domain.NewErrorFrame("history unavailable"))
		return
	}
	h.deliver(session, domain.NewHistoryFrame(messages))
}

func (h *Hub) broadcastPresence() {
	names := lo.Map(h.registry.Snapshot(), func(p domain.Presence, _ int) string {
		return p.Name
	})
	h.broadcast(domain.NewUserCountFrame(names))
}

// broadcast sends one frame to every bound connection. Unbound
// transports are skipped; they have not joined the conversation yet.
func (h *Hub) broadcast(frame domain.ServerFrame) {
	for id, session := range h.sessions {
		if _, bound := h.registry.NameOf(id); !bound {
			continue
		}
		h.deliver(session, frame)
	}
	h.broadcasts.Add(1)
}

// deliver pushes one frame to one session, best effort. A peer that
// cannot keep up is closed; its detach arrives through the normal
// transport path.
func (h *Hub) deliver(session contract.Session, frame domain.ServerFrame) {
	if err := session.Send(frame); err != nil {
		h.log.Debug("Closing unresponsive connection", "connection", session.ID(), "error", err)
		session.Close()
	}
}
