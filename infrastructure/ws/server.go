// Package ws is the websocket transport of the chat service. It
// upgrades HTTP requests, decodes frames at the boundary, and hands
// typed commands to the hub.
package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"workspace-chat/contract"
	"workspace-chat/domain"
)

// DefaultSendBuffer is the per-connection outbound queue size.
const DefaultSendBuffer = 32

// Hub is what the transport needs from the chat hub.
type Hub interface {
	Attach(session contract.Session)
	Detach(session contract.Session)
	Dispatch(session contract.Session, frame domain.ClientFrame)
}

// Server upgrades incoming HTTP requests into chat connections.
type Server struct {
	hub        Hub
	log        *slog.Logger
	upgrader   websocket.Upgrader
	sendBuffer int
}

func NewServer(hub Hub, log *slog.Logger, sendBuffer int) *Server {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Server{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Desktop widgets connect from file:// and embedded
			// origins; the display name is the only identity anyway.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sendBuffer: sendBuffer,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := newConn(socket, s.hub, s.log, s.sendBuffer)
	s.hub.Attach(conn)
	go conn.writePump()
	go conn.readPump()
	s.log.Debug("Connection accepted", "connection", conn.ID(), "remote", r.RemoteAddr)
}
