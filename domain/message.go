// Package domain contains the core concepts of the chat system:
// messages, connections, presence and the wire frame variants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is an immutable chat event. The ID and CreatedAt are assigned
// by the store at append time; the server clock rules out clock-skew
// games from clients.
type Message struct {
	ID        uint64
	Author    string
	Content   string
	CreatedAt time.Time
}

// Connection is the ephemeral binding of one transport session to a
// display name. Name stays empty until the client registers one.
type Connection struct {
	ID          uuid.UUID
	Name        string
	ConnectedAt time.Time
}

// Presence is the read-only view of a bound connection exposed by
// registry snapshots.
type Presence struct {
	Name        string
	ConnectedAt time.Time
}
