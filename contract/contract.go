//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"workspace-chat/domain"
)

// MessageStore is the persistence collaborator: a durable append-only
// log with most-recent-N replay and an all-or-nothing wipe.
type MessageStore interface {
	Append(author, content string) (domain.Message, error)
	Recent(limit int) ([]domain.Message, error)
	ClearAll() (int, error)
}

// Session is one live transport connection as seen by the hub. Send is
// best-effort and non-blocking: a full outbound queue returns an error
// and the hub closes the peer rather than stalling the broadcast.
// Send after Close is a safe no-op, and Close is idempotent.
type Session interface {
	ID() uuid.UUID
	Send(frame domain.ServerFrame) error
	Close()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// HubStats is a point-in-time counter snapshot used by telemetry.
type HubStats struct {
	Connections int
	Bound       int
	Broadcasts  uint64
}

type StatsSource interface {
	Stats() HubStats
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding the need for manual naming in the Worker
// interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
