// Package runtime owns the live state of the chat service: the
// connection registry and the hub actor that serializes every mutating
// operation. It orchestrates without containing rendering or storage
// logic.
package runtime

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"workspace-chat/domain"
	"workspace-chat/errors"
)

// DefaultMaxClients bounds the number of distinct display names the
// registry will hold at once.
const DefaultMaxClients = 100

// Registry maps display names to live connections. It is the single
// arbiter of name ownership: registering a name held by another
// connection reports that holder as evicted, and the hub closes its
// transport. Only the hub goroutine mutates the registry, but reads
// (snapshots, telemetry) come from elsewhere, hence the RWMutex.
type Registry struct {
	mu         sync.RWMutex
	maxClients int
	byName     map[string]*domain.Connection
	names      map[uuid.UUID]string
}

func NewRegistry(maxClients int) *Registry {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	return &Registry{
		maxClients: maxClients,
		byName:     make(map[string]*domain.Connection),
		names:      make(map[uuid.UUID]string),
	}
}

// Register binds connID to name. Four outcomes:
//   - name free, capacity left: bound, (nil, nil)
//   - name held by the same connID: no-op, (nil, nil)
//   - name held by another connection: that holder is returned as
//     evicted and the binding replaced
//   - name new and the registry full: ErrRegistryFull
//
// A connection renaming itself frees its previous name in the same
// call, so a rename at capacity still succeeds.
func (r *Registry) Register(connID uuid.UUID, name string, at time.Time) (*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted *domain.Connection
	if current, ok := r.byName[name]; ok {
		if current.ID == connID {
			return nil, nil
		}
		evicted = current
	} else if len(r.byName) >= r.maxClients {
		if _, renaming := r.names[connID]; !renaming {
			return nil, errors.ErrRegistryFull
		}
	}

	if previous, ok := r.names[connID]; ok && previous != name {
		delete(r.byName, previous)
	}
	if evicted != nil {
		delete(r.names, evicted.ID)
	}

	connection := &domain.Connection{ID: connID, Name: name, ConnectedAt: at}
	r.byName[name] = connection
	r.names[connID] = name
	return evicted, nil
}

// Unregister drops the binding owned by connID, if any. Idempotent.
func (r *Registry) Unregister(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.names[connID]
	if !ok {
		return
	}
	delete(r.names, connID)
	if current, ok := r.byName[name]; ok && current.ID == connID {
		delete(r.byName, name)
	}
}

// NameOf returns the display name bound to connID, if any.
func (r *Registry) NameOf(connID uuid.UUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[connID]
	return name, ok
}

// Snapshot returns a point-in-time copy of the presence list, sorted by
// name so broadcasts are deterministic.
func (r *Registry) Snapshot() []domain.Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()

	presences := make([]domain.Presence, 0, len(r.byName))
	for _, connection := range r.byName {
		presences = append(presences, domain.Presence{
			Name:        connection.Name,
			ConnectedAt: connection.ConnectedAt,
		})
	}
	sort.Slice(presences, func(i, j int) bool { return presences[i].Name < presences[j].Name })
	return presences
}

// Len is the number of bound display names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
