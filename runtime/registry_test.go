package runtime

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"workspace-chat/errors"
)

func Test_Register_And_Snapshot(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(10)

	alice := uuid.New()
	bob := uuid.New()
	now := time.Now().UTC()

	evicted, err := registry.Register(alice, "Alice", now)
	req.NoError(err)
	req.Nil(evicted)

	evicted, err = registry.Register(bob, "Bob", now)
	req.NoError(err)
	req.Nil(evicted)

	snapshot := registry.Snapshot()
	req.Len(snapshot, 2)
	req.Equal("Alice", snapshot[0].Name)
	req.Equal("Bob", snapshot[1].Name)
}

func Test_Register_SameConnection_IsNoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(10)

	id := uuid.New()
	_, err := registry.Register(id, "Alice", time.Now().UTC())
	req.NoError(err)

	evicted, err := registry.Register(id, "Alice", time.Now().UTC())
	req.NoError(err)
	req.Nil(evicted)
	req.Equal(1, registry.Len())
}

func Test_Register_DuplicateName_EvictsPriorHolder(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(10)

	first := uuid.New()
	second := uuid.New()

	_, err := registry.Register(first, "Alice", time.Now().UTC())
	req.NoError(err)

	evicted, err := registry.Register(second, "Alice", time.Now().UTC())
	req.NoError(err)
	req.NotNil(evicted)
	req.Equal(first, evicted.ID)

	// Exactly one entry for the name, owned by the second connection.
	req.Equal(1, registry.Len())
	name, bound := registry.NameOf(second)
	req.True(bound)
	req.Equal("Alice", name)
	_, bound = registry.NameOf(first)
	req.False(bound)
}

func Test_Register_Rename_FreesOldName(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(10)

	id := uuid.New()
	_, err := registry.Register(id, "Alice", time.Now().UTC())
	req.NoError(err)

	evicted, err := registry.Register(id, "Alicia", time.Now().UTC())
	req.NoError(err)
	req.Nil(evicted)

	req.Equal(1, registry.Len())
	snapshot := registry.Snapshot()
	req.Equal("Alicia", snapshot[0].Name)
}

func Test_Register_Capacity(t *testing.T) {
	req := require.New(t)
	max := 3
	registry := NewRegistry(max)

	ids := make([]uuid.UUID, 0, max)
	for i := 0; i < max; i++ {
		id := uuid.New()
		ids = append(ids, id)
		_, err := registry.Register(id, fmt.Sprintf("user-%d", i), time.Now().UTC())
		req.NoError(err)
	}

	// One seat over capacity fails, and the registry never grows.
	_, err := registry.Register(uuid.New(), "late-comer", time.Now().UTC())
	req.ErrorIs(err, errors.ErrRegistryFull)
	req.Equal(max, registry.Len())

	// A bound connection may still rename at capacity.
	_, err = registry.Register(ids[0], "renamed", time.Now().UTC())
	req.NoError(err)
	req.Equal(max, registry.Len())

	// Taking over an existing name at capacity is allowed too: the
	// count of distinct names does not change.
	_, err = registry.Register(uuid.New(), "renamed", time.Now().UTC())
	req.NoError(err)
	req.Equal(max, registry.Len())
}

func Test_Unregister_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(10)

	id := uuid.New()
	_, err := registry.Register(id, "Alice", time.Now().UTC())
	req.NoError(err)

	registry.Unregister(id)
	req.Zero(registry.Len())

	// Second call and unknown IDs are both harmless.
	registry.Unregister(id)
	registry.Unregister(uuid.New())
	req.Zero(registry.Len())
}

func Test_Snapshot_IsACopy(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(10)

	_, err := registry.Register(uuid.New(), "Alice", time.Now().UTC())
	req.NoError(err)

	snapshot := registry.Snapshot()
	snapshot[0].Name = "Mallory"

	req.Equal("Alice", registry.Snapshot()[0].Name)
}
