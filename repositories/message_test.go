package repositories

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"workspace-chat/errors"
)

func newTestStore(t *testing.T) *MessageStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)

	store, err := NewMessageStore(db, slog.Default())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
		_ = db.Close()
	})
	return store
}

func Test_Append_And_Recent_Order(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	contents := []string{"first", "second", "third"}
	for _, content := range contents {
		_, err := store.Append("Alice", content)
		req.NoError(err)
	}

	messages, err := store.Recent(10)
	req.NoError(err)
	req.Len(messages, len(contents))
	for i, message := range messages {
		req.Equal(contents[i], message.Content)
		req.Equal("Alice", message.Author)
		req.False(message.CreatedAt.IsZero())
	}

	// IDs are strictly increasing, which is the tie-break when two
	// appends land on the same clock tick.
	for i := 1; i < len(messages); i++ {
		req.Greater(messages[i].ID, messages[i-1].ID)
	}
}

func Test_Recent_Limit_Keeps_Most_Recent(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	for _, content := range []string{"one", "two", "three", "four", "five"} {
		_, err := store.Append("Bob", content)
		req.NoError(err)
	}

	messages, err := store.Recent(2)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("four", messages[0].Content)
	req.Equal("five", messages[1].Content)
}

func Test_Append_Validation(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	_, err := store.Append("Alice", "")
	req.ErrorIs(err, errors.ErrEmptyMessage)

	_, err = store.Append("Alice", "   ")
	req.ErrorIs(err, errors.ErrEmptyMessage)

	_, err = store.Append("Alice", strings.Repeat("a", 501))
	req.ErrorIs(err, errors.ErrMessageTooLong)

	_, err = store.Append("", "hello")
	req.ErrorIs(err, errors.ErrEmptyAuthor)

	// Exactly 500 characters is still fine.
	_, err = store.Append("Alice", strings.Repeat("a", 500))
	req.NoError(err)
}

func Test_ClearAll(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	for _, content := range []string{"a", "b", "c"} {
		_, err := store.Append("Clara", content)
		req.NoError(err)
	}

	removed, err := store.ClearAll()
	req.NoError(err)
	req.Equal(3, removed)

	for _, limit := range []int{1, 10, 100} {
		messages, err := store.Recent(limit)
		req.NoError(err)
		req.Empty(messages)
	}

	// Clearing an already empty store succeeds again.
	removed, err = store.ClearAll()
	req.NoError(err)
	req.Zero(removed)

	// IDs keep growing after a wipe; history order stays correct.
	message, err := store.Append("Clara", "after the wipe")
	req.NoError(err)
	req.Greater(message.ID, uint64(3))
}
