package client

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"workspace-chat/domain"
	"workspace-chat/errors"
	"workspace-chat/sanitize"
)

func newTestClient(t *testing.T, policy sanitize.Policy, handlers Handlers) *Client {
	t.Helper()
	sanitizer, err := sanitize.New(policy)
	require.NoError(t, err)
	return New("ws://unused.test/ws", sanitizer, handlers, slog.Default())
}

func frameBytes(t *testing.T, frame domain.ServerFrame) []byte {
	t.Helper()
	data, err := json.Marshal(frame)
	require.NoError(t, err)
	return data
}

func Test_HandleFrame_History_ReplacesMirror(t *testing.T) {
	req := require.New(t)

	var fromCallback []domain.Message
	c := newTestClient(t, sanitize.Policy{}, Handlers{
		OnHistory: func(messages []domain.Message) { fromCallback = messages },
	})

	// A stale mirror entry must not survive a replay.
	c.mirror = []domain.Message{{ID: 99, Author: "Old", Content: "stale"}}

	history := domain.NewHistoryFrame([]domain.Message{
		{ID: 1, Author: "Alice", Content: "hi", CreatedAt: mustTime(t, "2025-03-14T15:09:26Z")},
		{ID: 2, Author: "Bob", Content: "hello", CreatedAt: mustTime(t, "2025-03-14T15:09:27Z")},
	})
	c.handleFrame(frameBytes(t, history))

	mirror := c.Messages()
	req.Len(mirror, 2)
	req.Equal("hi", mirror[0].Content)
	req.Equal("hello", mirror[1].Content)
	req.Len(fromCallback, 2)
}

func Test_HandleFrame_NewMessage_AppendsAndBounds(t *testing.T) {
	req := require.New(t)

	c := newTestClient(t, sanitize.Policy{}, Handlers{})
	c.mirrorLimit = 3

	for i := 1; i <= 5; i++ {
		frame := domain.NewMessageEvent(domain.Message{
			ID:        uint64(i),
			Author:    "Alice",
			Content:   "hi",
			CreatedAt: mustTime(t, "2025-03-14T15:09:26Z"),
		})
		c.handleFrame(frameBytes(t, frame))
	}

	mirror := c.Messages()
	req.Len(mirror, 3)
	req.Equal(uint64(3), mirror[0].ID)
	req.Equal(uint64(5), mirror[2].ID)
}

func Test_HandleFrame_UserCount(t *testing.T) {
	req := require.New(t)

	var count int
	c := newTestClient(t, sanitize.Policy{}, Handlers{
		OnUsers: func(n int, users []string) { count = n },
	})

	c.handleFrame(frameBytes(t, domain.NewUserCountFrame([]string{"Alice", "Bob"})))
	req.Equal(2, count)
	req.Equal([]string{"Alice", "Bob"}, c.Users())
}

func Test_HandleFrame_ChatCleared_EmptiesMirror(t *testing.T) {
	req := require.New(t)

	var clearedBy string
	c := newTestClient(t, sanitize.Policy{}, Handlers{
		OnCleared: func(by, _ string) { clearedBy = by },
	})
	c.mirror = []domain.Message{{ID: 1, Author: "Alice", Content: "hi"}}

	c.handleFrame(frameBytes(t, domain.NewChatClearedFrame("Bob", mustTime(t, "2025-03-14T15:09:26Z"))))

	req.Empty(c.Messages())
	req.Equal("Bob", clearedBy)
}

func Test_HandleFrame_Notices(t *testing.T) {
	req := require.New(t)

	var successText, errorText string
	c := newTestClient(t, sanitize.Policy{}, Handlers{
		OnSuccess: func(text string) { successText = text },
		OnError:   func(text string) { errorText = text },
	})

	c.handleFrame(frameBytes(t, domain.NewSuccessFrame("done")))
	c.handleFrame(frameBytes(t, domain.NewErrorFrame("rejected")))

	req.Equal("done", successText)
	req.Equal("rejected", errorText)
}

func Test_HandleFrame_GarbageIsIgnored(t *testing.T) {
	req := require.New(t)

	c := newTestClient(t, sanitize.Policy{}, Handlers{})
	c.mirror = []domain.Message{{ID: 1, Author: "Alice", Content: "hi"}}

	c.handleFrame([]byte(`{broken`))
	c.handleFrame([]byte(`{"type":"telepathy"}`))

	// State untouched.
	req.Len(c.Messages(), 1)
}

func Test_Render_UsesPolicy(t *testing.T) {
	req := require.New(t)

	c := newTestClient(t, sanitize.Policy{BlockedDomains: []string{"evil.test"}}, Handlers{})

	segments := c.Render(domain.Message{Content: "see http://ok.test and http://evil.test"})
	req.Len(segments, 4)
	req.True(segments[1].IsLink())
	req.False(segments[3].IsLink())
}

func Test_OpenLink(t *testing.T) {
	req := require.New(t)

	c := newTestClient(t, sanitize.Policy{}, Handlers{})

	var opened string
	opener := func(url string) error {
		opened = url
		return nil
	}

	err := c.OpenLink(sanitize.Segment{Text: "plain words"}, opener)
	req.ErrorIs(err, errors.ErrNotALink)
	req.Empty(opened)

	err = c.OpenLink(sanitize.Segment{Text: "http://ok.test", URL: "http://ok.test"}, opener)
	req.NoError(err)
	req.Equal("http://ok.test", opened)
}

func Test_Pseudo_CommitsOnConfirmation_RollsBackOnRejection(t *testing.T) {
	req := require.New(t)

	c := newTestClient(t, sanitize.Policy{}, Handlers{})

	// The server accepting a bind shows up as a presence broadcast
	// carrying the name.
	c.pending = "Alice"
	c.handleFrame(frameBytes(t, domain.NewUserCountFrame([]string{"Alice", "Bob"})))
	req.Equal("Alice", c.Pseudo())

	// A rejected rename leaves the confirmed name untouched.
	c.pending = "Alicia"
	c.handleFrame(frameBytes(t, domain.NewErrorFrame("no more seats available")))
	req.Equal("Alice", c.Pseudo())

	// Broadcasts about other users never confirm a pending name.
	c.pending = "Alicia"
	c.handleFrame(frameBytes(t, domain.NewUserCountFrame([]string{"Alice", "Bob", "Clara"})))
	req.Equal("Alice", c.Pseudo())
}

func Test_SetPseudo_ValidatesLocally(t *testing.T) {
	req := require.New(t)

	c := newTestClient(t, sanitize.Policy{}, Handlers{})

	// Invalid names never reach the wire, so no connection is needed.
	req.ErrorIs(c.SetPseudo("x"), errors.ErrInvalidPseudo)
	req.ErrorIs(c.SetPseudo("bad!name"), errors.ErrInvalidPseudo)
	req.Empty(c.Pseudo())
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}
