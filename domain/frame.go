package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"

	"workspace-chat/errors"
)

// Frame type tags, one per logical event on the wire.
const (
	TypeSetPseudo   = "setPseudo"
	TypeChat        = "chat"
	TypeClearChat   = "clearChat"
	TypeHistory     = "history"
	TypeNewMessage  = "newMessage"
	TypeUserCount   = "userCount"
	TypeChatCleared = "chatCleared"
	TypeSuccess     = "success"
	TypeError       = "error"
)

// ClientFrame is the closed set of requests a client may send. Decoding
// happens once at the transport boundary; everything past that point
// works with these variants, so an unknown type is a decode error and
// not a runtime string switch deep in the hub.
type ClientFrame interface {
	// Sender returns the pseudo carried by the frame.
	Sender() string
}

// SetPseudo binds or renames the connection's display name.
type SetPseudo struct {
	Pseudo string
}

func (f SetPseudo) Sender() string { return f.Pseudo }

// Chat carries one text message to append and broadcast.
type Chat struct {
	Pseudo  string
	Content string
}

func (f Chat) Sender() string { return f.Pseudo }

// ClearChat requests a wipe of the whole history.
type ClearChat struct {
	Pseudo string
}

func (f ClearChat) Sender() string { return f.Pseudo }

type rawClientFrame struct {
	Type    string `json:"type"`
	Pseudo  string `json:"pseudo"`
	Message string `json:"message"`
}

// DecodeClientFrame parses one inbound frame. Unparseable payloads map
// to ErrMalformedFrame, unknown tags to ErrUnknownFrame; callers log
// and ignore both without closing the connection.
func DecodeClientFrame(data []byte) (ClientFrame, error) {
	var raw rawClientFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}
	switch raw.Type {
	case TypeSetPseudo:
		return SetPseudo{Pseudo: raw.Pseudo}, nil
	case TypeChat:
		return Chat{Pseudo: raw.Pseudo, Content: raw.Message}, nil
	case TypeClearChat:
		return ClearChat{Pseudo: raw.Pseudo}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownFrame, raw.Type)
	}
}

// EncodeClientFrame serializes a request frame with its type tag.
func EncodeClientFrame(frame ClientFrame) ([]byte, error) {
	switch f := frame.(type) {
	case SetPseudo:
		return json.Marshal(rawClientFrame{Type: TypeSetPseudo, Pseudo: f.Pseudo})
	case Chat:
		return json.Marshal(rawClientFrame{Type: TypeChat, Pseudo: f.Pseudo, Message: f.Content})
	case ClearChat:
		return json.Marshal(rawClientFrame{Type: TypeClearChat, Pseudo: f.Pseudo})
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnknownFrame, frame)
	}
}

// ServerFrame is the closed set of events the hub emits. Each concrete
// frame carries its own type tag so it marshals directly to the wire.
type ServerFrame interface {
	Kind() string
}

// WireMessage is the JSON shape of one message inside history and
// newMessage frames.
type WireMessage struct {
	ID        uint64 `json:"id"`
	Pseudo    string `json:"pseudo"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

func ToWireMessage(m Message) WireMessage {
	return WireMessage{
		ID:        m.ID,
		Pseudo:    m.Author,
		Message:   m.Content,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func FromWireMessage(w WireMessage) (Message, error) {
	at, err := time.Parse(time.RFC3339Nano, w.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("%w: created_at: %v", errors.ErrMalformedFrame, err)
	}
	return Message{ID: w.ID, Author: w.Pseudo, Content: w.Message, CreatedAt: at}, nil
}

// HistoryFrame replays the most recent messages, oldest first.
type HistoryFrame struct {
	Type     string        `json:"type"`
	Messages []WireMessage `json:"messages"`
}

func NewHistoryFrame(messages []Message) HistoryFrame {
	wire := lo.Map(messages, func(m Message, _ int) WireMessage { return ToWireMessage(m) })
	return HistoryFrame{Type: TypeHistory, Messages: wire}
}

func (f HistoryFrame) Kind() string { return TypeHistory }

type NewMessageFrame struct {
	Type string `json:"type"`
	WireMessage
}

func NewMessageEvent(m Message) NewMessageFrame {
	return NewMessageFrame{Type: TypeNewMessage, WireMessage: ToWireMessage(m)}
}

func (f NewMessageFrame) Kind() string { return TypeNewMessage }

// UserCountFrame announces the current presence list to every bound
// connection.
type UserCountFrame struct {
	Type  string   `json:"type"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}

func NewUserCountFrame(users []string) UserCountFrame {
	return UserCountFrame{Type: TypeUserCount, Count: len(users), Users: users}
}

func (f UserCountFrame) Kind() string { return TypeUserCount }

type ChatClearedFrame struct {
	Type      string `json:"type"`
	ClearedBy string `json:"clearedBy"`
	Timestamp string `json:"timestamp"`
}

func NewChatClearedFrame(clearedBy string, at time.Time) ChatClearedFrame {
	return ChatClearedFrame{
		Type:      TypeChatCleared,
		ClearedBy: clearedBy,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	}
}

func (f ChatClearedFrame) Kind() string { return TypeChatCleared }

type SuccessFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewSuccessFrame(text string) SuccessFrame {
	return SuccessFrame{Type: TypeSuccess, Text: text}
}

func (f SuccessFrame) Kind() string { return TypeSuccess }

type ErrorFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewErrorFrame(text string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Text: text}
}

func (f ErrorFrame) Kind() string { return TypeError }

// DecodeServerFrame parses one server event on the client side.
func DecodeServerFrame(data []byte) (ServerFrame, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}
	decode := func(target ServerFrame) (ServerFrame, error) {
		if err := json.Unmarshal(data, target); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
		}
		return target, nil
	}
	switch env.Type {
	case TypeHistory:
		return decode(&HistoryFrame{})
	case TypeNewMessage:
		return decode(&NewMessageFrame{})
	case TypeUserCount:
		return decode(&UserCountFrame{})
	case TypeChatCleared:
		return decode(&ChatClearedFrame{})
	case TypeSuccess:
		return decode(&SuccessFrame{})
	case TypeError:
		return decode(&ErrorFrame{})
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownFrame, env.Type)
	}
}
