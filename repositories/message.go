package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/samber/lo"

	"workspace-chat/domain"
)

const (
	// MessagePrefix is the key prefix of message rows; offline tooling
	// scans it directly.
	MessagePrefix = "msg:"

	sequenceKey = "seq:msg"

	// DefaultHistoryLimit is how many messages a history replay carries
	// when the caller asks for no specific amount.
	DefaultHistoryLimit = 50

	sequenceBandwidth = 128
)

// MessageStore persists chat messages in BadgerDB. Keys are
// "msg:{id_padded}": the 20-digit zero padding makes lexicographical
// order equal ID order, so a prefix scan replays messages
// chronologically with the ID as tie-break for free. Values are
// CBOR-encoded rows.
type MessageStore struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

type storedMessage struct {
	ID        uint64 `cbor:"id"`
	Author    string `cbor:"author"`
	Content   string `cbor:"content"`
	CreatedAt int64  `cbor:"at"` // unix nanoseconds, UTC
}

func NewMessageStore(db *badger.DB, log *slog.Logger) (*MessageStore, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageStore{db: db, seq: seq, log: log}, nil
}

// Append validates and persists one message as a single durable write.
// ID comes from a badger sequence (monotonic, survives restarts) and
// CreatedAt from the server clock.
func (s *MessageStore) Append(author, content string) (domain.Message, error) {
	if err := domain.ValidateAuthor(author); err != nil {
		return domain.Message{}, err
	}
	if err := domain.ValidateContent(content); err != nil {
		return domain.Message{}, err
	}

	next, err := s.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("message id: %w", err)
	}
	message := domain.Message{
		ID:        next + 1, // sequence starts at 0, IDs at 1
		Author:    author,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	value, err := cbor.Marshal(fromMessage(message))
	if err != nil {
		return domain.Message{}, fmt.Errorf("encode message: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message.ID), value)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("store message: %w", err)
	}
	return message, nil
}

// Recent returns up to limit most recent messages, oldest first. A
// non-positive limit falls back to DefaultHistoryLimit.
func (s *MessageStore) Recent(limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var messages []domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(MessagePrefix)
		// Seek past the highest possible key, then walk backwards.
		seek := append([]byte(MessagePrefix), []byte("99999999999999999999")...)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(messages) < limit; it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var row storedMessage
				if err := cbor.Unmarshal(value, &row); err != nil {
					return err
				}
				messages = append(messages, toMessage(row))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return lo.Reverse(messages), nil
}

// ClearAll deletes every message row in one transaction and returns
// the count. Either every row goes or none does.
func (s *MessageStore) ClearAll() (int, error) {
	removed := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)

		prefix := []byte(MessagePrefix)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		removed = len(keys)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clear messages: %w", err)
	}
	s.log.Info("Message history cleared", "removed", removed)
	return removed, nil
}

// Close releases the ID sequence. The badger handle itself belongs to
// the caller.
func (s *MessageStore) Close() error {
	return s.seq.Release()
}

// DecodeStored decodes one raw badger value into a Message. Offline
// tooling that scans the log directly goes through here so the row
// encoding stays in one place.
func DecodeStored(value []byte) (domain.Message, error) {
	var row storedMessage
	if err := cbor.Unmarshal(value, &row); err != nil {
		return domain.Message{}, fmt.Errorf("decode message row: %w", err)
	}
	return toMessage(row), nil
}

func messageKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", MessagePrefix, id))
}

func fromMessage(m domain.Message) storedMessage {
	return storedMessage{
		ID:        m.ID,
		Author:    m.Author,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UnixNano(),
	}
}

func toMessage(row storedMessage) domain.Message {
	return domain.Message{
		ID:        row.ID,
		Author:    row.Author,
		Content:   row.Content,
		CreatedAt: time.Unix(0, row.CreatedAt).UTC(),
	}
}
