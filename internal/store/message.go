package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

/*
Message is an archived chat message.  Content is never mutated after
creation.  The sender projection is denormalized at write time from the
connection identity, so reads need no user lookup.
*/
type Message struct {
	ID           uuid.UUID `json:"id"`
	RoomID       string    `json:"roomId"`
	SenderID     string    `json:"senderId"`
	SenderName   string    `json:"senderName"`
	SenderAvatar string    `json:"senderAvatar,omitempty"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
}

// MessageArchive persists messages in BadgerDB and replays the most recent
// ones per room.
type MessageArchive struct {
	db    *badger.DB
	log   *slog.Logger
	limit int
}

func NewMessageArchive(db *badger.DB, log *slog.Logger, limit int) MessageArchive {
	return MessageArchive{db: db, log: log, limit: limit}
}

/*
Append persists a message and returns the stored record.  The key is
formatted as "msg:{room_id}:{timestamp_padded}:{uuid}":
 1. The 19-digit zero-padded nanosecond timestamp makes lexicographic order
    chronological.
 2. The uuid disambiguates two messages landing on the same nanosecond.
*/
func (a MessageArchive) Append(message Message) (Message, error) {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	key := fmt.Sprintf("msg:%s:%019d:%s",
		message.RoomID,
		message.CreatedAt.UnixNano(),
		message.ID,
	)
	raw, err := json.Marshal(message)
	if err != nil {
		return Message{}, err
	}

	err = a.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
	if err != nil {
		return Message{}, err
	}
	return message, nil
}

/*
Recent returns up to the configured limit of the newest messages for a room,
in ascending chronological order.  The iterator walks the padded-timestamp
keys in reverse to find the newest entries, then the slice is flipped.
*/
func (a MessageArchive) Recent(roomID string) ([]Message, error) {
	var raws [][]byte
	err := a.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", roomID))

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key for this room, then walk back.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(raws) == a.limit {
				a.log.Debug("history limit reached", "room", roomID, "limit", a.limit)
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raws = append(raws, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(raws))
	for _, raw := range raws {
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return lo.Reverse(messages), nil
}
