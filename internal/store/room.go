/*
Package store persists rooms and archived messages in BadgerDB.  The room
CRUD service owns the same database; the relay mostly reads from it.
*/
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room key already taken")
)

/*
Room mirrors the room documents owned by the CRUD layer.  Key is the
human-shareable string clients pass around; ID is the internal identity
messages are archived under.
*/
type Room struct {
	ID      string   `json:"id"`
	Key     string   `json:"key"`
	Name    string   `json:"name"`
	OwnerID string   `json:"ownerId"`
	Members []string `json:"members"`
}

// RoomDirectory resolves room keys and mutates membership.  Rooms are keyed
// as "room:{key}" with JSON-encoded values.
type RoomDirectory struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomDirectory(db *badger.DB, log *slog.Logger) RoomDirectory {
	return RoomDirectory{db: db, log: log}
}

// CreateRoom inserts a new room under the given key.  The internal id is
// generated here and never shown to clients.
func (d RoomDirectory) CreateRoom(name, key, ownerID string) (Room, error) {
	room := Room{
		ID:      uuid.NewString(),
		Key:     key,
		Name:    name,
		OwnerID: ownerID,
		Members: []string{ownerID},
	}

	err := d.db.Update(func(txn *badger.Txn) error {
		k := roomKey(key)
		if _, err := txn.Get(k); err == nil {
			return ErrRoomExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		raw, err := json.Marshal(room)
		if err != nil {
			return err
		}
		return txn.Set(k, raw)
	})
	if err != nil {
		return Room{}, err
	}

	d.log.Debug("room created", "key", room.Key, "owner", room.OwnerID)
	return room, nil
}

// FindByKey resolves a human-shareable room key.
func (d RoomDirectory) FindByKey(key string) (Room, error) {
	var room Room
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRoomNotFound
		} else if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &room)
		})
	})
	if err != nil {
		return Room{}, err
	}
	return room, nil
}

// RoomsByMember lists every room the user belongs to, via a prefix scan
// over all room documents.
func (d RoomDirectory) RoomsByMember(userID string) ([]Room, error) {
	var rooms []Room
	err := d.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte("room:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var room Room
				if err := json.Unmarshal(value, &room); err != nil {
					return err
				}
				if lo.Contains(room.Members, userID) {
					rooms = append(rooms, room)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rooms, err
}

// DeleteRoom removes the room document.  Archived messages are left behind;
// they become unreachable once the key is gone.
func (d RoomDirectory) DeleteRoom(key string) error {
	return d.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(key)); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRoomNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(roomKey(key))
	})
}

// AddMember adds the user to the room membership if absent.
func (d RoomDirectory) AddMember(key, userID string) error {
	return d.mutateMembers(key, func(members []string) []string {
		if lo.Contains(members, userID) {
			return members
		}
		return append(members, userID)
	})
}

// RemoveMember removes the user from the room membership if present.
func (d RoomDirectory) RemoveMember(key, userID string) error {
	return d.mutateMembers(key, func(members []string) []string {
		return lo.Without(members, userID)
	})
}

// Members returns the room's member identity ids.
func (d RoomDirectory) Members(key string) ([]string, error) {
	room, err := d.FindByKey(key)
	if err != nil {
		return nil, err
	}
	return room.Members, nil
}

// mutateMembers applies fn to the membership list inside a single
// read-modify-write transaction.
func (d RoomDirectory) mutateMembers(key string, fn func([]string) []string) error {
	return d.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRoomNotFound
		} else if err != nil {
			return err
		}

		var room Room
		err = item.Value(func(value []byte) error {
			return json.Unmarshal(value, &room)
		})
		if err != nil {
			return err
		}

		room.Members = fn(room.Members)

		raw, err := json.Marshal(room)
		if err != nil {
			return err
		}
		return txn.Set(roomKey(key), raw)
	})
}

func roomKey(key string) []byte {
	return fmt.Appendf(nil, "room:%s", key)
}
