package store

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()

	options := badger.DefaultOptions(t.TempDir()).WithLogger(nil)
	db, err := badger.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRoomDirectoryLifecycle(t *testing.T) {
	req := require.New(t)
	d := NewRoomDirectory(openTestDB(t), testLogger())

	created, err := d.CreateRoom("General", "abc123", "owner-1")
	req.NoError(err)
	req.NotEmpty(created.ID)
	req.Equal([]string{"owner-1"}, created.Members)

	_, err = d.CreateRoom("Clone", "abc123", "owner-2")
	req.ErrorIs(err, ErrRoomExists)

	found, err := d.FindByKey("abc123")
	req.NoError(err)
	req.Equal(created, found)

	_, err = d.FindByKey("missing")
	req.ErrorIs(err, ErrRoomNotFound)

	req.NoError(d.DeleteRoom("abc123"))
	_, err = d.FindByKey("abc123")
	req.ErrorIs(err, ErrRoomNotFound)
	req.ErrorIs(d.DeleteRoom("abc123"), ErrRoomNotFound)
}

func TestRoomDirectoryMembership(t *testing.T) {
	req := require.New(t)
	d := NewRoomDirectory(openTestDB(t), testLogger())

	_, err := d.CreateRoom("General", "abc123", "owner-1")
	req.NoError(err)

	req.NoError(d.AddMember("abc123", "u2"))
	// Adding an existing member is a no-op.
	req.NoError(d.AddMember("abc123", "u2"))

	members, err := d.Members("abc123")
	req.NoError(err)
	req.Equal([]string{"owner-1", "u2"}, members)

	req.NoError(d.RemoveMember("abc123", "u2"))
	members, err = d.Members("abc123")
	req.NoError(err)
	req.Equal([]string{"owner-1"}, members)

	req.ErrorIs(d.AddMember("missing", "u2"), ErrRoomNotFound)
}

func TestRoomsByMember(t *testing.T) {
	req := require.New(t)
	d := NewRoomDirectory(openTestDB(t), testLogger())

	_, err := d.CreateRoom("A", "room-a", "u1")
	req.NoError(err)
	_, err = d.CreateRoom("B", "room-b", "u2")
	req.NoError(err)
	req.NoError(d.AddMember("room-b", "u1"))

	rooms, err := d.RoomsByMember("u1")
	req.NoError(err)
	req.Len(rooms, 2)

	rooms, err = d.RoomsByMember("u2")
	req.NoError(err)
	req.Len(rooms, 1)
	req.Equal("room-b", rooms[0].Key)
}

func TestMessageArchiveOrderAndLimit(t *testing.T) {
	req := require.New(t)
	a := NewMessageArchive(openTestDB(t), testLogger(), 3)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	contents := []string{"one", "two", "three", "four", "five"}
	for i, c := range contents {
		_, err := a.Append(Message{
			RoomID:     "r1",
			SenderID:   "u1",
			SenderName: "alice",
			Content:    c,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
	}
	// A message in another room must not leak into r1's history.
	_, err := a.Append(Message{RoomID: "r2", SenderID: "u2", Content: "other"})
	req.NoError(err)

	recent, err := a.Recent("r1")
	req.NoError(err)
	req.Len(recent, 3)
	req.Equal("three", recent[0].Content)
	req.Equal("four", recent[1].Content)
	req.Equal("five", recent[2].Content)
}

func TestMessageArchiveEmptyRoom(t *testing.T) {
	req := require.New(t)
	a := NewMessageArchive(openTestDB(t), testLogger(), 50)

	recent, err := a.Recent("empty")
	req.NoError(err)
	req.Empty(recent)
}

func TestMessageArchiveFillsDefaults(t *testing.T) {
	req := require.New(t)
	a := NewMessageArchive(openTestDB(t), testLogger(), 50)

	stored, err := a.Append(Message{RoomID: "r1", SenderID: "u1", Content: "hi"})
	req.NoError(err)
	req.NotEqual(stored.ID.String(), "00000000-0000-0000-0000-000000000000")
	req.False(stored.CreatedAt.IsZero())

	recent, err := a.Recent("r1")
	req.NoError(err)
	req.Len(recent, 1)
	req.Equal(stored.ID, recent[0].ID)
	req.Equal("hi", recent[0].Content)
}
