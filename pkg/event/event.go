/*
Package event defines the envelope and payload types exchanged between the
relay and its WebSocket clients, and between the relay and the backend
services that publish moderation actions.
*/
package event

import (
	"encoding/json"
	"log"
	"time"
)

/*
Envelope wraps every event sent in either direction.  Payload stays raw so
that a broadcast encodes an event once instead of once per subscriber.
*/
type Envelope struct {
	Payload json.RawMessage `json:"p"`
	Action  string          `json:"a"`
}

// Events sent by clients.
const (
	ActionJoinRoom    = "join room"
	ActionRoomMessage = "room message"
	ActionKickUser    = "kick user"
	ActionDeleteRoom  = "delete room"
)

// Events sent by the relay.
const (
	ActionChatHistory    = "chat history"
	ActionUpdatePresence = "update presence"
	ActionMemberJoined   = "member joined"
	ActionUserLeft       = "user left"
	ActionMemberLeft     = "member left"
	ActionNewMessage     = "new message"
	ActionKicked         = "kicked"
	ActionRoomDeleted    = "room deleted"
	ActionError          = "error"
)

/*
RoomMessage is the payload of the "room message" client event.  RoomKey is
the human-shareable key, not the internal room id.
*/
type RoomMessage struct {
	RoomKey string `json:"roomId"  validate:"required"`
	Message string `json:"message" validate:"required"`
}

// KickUser is the payload of the "kick user" client event.  The caller is
// trusted: ownership was checked by the service that emitted the action.
type KickUser struct {
	RoomKey        string `json:"roomId"   validate:"required"`
	MemberID       string `json:"memberId" validate:"required"`
	MemberUsername string `json:"memberUsername"`
}

// DeleteRoom is the payload of the "delete room" client event.
type DeleteRoom struct {
	RoomKey string `json:"roomId" validate:"required"`
}

/*
Member is a lightweight user projection.  Presence snapshots omit the
avatar; "member joined" records always carry one.
*/
type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Message is the enriched chat message broadcast as "new message" and
// replayed inside "chat history".
type Message struct {
	ID        string    `json:"id"`
	RoomKey   string    `json:"roomId"`
	Content   string    `json:"content"`
	Sender    Member    `json:"sender"`
	CreatedAt time.Time `json:"createdAt"`
}

// Kicked is sent privately to the kicked identity.
type Kicked struct {
	RoomKey string `json:"roomId"`
	Message string `json:"message"`
}

// UserLeft is broadcast on kick and carries the display name only.
type UserLeft struct {
	Username string `json:"username"`
}

// MemberLeft is broadcast on kick and carries the identity id only.
type MemberLeft struct {
	MemberID string `json:"memberId"`
}

// RoomDeleted is broadcast when the owner deletes a room.
type RoomDeleted struct {
	Message string `json:"message"`
}

/*
EncodeOrPanic encodes a payload into a ready-to-send envelope, skipping the
error check.  Every payload in this package is marshalable, so an error here
means a programming mistake and panics.
*/
func EncodeOrPanic(action string, v any) []byte {
	p, err := json.Marshal(v)
	if err != nil {
		log.Panicf("cannot encode %q payload %v: %s", action, v, err)
	}
	raw, err := json.Marshal(Envelope{Action: action, Payload: p})
	if err != nil {
		log.Panicf("cannot encode %q envelope: %s", action, err)
	}
	return raw
}
