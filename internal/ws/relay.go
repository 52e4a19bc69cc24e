package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/treepeck/relay/internal/auth"
	"github.com/treepeck/relay/internal/moderation"
	"github.com/treepeck/relay/internal/store"
	"github.com/treepeck/relay/pkg/event"
)

// Placeholder shown when the credential carries no avatar.
const defaultAvatar = "https://via.placeholder.com/32"

// Texts shown to clients.
const (
	textRoomNotFound = "Room not found"
	textJoinFailed   = "Server error while joining room."
	textSendFailed   = "Server error while sending message."
	textKicked       = "You have been kicked by the owner."
	textRoomDeleted  = "This room has been deleted by the owner."
)

// Directory resolves room keys.  Satisfied by store.RoomDirectory.
type Directory interface {
	FindByKey(key string) (store.Room, error)
}

// Archive persists and replays chat messages.  Satisfied by
// store.MessageArchive.
type Archive interface {
	Append(m store.Message) (store.Message, error)
	Recent(roomID string) ([]store.Message, error)
}

// inbound is a decoded client event together with its origin.  Actions
// injected by the backend bridge carry no client.
type inbound struct {
	c   *client
	env event.Envelope
}

/*
Relay accepts authenticated connections and routes join, message and
moderation events between them.

All broadcast groups, the identity map and the set of live clients are
owned by the single Run goroutine: every mutation happens there, so none of
them need locks.  Directory lookups and archive writes run in per-event
goroutines and post a completion closure to the done channel; the loop
executes completions in arrival order, which fixes the per-room broadcast
order without ever blocking the loop on storage.
*/
type Relay struct {
	log       *slog.Logger
	verifier  auth.Verifier
	directory Directory
	archive   Archive
	// censor is optional; nil disables content filtering.
	censor   *moderation.Censor
	validate *validator.Validate

	clients  map[*client]struct{}
	subs     *subs
	presence *presence

	register   chan *client
	unregister chan *client
	bus        chan inbound
	done       chan func()
}

func NewRelay(
	log *slog.Logger,
	verifier auth.Verifier,
	directory Directory,
	archive Archive,
	censor *moderation.Censor,
) *Relay {
	return &Relay{
		log:        log,
		verifier:   verifier,
		directory:  directory,
		archive:    archive,
		censor:     censor,
		validate:   validator.New(),
		clients:    make(map[*client]struct{}),
		subs:       newSubs(),
		presence:   newPresence(),
		register:   make(chan *client),
		unregister: make(chan *client),
		bus:        make(chan inbound),
		done:       make(chan func()),
	}
}

// Run receives events one at a time and forwards them to the corresponding
// handlers.  It returns when ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-r.register:
			r.handleRegister(c)

		case c := <-r.unregister:
			r.handleUnregister(c)

		case in := <-r.bus:
			r.routeEvent(in)

		case fn := <-r.done:
			fn()
		}
	}
}

// complete hands a persist-completion closure back to the loop.
func (r *Relay) complete(fn func()) {
	r.done <- fn
}

func (r *Relay) handleRegister(c *client) {
	r.clients[c] = struct{}{}
	r.subs.bind(c)

	go c.read()
	go c.write()

	r.log.Info("client connected", "client", c.identity.Username)
}

/*
handleUnregister removes the disconnecting client from every broadcast
group, then removes its identity from each room's presence set and
broadcasts the updated snapshot to the affected rooms.  This is the only
place presence is removed on connection loss.
*/
func (r *Relay) handleUnregister(c *client) {
	if _, exists := r.clients[c]; !exists {
		return
	}
	delete(r.clients, c)
	r.subs.release(c)
	close(c.send)

	for _, roomKey := range r.presence.drop(c.identity.ID) {
		r.broadcast(roomKey, event.ActionUpdatePresence, r.presence.snapshot(roomKey))
	}

	r.log.Info("client disconnected", "client", c.identity.Username)
}

func (r *Relay) routeEvent(in inbound) {
	switch in.env.Action {
	case event.ActionJoinRoom:
		if in.c == nil {
			return
		}
		var key string
		if err := json.Unmarshal(in.env.Payload, &key); err != nil || key == "" {
			// An empty key can never resolve; same outcome as an unknown one.
			r.sendEvent(in.c, event.ActionError, textRoomNotFound)
			return
		}
		go r.resolveJoin(in.c, key)

	case event.ActionRoomMessage:
		if in.c == nil {
			return
		}
		var p event.RoomMessage
		if err := json.Unmarshal(in.env.Payload, &p); err != nil {
			r.log.Debug("malformed room message", "client", in.c.identity.ID, "err", err)
			return
		}
		if err := r.validate.Struct(p); err != nil {
			r.log.Debug("invalid room message", "client", in.c.identity.ID, "err", err)
			return
		}
		go r.relayMessage(in.c, p)

	case event.ActionKickUser:
		var p event.KickUser
		if err := json.Unmarshal(in.env.Payload, &p); err != nil {
			r.log.Debug("malformed kick", "err", err)
			return
		}
		if err := r.validate.Struct(p); err != nil {
			r.log.Debug("invalid kick", "err", err)
			return
		}
		r.handleKick(p)

	case event.ActionDeleteRoom:
		var p event.DeleteRoom
		if err := json.Unmarshal(in.env.Payload, &p); err != nil {
			r.log.Debug("malformed delete room", "err", err)
			return
		}
		if err := r.validate.Struct(p); err != nil {
			r.log.Debug("invalid delete room", "err", err)
			return
		}
		r.broadcast(p.RoomKey, event.ActionRoomDeleted,
			event.RoomDeleted{Message: textRoomDeleted})
	}
}

/*
resolveJoin resolves the room key off the loop.  An unresolvable key is
reported to the requester only, with no side effects.
*/
func (r *Relay) resolveJoin(c *client, key string) {
	room, err := r.directory.FindByKey(key)
	if errors.Is(err, store.ErrRoomNotFound) {
		r.complete(func() { r.sendEvent(c, event.ActionError, textRoomNotFound) })
		return
	}
	if err != nil {
		r.log.Error("join room", "client", c.identity.ID, "room", key, "err", err)
		r.complete(func() { r.sendEvent(c, event.ActionError, textJoinFailed) })
		return
	}
	r.complete(func() { r.finishJoin(c, room) })
}

/*
finishJoin runs on the loop once the room is resolved: it subscribes the
connection, announces the joiner to the others, updates presence and
broadcasts the full snapshot, then replays history privately.  Join is not
transactional; effects applied before a late failure stand.
*/
func (r *Relay) finishJoin(c *client, room store.Room) {
	if _, exists := r.clients[c]; !exists {
		// Disconnected while the lookup was in flight.
		return
	}

	r.subs.subscribe(room.Key, c)

	joined := event.Member{
		ID:       c.identity.ID,
		Username: c.identity.Username,
		Avatar:   avatarOrDefault(c.identity.Avatar),
	}
	r.broadcastExcept(room.Key, c, event.ActionMemberJoined, joined)

	r.presence.join(room.Key, event.Member{
		ID:       c.identity.ID,
		Username: c.identity.Username,
	})
	r.broadcast(room.Key, event.ActionUpdatePresence, r.presence.snapshot(room.Key))

	r.log.Info("client joined room", "client", c.identity.Username, "room", room.Key)

	go r.replayHistory(c, room)
}

// replayHistory sends the most recent archived messages privately to the
// joining connection.
func (r *Relay) replayHistory(c *client, room store.Room) {
	messages, err := r.archive.Recent(room.ID)
	if err != nil {
		r.log.Error("chat history", "client", c.identity.ID, "room", room.Key, "err", err)
		r.complete(func() { r.sendEvent(c, event.ActionError, textJoinFailed) })
		return
	}

	history := make([]event.Message, 0, len(messages))
	for _, m := range messages {
		history = append(history, toWire(m, room.Key))
	}
	r.complete(func() { r.sendEvent(c, event.ActionChatHistory, history) })
}

/*
relayMessage resolves, persists and broadcasts one chat message off the
loop.  An unresolvable room key drops the message silently: joining an
unknown room reports an error, sending to one does not, and clients depend
on that asymmetry.  The sender does not echo locally; it hears its own
message through the broadcast like everyone else.

Per-room broadcast order is the order completions arrive on the loop.  Two
concurrent sends may commit to the archive in one order and reach the loop
in the other, so live order can diverge from archive timestamp order in
that window; completion-arrival order is the one that counts.
*/
func (r *Relay) relayMessage(c *client, p event.RoomMessage) {
	room, err := r.directory.FindByKey(p.RoomKey)
	if errors.Is(err, store.ErrRoomNotFound) {
		r.log.Debug("message to unknown room", "client", c.identity.ID, "room", p.RoomKey)
		return
	}
	if err != nil {
		r.log.Error("room message", "client", c.identity.ID, "room", p.RoomKey, "err", err)
		r.complete(func() { r.sendEvent(c, event.ActionError, textSendFailed) })
		return
	}

	content := p.Message
	if r.censor != nil {
		content = r.censor.Censor(content)
	}

	stored, err := r.archive.Append(store.Message{
		RoomID:       room.ID,
		SenderID:     c.identity.ID,
		SenderName:   c.identity.Username,
		SenderAvatar: c.identity.Avatar,
		Content:      content,
	})
	if err != nil {
		r.log.Error("archive append", "client", c.identity.ID, "room", p.RoomKey, "err", err)
		r.complete(func() { r.sendEvent(c, event.ActionError, textSendFailed) })
		return
	}

	wire := toWire(stored, room.Key)
	r.complete(func() {
		r.broadcast(room.Key, event.ActionNewMessage, wire)
	})
}

/*
handleKick notifies the target privately and removes it from the room's
broadcast group without closing its connection; the target may stay in
other rooms.  The "user left"/"member left" broadcasts go out whether or
not the target is online, so the other clients' member lists converge.
Ownership of the room was checked by whoever emitted the action.
*/
func (r *Relay) handleKick(p event.KickUser) {
	if target, online := r.subs.lookup(p.MemberID); online {
		r.sendEvent(target, event.ActionKicked, event.Kicked{
			RoomKey: p.RoomKey,
			Message: textKicked,
		})
		r.subs.unsubscribe(p.RoomKey, target)
	}

	r.broadcast(p.RoomKey, event.ActionUserLeft, event.UserLeft{Username: p.MemberUsername})
	r.broadcast(p.RoomKey, event.ActionMemberLeft, event.MemberLeft{MemberID: p.MemberID})
}

/*
ConsumeActions feeds moderation actions published by the room CRUD service
into the relay.  Only kick and delete actions are accepted; anything else
on the queue is a publisher bug.
*/
func (r *Relay) ConsumeActions(feed <-chan []byte) {
	for raw := range feed {
		var env event.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			r.log.Warn("malformed bridge action", "err", err)
			continue
		}

		switch env.Action {
		case event.ActionKickUser, event.ActionDeleteRoom:
			r.bus <- inbound{env: env}
		default:
			r.log.Warn("unexpected bridge action", "action", env.Action)
		}
	}
}

// broadcast sends an event to every connection subscribed to the room.
func (r *Relay) broadcast(roomKey, action string, v any) {
	r.broadcastExcept(roomKey, nil, action, v)
}

/*
broadcastExcept encodes the event once and queues it to every subscriber of
the room but skip.  A subscriber with a saturated send buffer is dropped
instead of blocking the loop.
*/
func (r *Relay) broadcastExcept(roomKey string, skip *client, action string, v any) {
	raw := event.EncodeOrPanic(action, v)

	var dead []*client
	for c := range r.subs.group(roomKey) {
		if c == skip {
			continue
		}
		select {
		case c.send <- raw:
		default:
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		r.log.Warn("dropping slow client", "client", c.identity.ID)
		c.conn.Close()
		r.handleUnregister(c)
	}
}

// sendEvent queues an event privately to one connection.  No-op when the
// client already unregistered.
func (r *Relay) sendEvent(c *client, action string, v any) {
	if _, exists := r.clients[c]; !exists {
		return
	}
	select {
	case c.send <- event.EncodeOrPanic(action, v):
	default:
		r.log.Warn("dropping slow client", "client", c.identity.ID)
		c.conn.Close()
		r.handleUnregister(c)
	}
}

func toWire(m store.Message, roomKey string) event.Message {
	return event.Message{
		ID:        m.ID.String(),
		RoomKey:   roomKey,
		Content:   m.Content,
		Sender: event.Member{
			ID:       m.SenderID,
			Username: m.SenderName,
			Avatar:   m.SenderAvatar,
		},
		CreatedAt: m.CreatedAt,
	}
}

func avatarOrDefault(avatar string) string {
	if avatar == "" {
		return defaultAvatar
	}
	return avatar
}
