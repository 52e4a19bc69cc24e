package ws

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/treepeck/relay/internal/auth"
	"github.com/treepeck/relay/pkg/event"
)

// Connection parameters.
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period.  Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

/*
client manages a single authenticated connection and provides the read and
write pumps.

The send channel exists because the Gorilla WebSocket library allows only
one concurrent writer per connection: every goroutine that wants to reach
this client hands raw bytes to send and the write pump serializes them.
*/
type client struct {
	// identity is attached at handshake time and immutable afterwards.
	identity auth.Identity
	// rooms the client has joined.  Confined to the relay goroutine.
	rooms map[string]struct{}
	// unregister notifies the relay about the client disconnection.
	unregister chan<- *client
	// forward carries decoded client events to the relay.
	forward chan<- inbound
	// send receives pre-encoded envelopes to write to the connection.
	send chan []byte
	conn *websocket.Conn
}

func newClient(
	identity auth.Identity,
	conn *websocket.Conn,
	unregister chan<- *client,
	forward chan<- inbound,
) *client {
	return &client{
		identity:   identity,
		rooms:      make(map[string]struct{}),
		unregister: unregister,
		forward:    forward,
		send:       make(chan []byte, 192),
		conn:       conn,
	}
}

/*
read reads events from the connection sequentially and forwards them to the
relay.  A malformed or unknown event interrupts the connection.
*/
func (c *client) read() {
	defer c.cleanup()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var e event.Envelope
		if err := c.conn.ReadJSON(&e); err != nil {
			return
		}

		switch e.Action {
		case event.ActionJoinRoom, event.ActionRoomMessage,
			event.ActionKickUser, event.ActionDeleteRoom:
			c.forward <- inbound{c: c, env: e}

		default:
			return
		}
	}
}

/*
write takes envelopes from the send channel and writes them to the
connection sequentially.  Sends ping frames to maintain a heartbeat; without
it idle connections are dropped by intermediaries after a couple of minutes.
*/
func (c *client) write() {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}

		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// cleanup closes the connection and reports the disconnect to the relay,
// which owns the send channel and the shared maps.
func (c *client) cleanup() {
	c.conn.Close()
	c.unregister <- c
}
