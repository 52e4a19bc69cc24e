package ws

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

/*
upgrader is used to establish a WebSocket connection.  It is safe for
concurrent use.
*/
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

/*
HandleConnection authenticates the handshake credential, upgrades the
request and registers the connection with the relay.

The credential travels out-of-band: a "token" query parameter or an
Authorization bearer header, never a regular event.  A missing or invalid
credential rejects the attempt with 401 before any event can be processed;
the client must reconnect with a valid token.
*/
func (r *Relay) HandleConnection(rw http.ResponseWriter, req *http.Request) {
	token := req.URL.Query().Get("token")
	if token == "" {
		if h := req.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if token == "" {
		http.Error(rw, "Authentication error: token not provided.", http.StatusUnauthorized)
		return
	}

	identity, err := r.verifier.VerifyToken(token)
	if err != nil {
		http.Error(rw, "Authentication error: invalid token.", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(rw, req, nil)
	if err != nil {
		// Upgrade already replied to the peer.
		return
	}

	r.register <- newClient(identity, conn, r.unregister, r.bus)
}
