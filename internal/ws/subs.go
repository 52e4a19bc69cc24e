package ws

/*
subs stores the broadcast groups and the identity-to-connection map.

By maintaining both mappings, these requirements are satisfied:
 1. Efficient lookup of every subscriber for a given room key;
 2. Efficient lookup of the connection to target for a forced action;
 3. Fast removal of a disconnecting client from every group it joined.

subs is confined to the relay goroutine and needs no locking.
*/
type subs struct {
	byRoom     map[string]map[*client]struct{}
	byIdentity map[string]*client
}

func newSubs() *subs {
	return &subs{
		byRoom:     make(map[string]map[*client]struct{}),
		byIdentity: make(map[string]*client),
	}
}

/*
bind points the client's identity at this connection.  A reconnecting
identity overwrites the prior entry; the superseded connection keeps its
subscriptions and is treated as stale until it closes.
*/
func (s *subs) bind(c *client) {
	s.byIdentity[c.identity.ID] = c
}

// lookup returns the live connection for an identity, if any.
func (s *subs) lookup(identityID string) (*client, bool) {
	c, exists := s.byIdentity[identityID]
	return c, exists
}

// subscribe adds the client to the room's broadcast group.
func (s *subs) subscribe(roomKey string, c *client) {
	group, exists := s.byRoom[roomKey]
	if !exists {
		group = make(map[*client]struct{})
		s.byRoom[roomKey] = group
	}
	group[c] = struct{}{}
	c.rooms[roomKey] = struct{}{}
}

// unsubscribe removes the client from the room's broadcast group, pruning
// the group when it empties.
func (s *subs) unsubscribe(roomKey string, c *client) {
	if group, exists := s.byRoom[roomKey]; exists {
		delete(group, c)
		if len(group) == 0 {
			delete(s.byRoom, roomKey)
		}
	}
	delete(c.rooms, roomKey)
}

/*
release removes the client from every group it joined and drops the
identity entry, unless a newer connection already took it over.
*/
func (s *subs) release(c *client) {
	for roomKey := range c.rooms {
		s.unsubscribe(roomKey, c)
	}
	if s.byIdentity[c.identity.ID] == c {
		delete(s.byIdentity, c.identity.ID)
	}
}

// group returns the broadcast group for a room.  May be nil.
func (s *subs) group(roomKey string) map[*client]struct{} {
	return s.byRoom[roomKey]
}
