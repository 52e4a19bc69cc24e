package ws

import (
	"sync"

	"github.com/samber/lo"

	"github.com/treepeck/relay/pkg/event"
)

/*
presence is the in-memory record of which identities are online in each
room.  It is the source of truth for "update presence" snapshots.  Room
entries are created lazily on first join and pruned when they empty.

Unlike subs it is guarded by its own mutex instead of loop confinement, so
it stays safe to read from outside the relay goroutine.  Today every caller
(finishJoin, handleUnregister) runs on the loop.
*/
type presence struct {
	mu    sync.RWMutex
	rooms map[string]map[string]event.Member
}

func newPresence() *presence {
	return &presence{rooms: make(map[string]map[string]event.Member)}
}

/*
join inserts the member's record for the room.  Re-joining an already
present identity overwrites the record in place, so a member never appears
twice in a snapshot.
*/
func (p *presence) join(roomKey string, m event.Member) {
	p.mu.Lock()
	defer p.mu.Unlock()

	members, exists := p.rooms[roomKey]
	if !exists {
		members = make(map[string]event.Member)
		p.rooms[roomKey] = members
	}
	members[m.ID] = m
}

// leave removes the identity from the room and reports whether it was
// present.
func (p *presence) leave(roomKey, identityID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	members, exists := p.rooms[roomKey]
	if !exists {
		return false
	}
	if _, present := members[identityID]; !present {
		return false
	}

	delete(members, identityID)
	if len(members) == 0 {
		delete(p.rooms, roomKey)
	}
	return true
}

/*
drop removes the identity from every room it is present in and returns the
affected room keys.  Called on disconnect; an identity that never joined
yields nothing.
*/
func (p *presence) drop(identityID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var affected []string
	for roomKey, members := range p.rooms {
		if _, present := members[identityID]; !present {
			continue
		}
		delete(members, identityID)
		if len(members) == 0 {
			delete(p.rooms, roomKey)
		}
		affected = append(affected, roomKey)
	}
	return affected
}

// snapshot returns the current online-member list for the room.
func (p *presence) snapshot(roomKey string) []event.Member {
	p.mu.RLock()
	defer p.mu.RUnlock()

	members := lo.Values(p.rooms[roomKey])
	if members == nil {
		members = []event.Member{}
	}
	return members
}
