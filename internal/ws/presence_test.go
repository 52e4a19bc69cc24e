package ws

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/treepeck/relay/pkg/event"
)

func TestPresenceJoinOverwrites(t *testing.T) {
	req := require.New(t)
	p := newPresence()

	p.join("abc", event.Member{ID: "u1", Username: "alice"})
	p.join("abc", event.Member{ID: "u1", Username: "alice"})
	req.Len(p.snapshot("abc"), 1)
}

func TestPresenceLeave(t *testing.T) {
	req := require.New(t)
	p := newPresence()

	p.join("abc", event.Member{ID: "u1", Username: "alice"})
	req.True(p.leave("abc", "u1"))
	req.False(p.leave("abc", "u1"))
	req.False(p.leave("nope", "u1"))
	req.Empty(p.snapshot("abc"))
}

func TestPresenceDropSpansRooms(t *testing.T) {
	req := require.New(t)
	p := newPresence()

	p.join("abc", event.Member{ID: "u1", Username: "alice"})
	p.join("def", event.Member{ID: "u1", Username: "alice"})
	p.join("def", event.Member{ID: "u2", Username: "bob"})

	affected := p.drop("u1")
	req.ElementsMatch([]string{"abc", "def"}, affected)
	req.Empty(p.snapshot("abc"))
	req.Len(p.snapshot("def"), 1)

	req.Empty(p.drop("u1"))
}

func TestSnapshotNeverNil(t *testing.T) {
	require.NotNil(t, newPresence().snapshot("empty"))
}
