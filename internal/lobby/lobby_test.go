// internal/lobby/lobby_test.go
package lobby

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmunro/partyhub/internal/models"
)

func newTestLobby(host string) *Lobby {
	return New(models.Lobby{
		ID:      uuid.New(),
		Name:    "Test Party",
		Host:    host,
		Members: []string{host},
		Ready:   map[string]bool{host: false},
	})
}

// fakeConn returns a subscriber with a buffer large enough that no test
// broadcast is ever dropped.
func fakeConn(username string) *Connection {
	return &Connection{
		Username: username,
		OutChan:  make(chan map[string]interface{}, 256),
	}
}

func drain(conn *Connection) []map[string]interface{} {
	var msgs []map[string]interface{}
	for {
		select {
		case msg := <-conn.OutChan:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func apply(l *Lobby, user string, a Action) {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	l.ApplyUnsafe(user, a, time.Now())
}

// assertReadyMatchesMembers checks the readiness-key invariant: the key
// set of Ready equals the Members set exactly.
func assertReadyMatchesMembers(t *testing.T, l *Lobby) {
	t.Helper()
	require.Equal(t, len(l.State.Members), len(l.State.Ready), "ready map and member list sizes diverged")
	for _, m := range l.State.Members {
		_, ok := l.State.Ready[m]
		require.True(t, ok, "member %s has no readiness entry", m)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	l := newTestLobby("alice")

	apply(l, "bob", Action{Type: ActionJoin})
	before := l.State.Clone()

	apply(l, "bob", Action{Type: ActionJoin})
	assert.Equal(t, before.Members, l.State.Members)
	assert.Equal(t, before.Ready, l.State.Ready)
	assertReadyMatchesMembers(t, l)
}

func TestJoinPreservesInsertionOrder(t *testing.T) {
	l := newTestLobby("alice")
	apply(l, "bob", Action{Type: ActionJoin})
	apply(l, "carol", Action{Type: ActionJoin})

	assert.Equal(t, []string{"alice", "bob", "carol"}, l.State.Members)
	assertReadyMatchesMembers(t, l)
}

func TestReadinessKeysTrackMembersAcrossActions(t *testing.T) {
	l := newTestLobby("alice")
	apply(l, "bob", Action{Type: ActionJoin})
	apply(l, "bob", Action{Type: ActionToggleReady})
	apply(l, "carol", Action{Type: ActionJoin})
	apply(l, "alice", Action{Type: ActionKick, Payload: "carol"})
	apply(l, "bob", Action{Type: ActionJoin})

	assertReadyMatchesMembers(t, l)
	assert.True(t, l.State.Ready["bob"], "bob toggled ready and never left")
}

func TestToggleReadyFlips(t *testing.T) {
	l := newTestLobby("alice")

	apply(l, "alice", Action{Type: ActionToggleReady})
	assert.True(t, l.State.Ready["alice"])

	apply(l, "alice", Action{Type: ActionToggleReady})
	assert.False(t, l.State.Ready["alice"])
}

func TestChatBoundedAtFifty(t *testing.T) {
	l := newTestLobby("alice")

	for i := 0; i < 60; i++ {
		apply(l, "alice", Action{Type: ActionChat, Payload: fmt.Sprintf("msg-%d", i)})
	}

	require.Len(t, l.State.Chat, 50)
	// The 50 most recent survive, in submission order.
	assert.Equal(t, "msg-10", l.State.Chat[0].Text)
	assert.Equal(t, "msg-59", l.State.Chat[49].Text)
}

func TestChatUnderBoundKeepsEverything(t *testing.T) {
	l := newTestLobby("alice")
	for i := 0; i < 7; i++ {
		apply(l, "alice", Action{Type: ActionChat, Payload: fmt.Sprintf("msg-%d", i)})
	}
	assert.Len(t, l.State.Chat, 7)
}

func TestNonMemberActionsAreNoOps(t *testing.T) {
	l := newTestLobby("alice")
	before := l.State.Clone()

	apply(l, "mallory", Action{Type: ActionChat, Payload: "hi"})
	apply(l, "mallory", Action{Type: ActionToggleReady})
	apply(l, "mallory", Action{Type: ActionAddTrack, Payload: "https://youtu.be/abc"})

	assert.Equal(t, before, l.State.Clone())
}

func TestQueueIsFIFO(t *testing.T) {
	l := newTestLobby("alice")

	apply(l, "alice", Action{Type: ActionAddTrack, Payload: "https://youtu.be/aaa"})
	apply(l, "alice", Action{Type: ActionAddTrack, Payload: "https://youtu.be/bbb"})
	apply(l, "alice", Action{Type: ActionNextTrack})

	require.NotNil(t, l.State.Current)
	assert.Equal(t, "aaa", l.State.Current.TrackID)
	require.Len(t, l.State.Queue, 1)
	assert.Equal(t, "bbb", l.State.Queue[0].TrackID)
}

func TestNextTrackOnEmptyQueueClearsCurrent(t *testing.T) {
	l := newTestLobby("alice")
	apply(l, "alice", Action{Type: ActionAddTrack, Payload: "https://youtu.be/aaa"})
	apply(l, "alice", Action{Type: ActionNextTrack})
	apply(l, "alice", Action{Type: ActionNextTrack})

	assert.Nil(t, l.State.Current)
	assert.Empty(t, l.State.Queue)
}

func TestHostOnlyActionsIgnoreNonHost(t *testing.T) {
	l := newTestLobby("alice")
	apply(l, "bob", Action{Type: ActionJoin})
	apply(l, "alice", Action{Type: ActionAddTrack, Payload: "https://youtu.be/aaa"})

	apply(l, "bob", Action{Type: ActionNextTrack})
	assert.Nil(t, l.State.Current, "non-host must not advance playback")
	assert.Len(t, l.State.Queue, 1)

	apply(l, "bob", Action{Type: ActionKick, Payload: "alice"})
	assert.Equal(t, []string{"alice", "bob"}, l.State.Members, "non-host must not kick")
}

func TestMalformedTrackRefIsANoOp(t *testing.T) {
	l := newTestLobby("alice")
	apply(l, "alice", Action{Type: ActionAddTrack, Payload: "definitely not a video"})
	assert.Empty(t, l.State.Queue)
}

func TestKickRemovesMembershipAndReadiness(t *testing.T) {
	l := newTestLobby("alice")
	apply(l, "bob", Action{Type: ActionJoin})
	apply(l, "bob", Action{Type: ActionToggleReady})

	apply(l, "alice", Action{Type: ActionKick, Payload: "bob"})

	assert.Equal(t, []string{"alice"}, l.State.Members)
	_, ok := l.State.Ready["bob"]
	assert.False(t, ok, "kicked member keeps no readiness entry")
	assertReadyMatchesMembers(t, l)
}

func TestKickSelfTargetingHostIsANoOp(t *testing.T) {
	l := newTestLobby("alice")
	apply(l, "bob", Action{Type: ActionJoin})

	apply(l, "alice", Action{Type: ActionKick, Payload: "alice"})

	assert.Equal(t, []string{"alice", "bob"}, l.State.Members, "host keeps their seat")
	_, ok := l.State.Ready["alice"]
	assert.True(t, ok)
	assertReadyMatchesMembers(t, l)

	// Host-only actions still work; the lobby is not orphaned.
	apply(l, "alice", Action{Type: ActionKick, Payload: "bob"})
	assert.Equal(t, []string{"alice"}, l.State.Members)
}

func TestKickUnknownTargetIsANoOp(t *testing.T) {
	l := newTestLobby("alice")
	before := l.State.Clone()
	apply(l, "alice", Action{Type: ActionKick, Payload: "ghost"})
	assert.Equal(t, before, l.State.Clone())
}

func TestUnknownActionTypeIsANoOp(t *testing.T) {
	l := newTestLobby("alice")
	before := l.State.Clone()
	apply(l, "alice", Action{Type: "selfDestruct"})
	assert.Equal(t, before, l.State.Clone())
}

func TestSyncSignalsSkipHost(t *testing.T) {
	l := newTestLobby("alice")
	apply(l, "bob", Action{Type: ActionJoin})

	host := fakeConn("alice")
	guest := fakeConn("bob")
	l.Mu.Lock()
	l.AddConnectionUnsafe(host)
	l.AddConnectionUnsafe(guest)
	l.SyncPlayUnsafe("XYZ", 0)
	l.SyncPauseUnsafe(42.5)
	l.Mu.Unlock()

	assert.Empty(t, drain(host), "host must not receive its own sync signals")

	msgs := drain(guest)
	require.Len(t, msgs, 2)
	assert.Equal(t, "syncPlay", msgs[0]["type"])
	assert.Equal(t, "XYZ", msgs[0]["trackId"])
	assert.Equal(t, 0.0, msgs[0]["offset"])
	assert.Equal(t, "syncPause", msgs[1]["type"])
	assert.Equal(t, 42.5, msgs[1]["offset"])
}

func TestReplacingConnectionClosesOldChannel(t *testing.T) {
	l := newTestLobby("alice")
	first := fakeConn("alice")
	second := fakeConn("alice")

	l.Mu.Lock()
	l.AddConnectionUnsafe(first)
	l.AddConnectionUnsafe(second)
	l.Mu.Unlock()

	_, open := <-first.OutChan
	assert.False(t, open, "stale connection channel should be closed")

	l.Mu.Lock()
	assert.Same(t, second, l.Connections["alice"])
	l.Mu.Unlock()
}

// TestWriteToClosedChannelDropsMessage covers the race where a stale
// readPump writes an error event after a rejoin already replaced (and
// closed) its connection.
func TestWriteToClosedChannelDropsMessage(t *testing.T) {
	conn := fakeConn("alice")
	close(conn.OutChan)

	assert.NotPanics(t, func() {
		conn.WriteError("too late")
	})
}

func TestStaleConnectionCleanupDoesNotEvictReplacement(t *testing.T) {
	l := newTestLobby("alice")
	first := fakeConn("alice")
	second := fakeConn("alice")

	l.Mu.Lock()
	l.AddConnectionUnsafe(first)
	l.AddConnectionUnsafe(second)
	l.RemoveConnectionUnsafe(first) // stale; must not remove second
	stillThere := l.Connections["alice"]
	l.Mu.Unlock()

	assert.Same(t, second, stillThere)
}
