// internal/lobby/lobby.go
package lobby

import (
	"log"
	"sync"
	"time"

	"github.com/tmunro/partyhub/internal/media"
	"github.com/tmunro/partyhub/internal/models"
)

// maxChatLog bounds the chat history; the oldest entry is evicted first.
const maxChatLog = 50

// Lobby is the live, in-memory form of one lobby: the persisted state plus
// the subscriber connections currently following it.
//
// Mu serializes every mutation of the lobby. The registry holds it for the
// whole apply -> store write -> broadcast sequence, which is what gives
// subscribers a total snapshot order per lobby. Methods with the Unsafe
// suffix assume the caller holds Mu.
type Lobby struct {
	State models.Lobby

	// Connections maps username -> live subscriber connection. Membership
	// and subscription are distinct: a member keeps their seat in
	// State.Members after their connection drops.
	Connections map[string]*Connection

	Mu sync.Mutex
}

// New wraps a persisted lobby record into its live form.
func New(state models.Lobby) *Lobby {
	if state.Ready == nil {
		state.Ready = make(map[string]bool)
	}
	return &Lobby{
		State:       state,
		Connections: make(map[string]*Connection),
	}
}

// SnapshotUnsafe returns a deep copy of the lobby state for broadcasting
// or rollback. Assumes Mu is held.
func (l *Lobby) SnapshotUnsafe() models.Lobby {
	return l.State.Clone()
}

// RestoreUnsafe replaces the lobby state wholesale, used to roll back a
// mutation whose store write failed. Assumes Mu is held.
func (l *Lobby) RestoreUnsafe(prev models.Lobby) {
	l.State = prev
}

// isMemberUnsafe reports whether username holds a seat in the lobby.
func (l *Lobby) isMemberUnsafe(username string) bool {
	_, ok := l.State.Ready[username]
	return ok
}

// ApplyUnsafe applies one action to the lobby state. Assumes Mu is held.
//
// Authorization and payload failures are deliberately silent: an
// unauthorized or malformed action leaves the state untouched and surfaces
// no error to anyone, matching the dispatch policy that such attempts are
// indistinguishable from no-ops. The caller broadcasts the post-state
// snapshot either way.
func (l *Lobby) ApplyUnsafe(actingUser string, a Action, now time.Time) {
	if a.Type != ActionJoin && !l.isMemberUnsafe(actingUser) {
		log.Printf("Lobby %s: ignoring %s from non-member %s", l.State.ID, a.Type, actingUser)
		return
	}

	switch a.Type {
	case ActionJoin:
		l.joinUnsafe(actingUser)

	case ActionChat:
		l.State.Chat = append(l.State.Chat, models.ChatMessage{
			Author: actingUser,
			Text:   a.Payload,
			Ts:     now.UnixMilli(),
		})
		if len(l.State.Chat) > maxChatLog {
			l.State.Chat = l.State.Chat[len(l.State.Chat)-maxChatLog:]
		}

	case ActionToggleReady:
		l.State.Ready[actingUser] = !l.State.Ready[actingUser]

	case ActionAddTrack:
		track, err := media.ParseTrackRef(a.Payload, actingUser)
		if err != nil {
			log.Printf("Lobby %s: unparseable track ref from %s: %v", l.State.ID, actingUser, err)
			return
		}
		l.State.Queue = append(l.State.Queue, track)

	case ActionNextTrack:
		if actingUser != l.State.Host {
			return
		}
		if len(l.State.Queue) == 0 {
			l.State.Current = nil
			return
		}
		next := l.State.Queue[0]
		l.State.Queue = append([]models.Track(nil), l.State.Queue[1:]...)
		l.State.Current = &next

	case ActionKick:
		if actingUser != l.State.Host {
			return
		}
		l.kickUnsafe(a.Payload)

	default:
		log.Printf("Lobby %s: unknown action type %q from %s", l.State.ID, a.Type, actingUser)
	}
}

// joinUnsafe seats a user. Joining twice has no additional effect.
func (l *Lobby) joinUnsafe(username string) {
	if l.isMemberUnsafe(username) {
		return
	}
	l.State.Members = append(l.State.Members, username)
	l.State.Ready[username] = false
}

// kickUnsafe removes a seat and its readiness entry. No-op for non-members
// and for the host themselves; the host holds a seat for the lobby's whole
// lifetime, otherwise no one could pass the host-only checks again.
func (l *Lobby) kickUnsafe(target string) {
	if target == l.State.Host || !l.isMemberUnsafe(target) {
		return
	}
	members := l.State.Members[:0]
	for _, m := range l.State.Members {
		if m != target {
			members = append(members, m)
		}
	}
	l.State.Members = members
	delete(l.State.Ready, target)
}

// AddConnectionUnsafe subscribes a connection, replacing any previous
// connection for the same username. Assumes Mu is held.
func (l *Lobby) AddConnectionUnsafe(conn *Connection) {
	if old, ok := l.Connections[conn.Username]; ok && old != conn {
		log.Printf("Lobby %s: user %s re-establishing connection", l.State.ID, conn.Username)
		close(old.OutChan)
		if old.Cancel != nil {
			old.Cancel()
		}
	}
	l.Connections[conn.Username] = conn
}

// RemoveConnectionUnsafe drops a subscriber. It only removes the mapping if
// conn is still the current connection for that username, so a stale
// connection's cleanup never evicts its replacement. Membership is
// untouched; seats survive disconnects. Assumes Mu is held.
func (l *Lobby) RemoveConnectionUnsafe(conn *Connection) {
	current, ok := l.Connections[conn.Username]
	if !ok || current != conn {
		return
	}
	delete(l.Connections, conn.Username)
	go func(ch chan map[string]interface{}, cancel func()) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Lobby %s: recovered closing OutChan for %s: %v", l.State.ID, conn.Username, r)
			}
		}()
		close(ch)
		if cancel != nil {
			cancel()
		}
	}(conn.OutChan, conn.Cancel)
}

// BroadcastAllUnsafe sends msg to every subscriber. Assumes Mu is held;
// Connection.Write never blocks, so holding the lock here is safe and is
// what keeps the per-lobby delivery order equal to the commit order.
func (l *Lobby) BroadcastAllUnsafe(msg map[string]interface{}) {
	for _, conn := range l.Connections {
		conn.Write(msg)
	}
}

// BroadcastStateUnsafe delivers the post-action snapshot to every
// subscriber. Assumes Mu is held.
func (l *Lobby) BroadcastStateUnsafe(snapshot models.Lobby) {
	l.BroadcastAllUnsafe(map[string]interface{}{
		"type":  "stateUpdate",
		"lobby": snapshot,
	})
}

// SyncPlayUnsafe pushes a transient load-and-seek command to every
// subscriber except the host. The host initiated the transition locally;
// echoing it back would fight their player. Assumes Mu is held.
func (l *Lobby) SyncPlayUnsafe(trackID string, offsetSeconds float64) {
	l.broadcastExceptHostUnsafe(map[string]interface{}{
		"type":    "syncPlay",
		"trackId": trackID,
		"offset":  offsetSeconds,
	})
}

// SyncPauseUnsafe pushes a transient seek-and-pause command to every
// subscriber except the host. Assumes Mu is held.
func (l *Lobby) SyncPauseUnsafe(offsetSeconds float64) {
	l.broadcastExceptHostUnsafe(map[string]interface{}{
		"type":   "syncPause",
		"offset": offsetSeconds,
	})
}

func (l *Lobby) broadcastExceptHostUnsafe(msg map[string]interface{}) {
	for username, conn := range l.Connections {
		if username == l.State.Host {
			continue
		}
		conn.Write(msg)
	}
}
