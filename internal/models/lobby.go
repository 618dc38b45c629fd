// internal/models/lobby.go
package models

import "github.com/google/uuid"

// Lobby is the persisted aggregate for a single party lobby. The same shape
// is used for the snapshot broadcast to subscribers after every committed
// action, so every field here is visible to every member.
type Lobby struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Host    string    `json:"host"`
	Private bool      `json:"private"`

	// Members preserves join order for display. A username appears at most
	// once; the host is always present.
	Members []string `json:"members"`

	// Ready maps member username -> ready flag. Its key set tracks Members
	// exactly after every mutation.
	Ready map[string]bool `json:"ready"`

	// Chat holds at most the 50 most recent messages, oldest first.
	Chat []ChatMessage `json:"chat"`

	// Queue is the FIFO playback queue. Current is the track the host last
	// advanced to, or nil before the first nextTrack.
	Queue   []Track `json:"queue"`
	Current *Track  `json:"current"`
}

// ChatMessage is one chat log entry.
type ChatMessage struct {
	Author string `json:"author"`
	Text   string `json:"text"`
	Ts     int64  `json:"ts"` // unix millis
}

// Track references a playable media item in the queue.
type Track struct {
	TrackID string `json:"trackId"`
	Title   string `json:"title"`
	AddedBy string `json:"addedBy"`
}

// LobbySummary is the public listing shape. Private lobbies never appear in
// listings; they stay joinable by id.
type LobbySummary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Host        string    `json:"host"`
	MemberCount int       `json:"memberCount"`
}

// Clone returns a deep copy of the lobby state. Dispatch uses it both to
// build broadcast snapshots and to restore state when a store write fails.
func (l *Lobby) Clone() Lobby {
	out := *l
	out.Members = append([]string(nil), l.Members...)
	out.Ready = make(map[string]bool, len(l.Ready))
	for k, v := range l.Ready {
		out.Ready[k] = v
	}
	out.Chat = append([]ChatMessage(nil), l.Chat...)
	out.Queue = append([]Track(nil), l.Queue...)
	if l.Current != nil {
		cur := *l.Current
		out.Current = &cur
	}
	return out
}

// Summary projects the lobby into its public listing shape.
func (l *Lobby) Summary() LobbySummary {
	return LobbySummary{
		ID:          l.ID,
		Name:        l.Name,
		Host:        l.Host,
		MemberCount: len(l.Members),
	}
}
