// internal/registry/registry.go
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tmunro/partyhub/internal/journal"
	"github.com/tmunro/partyhub/internal/lobby"
	"github.com/tmunro/partyhub/internal/models"
	"github.com/tmunro/partyhub/internal/store"
)

// ErrLobbyNotFound is surfaced to the single requesting connection when a
// lobby id does not resolve. It is the only dispatch error a client sees.
var ErrLobbyNotFound = errors.New("lobby not found")

// ErrNotHost is returned when a non-host issues a playback sync signal.
// Callers drop it without notifying the sender.
var ErrNotHost = errors.New("sender is not the lobby host")

// Registry owns every live lobby in the process and is the only component
// that mutates one. It hydrates from the store at startup and writes each
// mutation through to the store before broadcasting it.
type Registry struct {
	mu      sync.Mutex
	lobbies map[uuid.UUID]*lobby.Lobby

	store   store.Store
	journal *journal.Journal
	log     *logrus.Logger
}

// New creates an empty registry backed by st. Call Hydrate before serving.
func New(st store.Store, logger *logrus.Logger) *Registry {
	return &Registry{
		lobbies: make(map[uuid.UUID]*lobby.Lobby),
		store:   st,
		log:     logger,
	}
}

// SetJournal attaches an optional committed-action journal.
func (r *Registry) SetJournal(j *journal.Journal) {
	r.journal = j
}

// Hydrate loads every persisted lobby into memory. The registry is the
// source of truth from this point on; the store only sees write-throughs.
func (r *Registry) Hydrate(ctx context.Context) error {
	state, err := r.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("hydrate registry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range state.Lobbies {
		r.lobbies[id] = lobby.New(*rec)
	}
	r.log.Infof("registry hydrated with %d lobbies, %d users known to store", len(state.Lobbies), len(state.Users))
	return nil
}

// Create allocates a new lobby with a fresh id, seats the creator as host,
// and write-throughs the record before registering it.
func (r *Registry) Create(ctx context.Context, name, hostUser string, private bool) (models.Lobby, error) {
	if name == "" {
		name = fmt.Sprintf("%s's Party", hostUser)
	}

	state := models.Lobby{
		ID:      uuid.New(),
		Name:    name,
		Host:    hostUser,
		Private: private,
		Members: []string{hostUser},
		Ready:   map[string]bool{hostUser: false},
	}

	if err := r.store.SaveLobby(ctx, state); err != nil {
		return models.Lobby{}, fmt.Errorf("persist new lobby: %w", err)
	}

	l := lobby.New(state.Clone())
	r.mu.Lock()
	r.lobbies[state.ID] = l
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"lobby":   state.ID,
		"host":    hostUser,
		"private": private,
	}).Info("lobby created")
	return state, nil
}

// Get returns the live lobby for id.
func (r *Registry) Get(id uuid.UUID) (*lobby.Lobby, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[id]
	return l, ok
}

// List returns lobby summaries, skipping private lobbies when publicOnly
// is set. Sorted by name so listings are stable across calls.
func (r *Registry) List(publicOnly bool) []models.LobbySummary {
	r.mu.Lock()
	live := make([]*lobby.Lobby, 0, len(r.lobbies))
	for _, l := range r.lobbies {
		live = append(live, l)
	}
	r.mu.Unlock()

	summaries := make([]models.LobbySummary, 0, len(live))
	for _, l := range live {
		l.Mu.Lock()
		if !publicOnly || !l.State.Private {
			summaries = append(summaries, l.State.Summary())
		}
		l.Mu.Unlock()
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries
}

// Dispatch validates and applies one action against a lobby, then commits
// it to the store and broadcasts the post-state snapshot to every
// subscriber, all under the lobby's lock. That single critical section is
// the atomicity boundary: an action either fully commits (state + store +
// broadcast, in that order) or leaves nothing behind.
//
// Mutations on different lobbies proceed in parallel; only the target
// lobby is serialized.
func (r *Registry) Dispatch(ctx context.Context, lobbyID uuid.UUID, actingUser string, action lobby.Action) (models.Lobby, error) {
	l, ok := r.Get(lobbyID)
	if !ok {
		return models.Lobby{}, ErrLobbyNotFound
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()

	prev := l.SnapshotUnsafe()
	l.ApplyUnsafe(actingUser, action, time.Now())

	// Durability before broadcast: if the write-through fails the mutation
	// is rolled back and no subscriber ever sees it.
	if err := r.store.SaveLobby(ctx, l.State); err != nil {
		l.RestoreUnsafe(prev)
		r.log.WithError(err).Errorf("lobby %s: store write failed, action %s rolled back", lobbyID, action.Type)
		return models.Lobby{}, fmt.Errorf("persist lobby %s: %w", lobbyID, err)
	}

	snapshot := l.SnapshotUnsafe()
	l.BroadcastStateUnsafe(snapshot)

	if r.journal != nil {
		rec := journal.ActionRecord{
			LobbyID:    lobbyID,
			Actor:      actingUser,
			ActionType: string(action.Type),
			Payload:    action.Payload,
			Timestamp:  time.Now().UnixMilli(),
		}
		if err := r.journal.Publish(ctx, rec); err != nil {
			r.log.WithError(err).Warnf("lobby %s: journal publish failed", lobbyID)
		}
	}

	return snapshot, nil
}

// Subscribe attaches conn to the lobby's broadcast group, replacing any
// previous connection for the same username. The host flag is derived
// here, against the authoritative record, not trusted from the client.
func (r *Registry) Subscribe(lobbyID uuid.UUID, conn *lobby.Connection) error {
	l, ok := r.Get(lobbyID)
	if !ok {
		return ErrLobbyNotFound
	}
	l.Mu.Lock()
	defer l.Mu.Unlock()
	conn.IsHost = l.State.Host == conn.Username
	l.AddConnectionUnsafe(conn)
	return nil
}

// Unsubscribe detaches conn. Lobby membership is untouched; only the
// live subscription goes away.
func (r *Registry) Unsubscribe(lobbyID uuid.UUID, conn *lobby.Connection) {
	l, ok := r.Get(lobbyID)
	if !ok {
		return
	}
	l.Mu.Lock()
	defer l.Mu.Unlock()
	l.RemoveConnectionUnsafe(conn)
}

// SyncPlay relays a host play transition to every non-host subscriber.
// Transient: nothing is persisted and nothing is acknowledged.
func (r *Registry) SyncPlay(lobbyID uuid.UUID, sender, trackID string, offsetSeconds float64) error {
	l, ok := r.Get(lobbyID)
	if !ok {
		return ErrLobbyNotFound
	}
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if l.State.Host != sender {
		return ErrNotHost
	}
	l.SyncPlayUnsafe(trackID, offsetSeconds)
	return nil
}

// SyncPause relays a host pause transition to every non-host subscriber.
func (r *Registry) SyncPause(lobbyID uuid.UUID, sender string, offsetSeconds float64) error {
	l, ok := r.Get(lobbyID)
	if !ok {
		return ErrLobbyNotFound
	}
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if l.State.Host != sender {
		return ErrNotHost
	}
	l.SyncPauseUnsafe(offsetSeconds)
	return nil
}
