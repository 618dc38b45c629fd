// internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/tmunro/partyhub/internal/models"
)

// ErrUserExists is returned by CreateUser when the username is taken.
var ErrUserExists = errors.New("username already exists")

// ErrUserNotFound is returned by GetUser for unknown usernames.
var ErrUserNotFound = errors.New("user not found")

// State is the full durable snapshot: every lobby record plus every
// credential record, keyed the way the registry wants them.
type State struct {
	Users   map[string]*models.User     `json:"users"`
	Lobbies map[uuid.UUID]*models.Lobby `json:"lobbies"`
}

// NewState returns an empty State with initialized maps.
func NewState() *State {
	return &State{
		Users:   make(map[string]*models.User),
		Lobbies: make(map[uuid.UUID]*models.Lobby),
	}
}

// Store is the persistence boundary. The registry hydrates itself with
// LoadAll once at startup and then writes through with SaveLobby inside
// every dispatch critical section; a SaveLobby error means the mutation
// did not commit.
type Store interface {
	LoadAll(ctx context.Context) (*State, error)
	SaveAll(ctx context.Context, state *State) error
	SaveLobby(ctx context.Context, lobby models.Lobby) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, username string) (*models.User, error)

	Close()
}

// FromEnv selects a store driver from STORE_DRIVER:
//   - "file" (default): JSON snapshot file at STORE_PATH (default partyhub.json)
//   - "postgres": pgx pool from the POSTGRES_* env vars
func FromEnv(ctx context.Context) (Store, error) {
	driver := os.Getenv("STORE_DRIVER")
	switch driver {
	case "", "file":
		path := os.Getenv("STORE_PATH")
		if path == "" {
			path = "partyhub.json"
		}
		return NewFileStore(path)
	case "postgres":
		return NewPostgresStore(ctx)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", driver)
	}
}
