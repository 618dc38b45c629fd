// internal/store/file.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/tmunro/partyhub/internal/models"
)

// FileStore persists the whole State as one JSON document, rewriting the
// file on every save. The rewrite goes through a temp file + rename so a
// crash mid-write never leaves a truncated snapshot behind.
type FileStore struct {
	mu    sync.Mutex
	path  string
	state *State
}

// NewFileStore opens (or creates) the snapshot file at path and loads it
// into memory. The in-memory copy is the write-through cache; every save
// rewrites the file from it.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, state: NewState()}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := fs.flushLocked(); err != nil {
			return nil, fmt.Errorf("seed store file: %w", err)
		}
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store file: %w", err)
	}
	if err := json.Unmarshal(data, fs.state); err != nil {
		return nil, fmt.Errorf("decode store file %s: %w", path, err)
	}
	if fs.state.Users == nil {
		fs.state.Users = make(map[string]*models.User)
	}
	if fs.state.Lobbies == nil {
		fs.state.Lobbies = make(map[uuid.UUID]*models.Lobby)
	}
	return fs, nil
}

// flushLocked rewrites the snapshot file. Caller holds fs.mu.
func (fs *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(fs.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".partyhub-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, fs.path)
}

// LoadAll returns a deep copy of the current state so the caller can own
// it without racing later saves.
func (fs *FileStore) LoadAll(ctx context.Context) (*State, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	out := NewState()
	for name, u := range fs.state.Users {
		cp := *u
		out.Users[name] = &cp
	}
	for id, l := range fs.state.Lobbies {
		cp := l.Clone()
		out.Lobbies[id] = &cp
	}
	return out, nil
}

// SaveAll replaces the whole snapshot and rewrites the file.
func (fs *FileStore) SaveAll(ctx context.Context, state *State) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.state = state
	return fs.flushLocked()
}

// SaveLobby writes one lobby record through to disk.
func (fs *FileStore) SaveLobby(ctx context.Context, lobby models.Lobby) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	cp := lobby.Clone()
	fs.state.Lobbies[lobby.ID] = &cp
	return fs.flushLocked()
}

// CreateUser stores a new credential record, refusing duplicates.
func (fs *FileStore) CreateUser(ctx context.Context, user *models.User) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, exists := fs.state.Users[user.Username]; exists {
		return ErrUserExists
	}
	cp := *user
	fs.state.Users[user.Username] = &cp
	return fs.flushLocked()
}

// GetUser fetches a credential record by username.
func (fs *FileStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	u, ok := fs.state.Users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// Close is a no-op for the file driver.
func (fs *FileStore) Close() {}
