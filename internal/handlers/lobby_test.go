// internal/handlers/lobby_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tmunro/partyhub/internal/auth"
	"github.com/tmunro/partyhub/internal/models"
	"github.com/tmunro/partyhub/internal/registry"
	"github.com/tmunro/partyhub/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	auth.Init() // ephemeral keys, no external deps needed

	fs, err := store.NewFileStore(filepath.Join(t.TempDir(), "partyhub.json"))
	if err != nil {
		t.Fatalf("failed to open file store: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	reg := registry.New(fs, logger)
	if err := reg.Hydrate(context.Background()); err != nil {
		t.Fatalf("failed to hydrate registry: %v", err)
	}
	return NewServer(reg, fs, logger)
}

// TestLobbyCreate checks that /api/create-lobby builds a lobby with the
// authenticated user seated as host.
func TestLobbyCreate(t *testing.T) {
	s := newTestServer(t)

	token, _ := auth.CreateJWT("alice")
	body := `{"name":"Movie Night","private":false}`
	req := httptest.NewRequest("POST", "/api/create-lobby", bytes.NewBufferString(body))
	req.Header.Set("Cookie", "auth_token="+token)
	w := httptest.NewRecorder()

	h := CreateLobbyHandler(s)
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var newLobby models.Lobby
	if err := json.Unmarshal(w.Body.Bytes(), &newLobby); err != nil {
		t.Fatalf("failed to decode lobby: %v", err)
	}
	if newLobby.ID == uuid.Nil {
		t.Fatalf("lobby has no ID")
	}
	if newLobby.Host != "alice" {
		t.Fatalf("lobby host mismatch, expected alice got %v", newLobby.Host)
	}
	if len(newLobby.Members) != 1 || newLobby.Members[0] != "alice" {
		t.Fatalf("expected members [alice], got %v", newLobby.Members)
	}
}

func TestLobbyCreateEmptyBody(t *testing.T) {
	s := newTestServer(t)

	token, _ := auth.CreateJWT("alice")
	req := httptest.NewRequest("POST", "/api/create-lobby", nil)
	req.Header.Set("Cookie", "auth_token="+token)
	w := httptest.NewRecorder()
	CreateLobbyHandler(s).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK for empty body, got %d: %s", w.Code, w.Body.String())
	}
	var newLobby models.Lobby
	if err := json.Unmarshal(w.Body.Bytes(), &newLobby); err != nil {
		t.Fatalf("failed to decode lobby: %v", err)
	}
	if newLobby.Name != "alice's Party" {
		t.Fatalf("expected default lobby name, got %q", newLobby.Name)
	}
}

func TestLobbyCreateRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/create-lobby", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	CreateLobbyHandler(s).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

// TestLobbyListHidesPrivate checks the public listing excludes private
// lobbies while keeping them joinable by id.
func TestLobbyListHidesPrivate(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	if _, err := s.Registry.Create(ctx, "Open House", "alice", false); err != nil {
		t.Fatalf("create public lobby: %v", err)
	}
	secret, err := s.Registry.Create(ctx, "Secret Club", "bob", true)
	if err != nil {
		t.Fatalf("create private lobby: %v", err)
	}

	token, _ := auth.CreateJWT("carol")
	req := httptest.NewRequest("GET", "/api/lobbies", nil)
	req.Header.Set("Cookie", "auth_token="+token)
	w := httptest.NewRecorder()
	ListLobbiesHandler(s).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var summaries []models.LobbySummary
	if err := json.Unmarshal(w.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("failed to decode summaries: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 public lobby, got %d", len(summaries))
	}
	if summaries[0].Name != "Open House" {
		t.Fatalf("unexpected lobby listed: %+v", summaries[0])
	}

	// Private lobby is still resolvable by id.
	if _, ok := s.Registry.Get(secret.ID); !ok {
		t.Fatalf("private lobby should still resolve by id")
	}
}
