// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

type createLobbyRequest struct {
	Name    string `json:"name"`
	Private bool   `json:"private"`
}

// CreateLobbyHandler allocates a new lobby with the authenticated user as
// host and returns the seeded record.
func CreateLobbyHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, err := authenticatedUser(r)
		if err != nil {
			http.Error(w, "missing or invalid auth_token", http.StatusUnauthorized)
			return
		}

		// An empty body is fine; every field has a usable zero value.
		var req createLobbyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad lobby request payload", http.StatusBadRequest)
			return
		}

		state, err := s.Registry.Create(r.Context(), req.Name, username, req.Private)
		if err != nil {
			s.Logger.WithError(err).Error("failed to create lobby")
			http.Error(w, "failed to create lobby", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(state)
	}
}

// ListLobbiesHandler returns summaries of every public lobby. Private
// lobbies never show up here; they are reachable by id only.
func ListLobbiesHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authenticatedUser(r); err != nil {
			http.Error(w, "missing or invalid auth_token", http.StatusUnauthorized)
			return
		}

		summaries := s.Registry.List(true)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summaries)
	}
}
