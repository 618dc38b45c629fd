// internal/handlers/user.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tmunro/partyhub/internal/auth"
	"github.com/tmunro/partyhub/internal/models"
	"github.com/tmunro/partyhub/internal/store"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// RegisterHandler creates a credential record and logs the new user in.
//
// Request payload:
//
//	{
//	  "username": "alice",
//	  "password": "password"
//	}
//
// On success the session token is returned in the body and set as the
// auth_token cookie.
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}

	hash, err := auth.CreateHash(req.Password, auth.Params)
	if err != nil {
		s.Logger.WithError(err).Error("failed to hash password")
		http.Error(w, "error creating user", http.StatusInternalServerError)
		return
	}

	user := models.User{Username: req.Username, Password: hash}
	if err := s.Store.CreateUser(r.Context(), &user); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			http.Error(w, "username already exists", http.StatusConflict)
			return
		}
		s.Logger.WithError(err).Error("failed to create user")
		http.Error(w, "error creating user", http.StatusInternalServerError)
		return
	}

	s.issueSession(w, req.Username)
}

// LoginHandler verifies credentials and issues a session token.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	user, err := s.Store.GetUser(r.Context(), req.Username)
	if err != nil {
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	match, err := auth.ComparePasswordAndHash(req.Password, user.Password)
	if err != nil || !match {
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	s.issueSession(w, user.Username)
}

// MeHandler returns the identity bound to the request's session cookie.
func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request) {
	username, err := authenticatedUser(r)
	if err != nil {
		http.Error(w, `{"user":null}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"user": username})
}

func (s *Server) issueSession(w http.ResponseWriter, username string) {
	token, err := auth.CreateJWT(username)
	if err != nil {
		s.Logger.WithError(err).Error("failed to create jwt")
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   auth.TOKEN_EXPIRE_TIME_SEC,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{Token: token})
}
