// internal/handlers/api_server.go
package handlers

import (
	"github.com/sirupsen/logrus"
	"github.com/tmunro/partyhub/internal/registry"
	"github.com/tmunro/partyhub/internal/store"
)

// Server bundles the dependencies the HTTP and WebSocket handlers share:
// the lobby registry (all lobby state goes through it) and the store
// (credential records only; lobby persistence is the registry's business).
type Server struct {
	Registry *registry.Registry
	Store    store.Store
	Logger   *logrus.Logger
}

// NewServer wires a handler server.
func NewServer(reg *registry.Registry, st store.Store, logger *logrus.Logger) *Server {
	return &Server{
		Registry: reg,
		Store:    st,
		Logger:   logger,
	}
}
