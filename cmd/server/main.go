// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/tmunro/partyhub/internal/auth"
	"github.com/tmunro/partyhub/internal/handlers"
	"github.com/tmunro/partyhub/internal/journal"
	"github.com/tmunro/partyhub/internal/middleware"
	"github.com/tmunro/partyhub/internal/registry"
	"github.com/tmunro/partyhub/internal/store"
)

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	ctx := context.Background()

	st, err := store.FromEnv(ctx)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	reg := registry.New(st, logger)
	if err := reg.Hydrate(ctx); err != nil {
		log.Fatalf("failed to hydrate registry: %v", err)
	}

	if j, err := journal.FromEnv(ctx); err != nil {
		logger.WithError(err).Warn("action journal disabled")
	} else if j != nil {
		reg.SetJournal(j)
		defer j.Close()
	}

	srv := handlers.NewServer(reg, st, logger)

	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("/api/register", srv.RegisterHandler)
	mux.HandleFunc("/api/login", srv.LoginHandler)
	mux.HandleFunc("/api/me", srv.MeHandler)

	// lobby endpoints
	mux.Handle("/api/create-lobby", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateLobbyHandler(srv),
	)))
	mux.Handle("/api/lobbies", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ListLobbiesHandler(srv),
	)))

	// lobby ws
	mux.Handle("/lobby/ws/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.LobbyWSHandler(srv),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
