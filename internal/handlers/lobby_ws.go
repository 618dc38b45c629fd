// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tmunro/partyhub/internal/lobby"
	"github.com/tmunro/partyhub/internal/middleware"
	"github.com/tmunro/partyhub/internal/registry"
)

// LobbyWSHandler upgrades a connection, subscribes it to one lobby's
// broadcast feed, and dispatches the implicit join. From then on every
// inbound frame is either an action or a host playback signal.
func LobbyWSHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/lobby/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "missing lobby_id", http.StatusBadRequest)
			return
		}
		lobbyID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "invalid lobby_id", http.StatusBadRequest)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"party"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			s.Logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "party" {
			c.Close(BadSubprotocolError, "client must speak the party subprotocol")
			return
		}

		username, err := authenticatedUser(r)
		if err != nil {
			s.Logger.Warnf("authentication failed for lobby %s: %v", lobbyID, err)
			c.Close(websocket.StatusPolicyViolation, "Authentication failed.")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		conn := &lobby.Connection{
			Username: username,
			Cancel:   cancel,
			OutChan:  make(chan map[string]interface{}, 16),
		}

		// Subscribe before the join dispatch so this connection sees its
		// own join snapshot, like every other subscriber.
		if err := s.Registry.Subscribe(lobbyID, conn); err != nil {
			c.Close(InvalidLobbyIDError, "lobby does not exist")
			cancel()
			return
		}

		middleware.LogWebSocketConnect(s.Logger, remoteAddr, r.URL.Path)

		if _, err := s.Registry.Dispatch(ctx, lobbyID, username, lobby.Action{Type: lobby.ActionJoin}); err != nil {
			s.Logger.WithError(err).Warnf("join dispatch failed for %s in lobby %s", username, lobbyID)
			conn.WriteError("failed to join lobby")
		}

		go writePump(ctx, c, conn, s.Logger)

		readPump(ctx, c, s, lobbyID, conn)

		s.Registry.Unsubscribe(lobbyID, conn)
		middleware.LogWebSocketDisconnect(s.Logger, remoteAddr, r.URL.Path, nil)
	}
}

// readPump handles incoming frames until the connection closes.
func readPump(ctx context.Context, c *websocket.Conn, s *Server, lobbyID uuid.UUID, conn *lobby.Connection) {
	logger := s.Logger
	logger.Infof("Lobby %s: starting read pump for %s", lobbyID, conn.Username)
	defer logger.Infof("Lobby %s: exiting read pump for %s", lobbyID, conn.Username)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.Infof("Lobby %s: websocket closed normally for %s", lobbyID, conn.Username)
			} else if !strings.Contains(err.Error(), "context canceled") {
				logger.Warnf("Lobby %s: read error for %s: %v", lobbyID, conn.Username, err)
			}
			return
		}
		if typ != websocket.MessageText {
			logger.Warnf("Lobby %s: non-text message type %d from %s, ignoring", lobbyID, typ, conn.Username)
			continue
		}

		var packet map[string]interface{}
		if err := json.Unmarshal(msg, &packet); err != nil {
			logger.Warnf("Lobby %s: invalid json from %s: %v", lobbyID, conn.Username, err)
			conn.WriteError("Invalid JSON format")
			continue
		}

		handleLobbyPacket(ctx, s, lobbyID, conn, packet)
	}
}

// handleLobbyPacket interprets one inbound frame.
//
// Action dispatch errors fall into two buckets: an unresolved lobby id is
// reported to the requester, everything else that the dispatcher treats as
// a silent no-op (unauthorized host actions, malformed track refs,
// non-member actions) produces no error event at all, only the usual
// post-state broadcast.
func handleLobbyPacket(ctx context.Context, s *Server, lobbyID uuid.UUID, conn *lobby.Connection, packet map[string]interface{}) {
	kind, _ := packet["type"].(string)

	switch kind {
	case "action":
		actionType, _ := packet["actionType"].(string)
		payload, _ := packet["payload"].(string)
		act := lobby.Action{Type: lobby.ActionType(actionType), Payload: payload}

		if _, err := s.Registry.Dispatch(ctx, lobbyID, conn.Username, act); err != nil {
			if errors.Is(err, registry.ErrLobbyNotFound) {
				conn.WriteError("Lobby not found")
				return
			}
			s.Logger.WithError(err).Warnf("Lobby %s: dispatch %s from %s failed", lobbyID, actionType, conn.Username)
			conn.WriteError("action could not be applied")
		}

	case "hostPlay":
		trackID, _ := packet["trackId"].(string)
		offset, _ := packet["offset"].(float64)
		if err := s.Registry.SyncPlay(lobbyID, conn.Username, trackID, offset); err != nil {
			// Non-host senders get no response, only a log line.
			logSyncRejection(s.Logger, lobbyID, conn.Username, "hostPlay", err)
		}

	case "hostPause":
		offset, _ := packet["offset"].(float64)
		if err := s.Registry.SyncPause(lobbyID, conn.Username, offset); err != nil {
			logSyncRejection(s.Logger, lobbyID, conn.Username, "hostPause", err)
		}

	default:
		s.Logger.Warnf("Lobby %s: unknown packet type %q from %s", lobbyID, kind, conn.Username)
		conn.WriteError(fmt.Sprintf("Unknown packet type: %s", kind))
	}
}

func logSyncRejection(logger *logrus.Logger, lobbyID uuid.UUID, username, signal string, err error) {
	if errors.Is(err, registry.ErrNotHost) {
		logger.Debugf("Lobby %s: dropped %s from non-host %s", lobbyID, signal, username)
		return
	}
	logger.Warnf("Lobby %s: %s from %s failed: %v", lobbyID, signal, username, err)
}

// writePump drains the connection's OutChan onto the websocket and keeps
// the connection alive with periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *lobby.Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	defer func() {
		_ = c.Close(websocket.StatusGoingAway, "Write pump stopping")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("Lobby: failed to marshal outgoing msg for %s: %v", conn.Username, err)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("Lobby: failed to write to websocket for %s: %v", conn.Username, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Lobby: ping to %s failed: %v. Assuming disconnect.", conn.Username, err)
				return
			}
		}
	}
}
