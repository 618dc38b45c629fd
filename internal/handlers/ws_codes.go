// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the lobby handler. These provide
// more specific reasons for closure than the standard codes.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	InvalidLobbyIDError = 3003 // Target lobby ID in the WS URL does not exist or is invalid.
)
