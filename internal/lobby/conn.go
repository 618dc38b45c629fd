// internal/lobby/conn.go
package lobby

import (
	"context"
	"log"
)

// Connection is a single subscriber's presence in a lobby's broadcast
// group. One connection follows at most one lobby; switching lobbies means
// a new Connection.
type Connection struct {
	Username string
	Cancel   context.CancelFunc
	OutChan  chan map[string]interface{}
	IsHost   bool
}

// Write pushes a message onto the subscriber's OutChan non-blockingly.
// Logs if the message is dropped. The recover covers a send racing the
// channel close that happens when a rejoin replaces this connection; the
// select alone does not protect against a closed channel.
func (c *Connection) Write(msg map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			msgType, _ := msg["type"].(string)
			log.Printf("Connection Write WARNING: OutChan for %s closed. Dropped message type '%s'.", c.Username, msgType)
		}
	}()
	select {
	case c.OutChan <- msg:
	default:
		msgType, _ := msg["type"].(string)
		log.Printf("Connection Write WARNING: OutChan for %s full. Dropped message type '%s'.", c.Username, msgType)
	}
}

// WriteError is a convenience to send an error event to this subscriber only.
func (c *Connection) WriteError(msg string) {
	c.Write(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}
