// internal/lobby/action.go
package lobby

// ActionType tags a mutation request against a lobby. The zero value is
// not a valid action.
type ActionType string

const (
	ActionJoin        ActionType = "join"
	ActionChat        ActionType = "chat"
	ActionToggleReady ActionType = "toggleReady"
	ActionAddTrack    ActionType = "addTrack"
	ActionNextTrack   ActionType = "nextTrack"
	ActionKick        ActionType = "kick"
)

// Action is a typed mutation request. Payload carries the per-type
// argument: chat text for chat, a media reference for addTrack, the target
// username for kick. join, toggleReady and nextTrack ignore it.
type Action struct {
	Type    ActionType
	Payload string
}
