package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/duoplay-backend/internal/session"
)

const (
	actionState  = "session:state"
	actionView   = "session:view"
	actionMove   = "game:move"
	actionSelect = "game:select"
	actionReset  = "game:reset"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ResponsePayload struct {
	Outcome   *session.MoveOutcome `json:"outcome,omitempty"`
	Selection *session.Selection   `json:"selection,omitempty"`
	Error     string               `json:"error,omitempty"`
}
