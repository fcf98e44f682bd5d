package websocket

import (
	"encoding/json"

	"github.com/xoxogame/xoxo-backend/internal/entity"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Intents from the client.
const (
	ActionCreate    = "room:create"
	ActionJoin      = "room:join"
	ActionMove      = "room:move"
	ActionChat      = "room:chat"
	ActionNextRound = "room:next_round"
	ActionLeave     = "room:leave"
)

// Renders pushed to the client.
const (
	ActionRoomCreated  = "room:created"
	ActionRoomJoined   = "room:joined"
	ActionRoomState    = "room:state"
	ActionChatState    = "chat:state"
	ActionRoomClosed   = "room:closed"
	ActionRoomLeft     = "room:left"
	ActionLeaveConfirm = "room:leave_confirm"
	ActionError        = "error"
)

type CreatePayload struct {
	Username string `json:"username"`
}

type JoinPayload struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
}

type MovePayload struct {
	Cell int `json:"cell"`
}

type ChatPayload struct {
	Text string `json:"text"`
}

type LeavePayload struct {
	Confirmed bool `json:"confirmed"`
}

type SessionPayload struct {
	Room *entity.Room `json:"room"`
	Mark string       `json:"mark"`
}

type RoomPayload struct {
	Room *entity.Room `json:"room"`
}

type ChatLogPayload struct {
	Entries []entity.ChatEntry `json:"entries"`
}

type NoticePayload struct {
	Message string `json:"message"`
}
