package entity

import "time"

const (
	SystemUser        = "System"
	MessageTypeSystem = "system"
)

// ChatEntry is one message in a room's append-only chat log. Entries are
// never mutated or removed individually.
type ChatEntry struct {
	User string `json:"user"`
	Text string `json:"text"`
	Type string `json:"type,omitempty"`
	Time int64  `json:"time"`
}

func NewUserEntry(user, text string) ChatEntry {
	return ChatEntry{
		User: user,
		Text: text,
		Time: time.Now().UnixMilli(),
	}
}

func NewSystemEntry(text string) ChatEntry {
	return ChatEntry{
		User: SystemUser,
		Text: text,
		Type: MessageTypeSystem,
		Time: time.Now().UnixMilli(),
	}
}
