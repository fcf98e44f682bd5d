package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/xoxogame/xoxo-backend/internal/entity"
	"github.com/xoxogame/xoxo-backend/internal/service"
)

// client is one connected presentation surface. It forwards intents into
// the room service and implements service.Renderer by pushing render
// messages back over the socket.
type client struct {
	id     string
	logger *slog.Logger
	conn   *websocket.Conn

	// gorilla allows a single concurrent writer; the watcher goroutines and
	// the intent handlers all write through send.
	writeMu sync.Mutex

	// sess and cancelWatch are touched only by the connection's read loop.
	sess        *service.Session
	cancelWatch context.CancelFunc
}

func (that *client) send(action string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		that.logger.Error("failed to marshal payload", "action", action, "error", err)
		return
	}

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err = that.conn.WriteJSON(Message{Action: action, Payload: data}); err != nil {
		that.logger.Debug("failed to write message", "action", action, "error", err)
	}
}

func (that *client) RenderRoom(room *entity.Room) {
	that.send(ActionRoomState, RoomPayload{Room: room})
}

func (that *client) RenderChat(entries []entity.ChatEntry) {
	that.send(ActionChatState, ChatLogPayload{Entries: entries})
}

func (that *client) RoomClosed() {
	that.send(ActionRoomClosed, NoticePayload{Message: "Game ended or room closed."})
}

func (that *client) stopWatch() {
	if that.cancelWatch != nil {
		that.cancelWatch()
		that.cancelWatch = nil
	}
}
