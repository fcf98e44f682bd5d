package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xoxogame/xoxo-backend/internal/entity"
	"github.com/xoxogame/xoxo-backend/internal/repository"
	"github.com/xoxogame/xoxo-backend/internal/service"
)

type testBackend struct {
	srv      *httptest.Server
	chatRepo repository.ChatRepository
}

func newTestServer(t *testing.T) *testBackend {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	roomRepo := repository.NewRoomRepository(client)
	chatRepo := repository.NewChatRepository(client)
	rooms := service.NewRoomService(logger, roomRepo, chatRepo)
	watcher := service.NewWatcher(logger, roomRepo, chatRepo)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := httptest.NewServer(New(logger, rooms, watcher).Handler(ctx))
	t.Cleanup(srv.Close)

	return &testBackend{srv: srv, chatRepo: chatRepo}
}

func dialWS(t *testing.T, backend *testBackend) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(backend.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func sendMessage(t *testing.T, conn *websocket.Conn, action string, payload any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Message{Action: action, Payload: raw}))
}

// readUntil drains the connection until the wanted action arrives, skipping
// interleaved snapshot pushes.
func readUntil(t *testing.T, conn *websocket.Conn, action string) json.RawMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	for {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %q", action)

		if msg.Action == action {
			return msg.Payload
		}
	}
}

// readStateUntil drains room:state pushes until the condition holds.
func readStateUntil(t *testing.T, conn *websocket.Conn, cond func(*entity.Room) bool) *entity.Room {
	t.Helper()

	for {
		var p RoomPayload
		raw := readUntil(t, conn, ActionRoomState)
		require.NoError(t, json.Unmarshal(raw, &p))

		if cond(p.Room) {
			return p.Room
		}
	}
}

func TestServer_GameFlow(t *testing.T) {
	backend := newTestServer(t)

	alice := dialWS(t, backend)
	bob := dialWS(t, backend)

	// Given: alice opens a room
	sendMessage(t, alice, ActionCreate, CreatePayload{Username: "alice"})

	var created SessionPayload
	require.NoError(t, json.Unmarshal(readUntil(t, alice, ActionRoomCreated), &created))
	require.Len(t, created.Room.ID, 6)
	assert.Equal(t, entity.PlayerX, created.Mark)
	assert.Equal(t, entity.StatusWaiting, created.Room.Status)

	// When: bob joins with the shared code
	sendMessage(t, bob, ActionJoin, JoinPayload{Username: "bob", RoomID: created.Room.ID})

	var joined SessionPayload
	require.NoError(t, json.Unmarshal(readUntil(t, bob, ActionRoomJoined), &joined))
	assert.Equal(t, entity.PlayerO, joined.Mark)
	assert.Equal(t, entity.StatusPlaying, joined.Room.Status)

	// Then: alice sees the seat fill through her subscription
	readStateUntil(t, alice, func(r *entity.Room) bool { return r.PlayerO == "bob" })

	// When: the opening moves are played
	sendMessage(t, alice, ActionMove, MovePayload{Cell: 0})
	readStateUntil(t, bob, func(r *entity.Room) bool { return r.Board[0] == entity.PlayerX })

	sendMessage(t, bob, ActionMove, MovePayload{Cell: 4})
	state := readStateUntil(t, alice, func(r *entity.Room) bool { return r.Board[4] == entity.PlayerO })
	assert.Equal(t, entity.PlayerX, state.Turn)

	// When: bob says hello
	sendMessage(t, bob, ActionChat, ChatPayload{Text: "good luck"})

	// Then: alice gets the full log, join announcement included
	for {
		var p ChatLogPayload
		raw := readUntil(t, alice, ActionChatState)
		require.NoError(t, json.Unmarshal(raw, &p))

		if len(p.Entries) < 2 {
			continue
		}

		assert.Equal(t, entity.SystemUser, p.Entries[0].User)
		assert.Equal(t, "bob joined the game.", p.Entries[0].Text)
		assert.Equal(t, "good luck", p.Entries[1].Text)
		break
	}
}

func TestServer_LeaveConfirmation(t *testing.T) {
	backend := newTestServer(t)

	alice := dialWS(t, backend)
	bob := dialWS(t, backend)

	sendMessage(t, alice, ActionCreate, CreatePayload{Username: "alice"})

	var created SessionPayload
	require.NoError(t, json.Unmarshal(readUntil(t, alice, ActionRoomCreated), &created))

	sendMessage(t, bob, ActionJoin, JoinPayload{Username: "bob", RoomID: created.Room.ID})
	readUntil(t, bob, ActionRoomJoined)

	// When: alice asks to leave without confirming
	sendMessage(t, alice, ActionLeave, LeavePayload{})

	// Then: she is prompted and the room is untouched
	var prompt NoticePayload
	require.NoError(t, json.Unmarshal(readUntil(t, alice, ActionLeaveConfirm), &prompt))
	assert.Equal(t, "Are you sure you want to leave?", prompt.Message)

	// When: she confirms
	sendMessage(t, alice, ActionLeave, LeavePayload{Confirmed: true})
	readUntil(t, alice, ActionRoomLeft)

	// Then: the owner's departure closes the room under bob
	var closed NoticePayload
	require.NoError(t, json.Unmarshal(readUntil(t, bob, ActionRoomClosed), &closed))
	assert.Equal(t, "Game ended or room closed.", closed.Message)
}

func TestServer_RewatchAfterRemoteClosure(t *testing.T) {
	backend := newTestServer(t)

	alice := dialWS(t, backend)
	bob := dialWS(t, backend)

	// Given: a room that the owner tears down under bob
	sendMessage(t, alice, ActionCreate, CreatePayload{Username: "alice"})

	var created SessionPayload
	require.NoError(t, json.Unmarshal(readUntil(t, alice, ActionRoomCreated), &created))
	oldRoomID := created.Room.ID

	sendMessage(t, bob, ActionJoin, JoinPayload{Username: "bob", RoomID: oldRoomID})
	readUntil(t, bob, ActionRoomJoined)

	sendMessage(t, alice, ActionLeave, LeavePayload{Confirmed: true})
	readUntil(t, bob, ActionRoomClosed)

	// When: bob opens a fresh room on the same connection
	sendMessage(t, bob, ActionCreate, CreatePayload{Username: "bob"})

	var recreated SessionPayload
	require.NoError(t, json.Unmarshal(readUntil(t, bob, ActionRoomCreated), &recreated))
	require.NotEqual(t, oldRoomID, recreated.Room.ID)

	// give the previous subscription's teardown time to finish
	time.Sleep(100 * time.Millisecond)

	// When: the old room's chat channel fires again
	require.NoError(t, backend.chatRepo.Append(context.Background(), oldRoomID,
		entity.NewUserEntry("ghost", "message from the old room")))

	sendMessage(t, bob, ActionChat, ChatPayload{Text: "hello new room"})

	// Then: bob only ever renders the new room's log; nothing from the
	// abandoned subscription leaks through
	for {
		var p ChatLogPayload
		raw := readUntil(t, bob, ActionChatState)
		require.NoError(t, json.Unmarshal(raw, &p))

		for _, entry := range p.Entries {
			assert.NotEqual(t, "message from the old room", entry.Text)
		}

		if len(p.Entries) > 0 && p.Entries[len(p.Entries)-1].Text == "hello new room" {
			break
		}
	}
}

func TestServer_JoinUnknownRoom(t *testing.T) {
	backend := newTestServer(t)

	conn := dialWS(t, backend)

	// When: joining a code that was never created
	sendMessage(t, conn, ActionJoin, JoinPayload{Username: "bob", RoomID: "ZZZZZZ"})

	// Then: a blocking error notice comes back
	var notice NoticePayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, ActionError), &notice))
	assert.Contains(t, notice.Message, "room not found")
}
