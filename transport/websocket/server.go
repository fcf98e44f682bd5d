package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/xoxogame/xoxo-backend/internal/service"
)

// Server maps WebSocket connections onto game sessions: one connection is
// one client, and everything the client sees arrives as store snapshots.
type Server struct {
	logger  *slog.Logger
	rooms   *service.RoomService
	watcher *service.Watcher

	upgrader websocket.Upgrader

	handlers map[string]func(ctx context.Context, cl *client, payload json.RawMessage) error
}

func New(logger *slog.Logger, rooms *service.RoomService, watcher *service.Watcher) *Server {
	server := &Server{
		logger:  logger,
		rooms:   rooms,
		watcher: watcher,

		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},

		handlers: make(map[string]func(context.Context, *client, json.RawMessage) error),
	}

	server.handlers[ActionCreate] = server.handleCreate
	server.handlers[ActionJoin] = server.handleJoin
	server.handlers[ActionMove] = server.handleMove
	server.handlers[ActionChat] = server.handleChat
	server.handlers[ActionNextRound] = server.handleNextRound
	server.handlers[ActionLeave] = server.handleLeave

	return server
}

// Handler - exposes the /ws endpoint, also used by tests.
func (that *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConn(ctx, w, r)
	})

	return mux
}

// Start - starts the WebSocket server and closes it when ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     that.Handler(ctx),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) serveConn(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConn")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	cl := &client{
		id:   uuid.NewString(),
		conn: conn,
	}
	cl.logger = that.logger.With("clientID", cl.id)

	log.Info("client connected", "clientID", cl.id)

	that.readLoop(ctx, cl)

	// Disconnect is a programmatic leave: no confirmation gate, best-effort
	// cleanup of whatever the session still holds.
	cl.stopWatch()
	if cl.sess != nil && cl.sess.InRoom() {
		if err = that.rooms.Leave(ctx, cl.sess); err != nil {
			log.Error("failed to leave on disconnect", "clientID", cl.id, "error", err)
		}
	}

	log.Info("client disconnected", "clientID", cl.id)
}

func (that *Server) readLoop(ctx context.Context, cl *client) {
	log := that.logger.With("method", "readLoop", "clientID", cl.id)

	for {
		var message Message
		if err := cl.conn.ReadJSON(&message); err != nil {
			return
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			continue
		}

		if err := handler(ctx, cl, message.Payload); err != nil {
			// precondition failures surface as blocking notices
			cl.send(ActionError, NoticePayload{Message: err.Error()})
		}
	}
}
