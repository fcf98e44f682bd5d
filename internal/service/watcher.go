package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xoxogame/xoxo-backend/internal/apperror"
	"github.com/xoxogame/xoxo-backend/internal/entity"
	"github.com/xoxogame/xoxo-backend/internal/repository"
)

// Renderer is the display surface a session renders into. The watcher calls
// it from its own goroutines with complete snapshots, never deltas.
type Renderer interface {
	RenderRoom(room *entity.Room)
	RenderChat(entries []entity.ChatEntry)
	RoomClosed()
}

// Watcher wires a session to the store's change notifications: one live
// subscription on the room document, one on the chat log.
type Watcher struct {
	logger *slog.Logger

	roomRepo roomRepo
	chatRepo chatRepo
}

func NewWatcher(logger *slog.Logger, roomRepo roomRepo, chatRepo chatRepo) *Watcher {
	return &Watcher{
		logger: logger,

		roomRepo: roomRepo,
		chatRepo: chatRepo,
	}
}

// Watch - streams room and chat snapshots into the renderer until ctx is
// canceled or the room document disappears. Each snapshot also refreshes the
// session's turn and activity flags.
func (that *Watcher) Watch(ctx context.Context, sess *Session, renderer Renderer) error {
	roomID := sess.RoomID()
	if roomID == "" {
		return apperror.ErrNotInRoom
	}

	roomSub, err := that.roomRepo.Subscribe(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to subscribe to room: %w", err)
	}

	chatSub, err := that.chatRepo.Subscribe(ctx, roomID)
	if err != nil {
		_ = roomSub.Close()
		return fmt.Errorf("failed to subscribe to chat: %w", err)
	}

	go that.watchRoom(ctx, sess, renderer, roomSub)
	go that.watchChat(ctx, renderer, chatSub)

	return nil
}

func (that *Watcher) watchRoom(ctx context.Context, sess *Session, renderer Renderer, sub *repository.RoomSubscription) {
	defer func() { _ = sub.Close() }()

	log := that.logger.With("method", "watchRoom", "roomID", sess.RoomID())

	for {
		select {
		case <-ctx.Done():
			return
		case room, ok := <-sub.Snapshots():
			if !ok {
				return
			}

			if room == nil {
				// The document is gone: the other participant or a cleanup
				// closed the room. Surface it once and drop to lobby state.
				if sess.markClosed() {
					sess.reset()
					renderer.RoomClosed()
					log.Info("room closed by remote")
				}
				return
			}

			sess.observe(room)
			renderer.RenderRoom(room)
		}
	}
}

func (that *Watcher) watchChat(ctx context.Context, renderer Renderer, sub *repository.ChatSubscription) {
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case entries, ok := <-sub.Logs():
			if !ok {
				return
			}

			// full replay on every change; fine at this scale
			renderer.RenderChat(entries)
		}
	}
}
