package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xoxogame/xoxo-backend/internal/apperror"
	"github.com/xoxogame/xoxo-backend/internal/entity"
	"github.com/xoxogame/xoxo-backend/internal/pkg"
	"github.com/xoxogame/xoxo-backend/internal/repository"
	"github.com/xoxogame/xoxo-backend/internal/tictactoe"
)

const (
	minUsernameLen = 2

	// maxCodeAttempts bounds the collision retry on room creation.
	maxCodeAttempts = 5
)

type roomRepo interface {
	Create(ctx context.Context, room *entity.Room) error
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	Update(ctx context.Context, id string, mutate func(*entity.Room) error) (*entity.Room, error)
	DeleteByID(ctx context.Context, id string) error
	Subscribe(ctx context.Context, id string) (*repository.RoomSubscription, error)
}

type chatRepo interface {
	Append(ctx context.Context, roomID string, entry entity.ChatEntry) error
	History(ctx context.Context, roomID string) ([]entity.ChatEntry, error)
	Subscribe(ctx context.Context, roomID string) (*repository.ChatSubscription, error)
}

// RoomService orchestrates the room lifecycle and turn protocol: create,
// join, move, next round, leave and chat. All coordination between the two
// participants goes through the room document in the store.
type RoomService struct {
	logger *slog.Logger

	roomRepo roomRepo
	chatRepo chatRepo
}

func NewRoomService(logger *slog.Logger, roomRepo roomRepo, chatRepo chatRepo) *RoomService {
	return &RoomService{
		logger: logger,

		roomRepo: roomRepo,
		chatRepo: chatRepo,
	}
}

// Create - opens a fresh room with the caller in the first seat. The room
// code is collision-checked against the store; after maxCodeAttempts taken
// codes in a row the call fails instead of retrying forever.
func (that *RoomService) Create(ctx context.Context, username string) (*entity.Room, *Session, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, nil, err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, genErr := pkg.GenerateRoomCode()
		if genErr != nil {
			return nil, nil, fmt.Errorf("failed to generate room code: %w", genErr)
		}

		room := entity.NewRoom(code, username)

		createErr := that.roomRepo.Create(ctx, room)
		if errors.Is(createErr, apperror.ErrRoomExists) {
			continue
		}
		if createErr != nil {
			return nil, nil, fmt.Errorf("failed to create room: %w", createErr)
		}

		sess := &Session{}
		sess.begin(username, code, entity.PlayerX, room)

		that.logger.Info("room created", "roomID", code, "host", username)

		return room, sess, nil
	}

	return nil, nil, apperror.ErrNoFreeRoomCode
}

// Join - takes the second seat. Fails when the room does not exist or the
// seat is taken; on success a join announcement is appended to the chat
// exactly once, as part of the seat transition.
func (that *RoomService) Join(ctx context.Context, username, code string) (*entity.Room, *Session, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, nil, err
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil, apperror.ErrEmptyRoomCode
	}

	room, err := that.roomRepo.Update(ctx, code, func(room *entity.Room) error {
		if !room.HasOpenSeat() {
			return apperror.ErrRoomFull
		}

		room.PlayerO = username
		room.Status = entity.StatusPlaying
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to join room: %w", err)
	}

	// best effort: the seat is taken either way
	announcement := entity.NewSystemEntry(fmt.Sprintf("%s joined the game.", username))
	if err = that.chatRepo.Append(ctx, code, announcement); err != nil {
		that.logger.Warn("failed to announce join", "roomID", code, "error", err)
	}

	sess := &Session{}
	sess.begin(username, code, entity.PlayerO, room)

	that.logger.Info("player joined room", "roomID", code, "player", username)

	return room, sess, nil
}

// Move - plays one cell. The cached snapshot gives a cheap advisory reject;
// the store transaction re-validates against the current document. A move
// that lost its window aborts silently: no write happens and the next
// snapshot tells the client what the board really looks like.
func (that *RoomService) Move(ctx context.Context, sess *Session, cell int) error {
	if !sess.canMove(cell) {
		return nil
	}

	mark := sess.Mark()
	roomID := sess.RoomID()

	_, err := that.roomRepo.Update(ctx, roomID, func(room *entity.Room) error {
		return tictactoe.ApplyMove(room, mark, cell)
	})

	switch {
	case err == nil:
		return nil
	case isStaleMove(err):
		that.logger.Debug("move rejected", "roomID", roomID, "cell", cell, "reason", err)
		return nil
	default:
		return fmt.Errorf("failed to apply move: %w", err)
	}
}

// NextRound - clears the board and winner, keeping scores, seats and the
// turn the winning move already set. Either participant may trigger it; both
// write the same reset values, so a concurrent double reset is harmless.
func (that *RoomService) NextRound(ctx context.Context, sess *Session) error {
	if !sess.InRoom() {
		return apperror.ErrNotInRoom
	}

	_, err := that.roomRepo.Update(ctx, sess.RoomID(), func(room *entity.Room) error {
		room.ResetRound()
		return nil
	})
	if err != nil && !errors.Is(err, apperror.ErrRoomNotFound) {
		return fmt.Errorf("failed to reset round: %w", err)
	}

	return nil
}

// Leave - ends this client's participation. The first seat owns the room:
// its departure destroys the document and the chat log. The second seat only
// vacates itself, leaving the room open; if the room is already gone that
// failure is swallowed, the end state is reached either way.
func (that *RoomService) Leave(ctx context.Context, sess *Session) error {
	if !sess.InRoom() {
		return nil
	}

	roomID := sess.RoomID()
	mark := sess.Mark()

	// Reset before touching the store so this session's own watcher does
	// not treat the removal as "closed by the other side".
	sess.markClosed()
	sess.reset()

	if mark == entity.PlayerX {
		if err := that.roomRepo.DeleteByID(ctx, roomID); err != nil {
			return fmt.Errorf("failed to delete room: %w", err)
		}

		that.logger.Info("room deleted", "roomID", roomID)
		return nil
	}

	_, err := that.roomRepo.Update(ctx, roomID, func(room *entity.Room) error {
		room.PlayerO = ""
		return nil
	})
	if err != nil {
		that.logger.Debug("failed to vacate seat", "roomID", roomID, "error", err)
	}

	return nil
}

// SendChat - appends one user entry to the room's chat log.
func (that *RoomService) SendChat(ctx context.Context, sess *Session, text string) error {
	if !sess.InRoom() {
		return nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	entry := entity.NewUserEntry(sess.Username(), text)
	if err := that.chatRepo.Append(ctx, sess.RoomID(), entry); err != nil {
		return fmt.Errorf("failed to send chat message: %w", err)
	}

	return nil
}

func normalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLen {
		return "", apperror.ErrUsernameTooShort
	}

	return username, nil
}

// isStaleMove reports whether the move simply lost its turn window, as
// opposed to a store failure worth surfacing.
func isStaleMove(err error) bool {
	return errors.Is(err, apperror.ErrRoomNotFound) ||
		errors.Is(err, apperror.ErrGameFinished) ||
		errors.Is(err, apperror.ErrNotYourTurn) ||
		errors.Is(err, apperror.ErrCellOccupied) ||
		errors.Is(err, apperror.ErrInvalidCell) ||
		errors.Is(err, apperror.ErrConflict)
}
