package apperror

import "errors"

var (
	// Validation errors - surfaced to the user as blocking notices.
	ErrUsernameTooShort = errors.New("username must be at least 2 characters")
	ErrEmptyRoomCode    = errors.New("room code is empty")
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is already full")
	ErrRoomExists       = errors.New("room already exists")
	ErrNoFreeRoomCode   = errors.New("could not find a free room code")
	ErrNotInRoom        = errors.New("not in a room")

	// Move rejections - swallowed by the move path, the next snapshot tells
	// the client what actually happened.
	ErrNotYourTurn  = errors.New("it's not your turn")
	ErrCellOccupied = errors.New("cell is already occupied")
	ErrGameFinished = errors.New("game is already finished")
	ErrInvalidCell  = errors.New("invalid cell index")

	// ErrConflict - a concurrent writer won the optimistic transaction.
	ErrConflict = errors.New("concurrent update conflict")
)
