package tictactoe

import (
	"fmt"

	"github.com/xoxogame/xoxo-backend/internal/apperror"
	"github.com/xoxogame/xoxo-backend/internal/entity"
)

var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Evaluate - returns the winning mark, entity.DrawMarker when the board is
// full with no winner, or an empty string while the game continues. This is
// the single source of truth for terminal-state detection.
func Evaluate(board [9]string) string {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != entity.EmptyCell && a == b && b == c {
			return a
		}
	}

	// the game continues until every cell is taken
	for _, cell := range board {
		if cell == entity.EmptyCell {
			return ""
		}
	}

	return entity.DrawMarker
}

// ApplyMove - validates and applies one move, then settles turn, winner and
// score on the room document.
func ApplyMove(room *entity.Room, mark string, cell int) error {
	if cell < 0 || cell >= len(room.Board) {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if room.IsFinished() {
		return apperror.ErrGameFinished
	}

	if room.Turn != mark {
		return apperror.ErrNotYourTurn
	}

	if room.Board[cell] != entity.EmptyCell {
		return apperror.ErrCellOccupied
	}

	startTurn := room.Turn
	room.Board[cell] = mark

	switch winner := Evaluate(room.Board); winner {
	case entity.PlayerX:
		room.Winner = winner
		room.ScoreX++
		room.Turn = winner // winner starts the next round
	case entity.PlayerO:
		room.Winner = winner
		room.ScoreO++
		room.Turn = winner
	case entity.DrawMarker:
		room.Winner = winner
		room.Turn = entity.OpponentMark(startTurn) // draw flips whoever held the turn
	default:
		room.Winner = ""
		room.Turn = entity.OpponentMark(mark)
	}

	return nil
}
