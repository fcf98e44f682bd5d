package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoom(t *testing.T) {
	// Given: a new room created by alice
	room := NewRoom("AB12CD", "alice")

	// Then: an empty waiting board with X to move and no scores
	assert.Equal(t, "AB12CD", room.ID)
	assert.Equal(t, [9]string{}, room.Board)
	assert.Equal(t, PlayerX, room.Turn)
	assert.Equal(t, "alice", room.PlayerX)
	assert.Empty(t, room.PlayerO)
	assert.Zero(t, room.ScoreX)
	assert.Zero(t, room.ScoreO)
	assert.Empty(t, room.Winner)
	assert.Equal(t, StatusWaiting, room.Status)
	assert.NotZero(t, room.CreatedAt)
	assert.True(t, room.HasOpenSeat())
}

func TestRoom_ResetRound(t *testing.T) {
	// Given: a finished round with scores on the board
	room := NewRoom("AB12CD", "alice")
	room.PlayerO = "bob"
	room.Board = [9]string{PlayerX, PlayerX, PlayerX, PlayerO, PlayerO, "", "", "", ""}
	room.Winner = PlayerX
	room.ScoreX = 2
	room.Turn = PlayerX

	// When: the round resets, twice
	room.ResetRound()
	room.ResetRound()

	// Then: board and winner cleared, everything else untouched
	require.Equal(t, [9]string{}, room.Board)
	require.Empty(t, room.Winner)
	assert.Equal(t, 2, room.ScoreX)
	assert.Equal(t, PlayerX, room.Turn)
	assert.Equal(t, "bob", room.PlayerO)
}

func TestOpponentMark(t *testing.T) {
	assert.Equal(t, PlayerO, OpponentMark(PlayerX))
	assert.Equal(t, PlayerX, OpponentMark(PlayerO))
}
