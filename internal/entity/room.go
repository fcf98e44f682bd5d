package entity

import "time"

const (
	StatusWaiting = "waiting"
	StatusPlaying = "playing"

	PlayerX    = "X"
	PlayerO    = "O"
	DrawMarker = "DRAW"

	EmptyCell = ""
)

// Room is the shared document representing one game session. Both
// participants read and write it through the store; field names follow the
// wire format the clients subscribe to.
type Room struct {
	ID        string    `json:"id"`
	Board     [9]string `json:"board"`
	Turn      string    `json:"turn"`
	PlayerX   string    `json:"playerX"`
	PlayerO   string    `json:"playerO"`
	ScoreX    int       `json:"scoreX"`
	ScoreO    int       `json:"scoreO"`
	Winner    string    `json:"winner"`
	Status    string    `json:"status"`
	CreatedAt int64     `json:"createdAt"`
}

func NewRoom(id, host string) *Room {
	return &Room{
		ID:        id,
		Board:     [9]string{},
		Turn:      PlayerX,
		PlayerX:   host,
		Status:    StatusWaiting,
		CreatedAt: time.Now().UnixMilli(),
	}
}

func (that *Room) HasOpenSeat() bool {
	return that.PlayerO == ""
}

func (that *Room) IsFinished() bool {
	return that.Winner != ""
}

// ResetRound clears the board and winner for the next round. Turn, scores
// and seats stay as they are: the winning move already set the turn.
func (that *Room) ResetRound() {
	that.Board = [9]string{}
	that.Winner = ""
}

func OpponentMark(mark string) string {
	if mark == PlayerX {
		return PlayerO
	}
	return PlayerX
}
