package service

import (
	"sync"

	"github.com/xoxogame/xoxo-backend/internal/entity"
)

// Session is one client's local view of its participation in a room. It is
// owned by whoever created it (a transport connection or a test) and is
// never shared between clients. The watcher goroutine updates it from
// incoming snapshots, so access goes through the mutex.
type Session struct {
	mu sync.Mutex

	username string
	roomID   string
	mark     string

	myTurn      bool
	active      bool
	cleanupDone bool

	// lastRoom is the most recent observed snapshot, used for the advisory
	// fast-path checks before a move is even sent to the store.
	lastRoom *entity.Room
}

func (that *Session) begin(username, roomID, mark string, room *entity.Room) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.username = username
	that.roomID = roomID
	that.mark = mark
	that.cleanupDone = false
	that.observeLocked(room)
}

// observe folds a fresh snapshot into the session flags.
func (that *Session) observe(room *entity.Room) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.observeLocked(room)
}

func (that *Session) observeLocked(room *entity.Room) {
	that.lastRoom = room
	that.myTurn = room.Turn == that.mark
	that.active = !room.IsFinished()
}

// reset clears the session back to the lobby state.
func (that *Session) reset() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.username = ""
	that.roomID = ""
	that.mark = ""
	that.myTurn = false
	that.active = false
	that.lastRoom = nil
}

// markClosed reports whether this is the first time the session learns its
// room is gone, so the closure is surfaced exactly once.
func (that *Session) markClosed() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.cleanupDone || that.roomID == "" {
		return false
	}

	that.cleanupDone = true
	return true
}

// canMove is the advisory fast-path check against the cached snapshot. It
// is not authoritative: the store transaction re-validates every move.
func (that *Session) canMove(cell int) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.active || !that.myTurn || that.lastRoom == nil {
		return false
	}

	if cell < 0 || cell >= len(that.lastRoom.Board) {
		return false
	}

	return that.lastRoom.Board[cell] == entity.EmptyCell
}

func (that *Session) Username() string {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.username
}

func (that *Session) RoomID() string {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.roomID
}

func (that *Session) Mark() string {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.mark
}

func (that *Session) InRoom() bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.roomID != ""
}

func (that *Session) MyTurn() bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.myTurn
}

func (that *Session) Active() bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.active
}
