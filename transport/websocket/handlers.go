package websocket

import (
	"context"
	"encoding/json"
	"fmt"
)

func (that *Server) handleCreate(ctx context.Context, cl *client, payload json.RawMessage) error {
	var p CreatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal create payload: %w", err)
	}

	if cl.sess != nil && cl.sess.InRoom() {
		return nil
	}

	room, sess, err := that.rooms.Create(ctx, p.Username)
	if err != nil {
		return err
	}

	cl.sess = sess
	if err = that.startWatch(ctx, cl); err != nil {
		return err
	}

	cl.send(ActionRoomCreated, SessionPayload{Room: room, Mark: sess.Mark()})
	return nil
}

func (that *Server) handleJoin(ctx context.Context, cl *client, payload json.RawMessage) error {
	var p JoinPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal join payload: %w", err)
	}

	if cl.sess != nil && cl.sess.InRoom() {
		return nil
	}

	room, sess, err := that.rooms.Join(ctx, p.Username, p.RoomID)
	if err != nil {
		return err
	}

	cl.sess = sess
	if err = that.startWatch(ctx, cl); err != nil {
		return err
	}

	cl.send(ActionRoomJoined, SessionPayload{Room: room, Mark: sess.Mark()})
	return nil
}

func (that *Server) handleMove(ctx context.Context, cl *client, payload json.RawMessage) error {
	if cl.sess == nil {
		return nil
	}

	var p MovePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal move payload: %w", err)
	}

	return that.rooms.Move(ctx, cl.sess, p.Cell)
}

func (that *Server) handleChat(ctx context.Context, cl *client, payload json.RawMessage) error {
	if cl.sess == nil {
		return nil
	}

	var p ChatPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal chat payload: %w", err)
	}

	return that.rooms.SendChat(ctx, cl.sess, p.Text)
}

func (that *Server) handleNextRound(ctx context.Context, cl *client, _ json.RawMessage) error {
	if cl.sess == nil {
		return nil
	}

	return that.rooms.NextRound(ctx, cl.sess)
}

// handleLeave - a user-initiated leave goes through a confirmation round
// trip: the first request is answered with a prompt and mutates nothing.
func (that *Server) handleLeave(ctx context.Context, cl *client, payload json.RawMessage) error {
	if cl.sess == nil || !cl.sess.InRoom() {
		return nil
	}

	var p LeavePayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("failed to unmarshal leave payload: %w", err)
		}
	}

	if !p.Confirmed {
		cl.send(ActionLeaveConfirm, NoticePayload{Message: "Are you sure you want to leave?"})
		return nil
	}

	cl.stopWatch()

	if err := that.rooms.Leave(ctx, cl.sess); err != nil {
		return err
	}

	cl.sess = nil
	cl.send(ActionRoomLeft, NoticePayload{Message: "You left the room."})
	return nil
}

func (that *Server) startWatch(ctx context.Context, cl *client) error {
	// A remote closure ends the room watcher but leaves the chat
	// subscription running; rejoining must not stack a second one.
	cl.stopWatch()

	watchCtx, cancel := context.WithCancel(ctx)
	cl.cancelWatch = cancel

	if err := that.watcher.Watch(watchCtx, cl.sess, cl); err != nil {
		cancel()
		return fmt.Errorf("failed to watch room: %w", err)
	}

	return nil
}
