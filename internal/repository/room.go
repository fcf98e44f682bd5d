package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xoxogame/xoxo-backend/internal/apperror"
	"github.com/xoxogame/xoxo-backend/internal/entity"
)

const (
	roomKeyPrefix = "room:"
	chatKeySuffix = ":chat"

	// deletedPayload marks a room removal on its change channel.
	deletedPayload = "null"

	// updateMaxRetries bounds the optimistic WATCH retries before the
	// caller is told a concurrent writer won.
	updateMaxRetries = 3
)

func roomKey(id string) string {
	return roomKeyPrefix + id
}

func chatKey(id string) string {
	return roomKey(id) + chatKeySuffix
}

type RoomRepository interface {
	Create(ctx context.Context, room *entity.Room) error
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	Update(ctx context.Context, id string, mutate func(*entity.Room) error) (*entity.Room, error)
	DeleteByID(ctx context.Context, id string) error
	Subscribe(ctx context.Context, id string) (*RoomSubscription, error)
}

type dbRoom struct {
	client *redis.Client
}

func NewRoomRepository(client *redis.Client) RoomRepository {
	return &dbRoom{
		client: client,
	}
}

// Create - writes a fresh room document. Fails with ErrRoomExists when the
// code is already taken, so callers can retry with a new code. The write and
// its snapshot publish go through one transaction, so subscribers see
// snapshots in commit order.
func (that *dbRoom) Create(ctx context.Context, room *entity.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("could not marshal room: %w", err)
	}

	key := roomKey(room.ID)

	txf := func(tx *redis.Tx) error {
		_, err := tx.Get(ctx, key).Result()
		if err == nil {
			return apperror.ErrRoomExists
		}
		if !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to check room code: %w", err)
		}

		if _, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.Publish(ctx, key, data)
			return nil
		}); err != nil {
			return fmt.Errorf("failed to set room: %w", err)
		}

		return nil
	}

	err = that.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		// a concurrent creator claimed the code between the check and the
		// commit, same outcome as finding it taken
		return apperror.ErrRoomExists
	}

	return err
}

func (that *dbRoom) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	response, err := that.client.Get(ctx, roomKey(id)).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room by id: %w", err)
	}

	var existingRoom entity.Room
	if err = json.Unmarshal([]byte(response), &existingRoom); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &existingRoom, nil
}

// Update - applies mutate to the current document inside a WATCH/MULTI
// transaction, so a move validated against a stale snapshot never overwrites
// a concurrent one. The snapshot publish rides in the same transaction, which
// keeps fan-out order identical to commit order. Errors returned by mutate
// abort the write and surface unchanged; losing the transaction
// updateMaxRetries times yields ErrConflict.
func (that *dbRoom) Update(ctx context.Context, id string, mutate func(*entity.Room) error) (*entity.Room, error) {
	key := roomKey(id)

	var updated *entity.Room

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return apperror.ErrRoomNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get room: %w", err)
		}

		var room entity.Room
		if err = json.Unmarshal([]byte(raw), &room); err != nil {
			return fmt.Errorf("failed to unmarshal room: %w", err)
		}

		if err = mutate(&room); err != nil {
			return err
		}

		payload, err := json.Marshal(&room)
		if err != nil {
			return fmt.Errorf("failed to marshal room: %w", err)
		}

		if _, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.Publish(ctx, key, payload)
			return nil
		}); err != nil {
			return err
		}

		updated = &room
		return nil
	}

	for attempt := 0; attempt < updateMaxRetries; attempt++ {
		err := that.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return updated, nil
	}

	return nil, apperror.ErrConflict
}

// DeleteByID - removes the room document together with its chat log and
// announces the removal to subscribers. Removal and tombstone go out as one
// transaction so the tombstone cannot be reordered against a racing update.
func (that *dbRoom) DeleteByID(ctx context.Context, id string) error {
	if _, err := that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, roomKey(id), chatKey(id))
		pipe.Publish(ctx, roomKey(id), deletedPayload)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to delete room by id: %w", err)
	}

	return nil
}

// RoomSubscription delivers complete room snapshots, starting with the
// current value. A nil snapshot means the room document was deleted.
type RoomSubscription struct {
	pubsub *redis.PubSub
	ch     chan *entity.Room
}

func (that *RoomSubscription) Snapshots() <-chan *entity.Room {
	return that.ch
}

func (that *RoomSubscription) Close() error {
	return that.pubsub.Close() //nolint:wrapcheck // closing is best-effort
}

func (that *dbRoom) Subscribe(ctx context.Context, id string) (*RoomSubscription, error) {
	pubsub := that.client.Subscribe(ctx, roomKey(id))

	// The initial read happens after subscribing, so a write racing the
	// setup shows up either in the snapshot or on the channel.
	initial, err := that.GetByID(ctx, id)
	if err != nil && !errors.Is(err, apperror.ErrRoomNotFound) {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &RoomSubscription{
		pubsub: pubsub,
		ch:     make(chan *entity.Room, 8),
	}

	go func() {
		<-ctx.Done()
		_ = pubsub.Close()
	}()

	go func() {
		defer close(sub.ch)

		select {
		case sub.ch <- initial:
		case <-ctx.Done():
			return
		}

		for msg := range pubsub.Channel() {
			room, decodeErr := decodeRoomPayload(msg.Payload)
			if decodeErr != nil {
				continue
			}

			select {
			case sub.ch <- room:
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}

func decodeRoomPayload(payload string) (*entity.Room, error) {
	var room *entity.Room
	if err := json.Unmarshal([]byte(payload), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room snapshot: %w", err)
	}

	return room, nil
}
