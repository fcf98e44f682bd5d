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

type ChatRepository interface {
	Append(ctx context.Context, roomID string, entry entity.ChatEntry) error
	History(ctx context.Context, roomID string) ([]entity.ChatEntry, error)
	Subscribe(ctx context.Context, roomID string) (*ChatSubscription, error)
}

type dbChat struct {
	client *redis.Client
}

func NewChatRepository(client *redis.Client) ChatRepository {
	return &dbChat{
		client: client,
	}
}

// Append - pushes one entry onto the room's log and republishes the whole
// log. Subscribers replay the full transcript on every change. Push and
// publish ride in one WATCH/MULTI transaction, so the published logs arrive
// in commit order.
func (that *dbChat) Append(ctx context.Context, roomID string, entry entity.ChatEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("could not marshal chat entry: %w", err)
	}

	key := chatKey(roomID)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return fmt.Errorf("failed to read chat log: %w", err)
		}

		entries, err := decodeChatEntries(raw)
		if err != nil {
			return err
		}
		entries = append(entries, entry)

		log, err := json.Marshal(entries)
		if err != nil {
			return fmt.Errorf("could not marshal chat log: %w", err)
		}

		if _, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, key, data)
			pipe.Publish(ctx, key, log)
			return nil
		}); err != nil {
			return fmt.Errorf("failed to append chat entry: %w", err)
		}

		return nil
	}

	for attempt := 0; attempt < updateMaxRetries; attempt++ {
		err = that.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}

	return apperror.ErrConflict
}

func (that *dbChat) History(ctx context.Context, roomID string) ([]entity.ChatEntry, error) {
	raw, err := that.client.LRange(ctx, chatKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read chat log: %w", err)
	}

	return decodeChatEntries(raw)
}

func decodeChatEntries(raw []string) ([]entity.ChatEntry, error) {
	entries := make([]entity.ChatEntry, 0, len(raw))
	for _, item := range raw {
		var entry entity.ChatEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// ChatSubscription delivers the complete chat log on every change, starting
// with the current transcript.
type ChatSubscription struct {
	pubsub *redis.PubSub
	ch     chan []entity.ChatEntry
}

func (that *ChatSubscription) Logs() <-chan []entity.ChatEntry {
	return that.ch
}

func (that *ChatSubscription) Close() error {
	return that.pubsub.Close() //nolint:wrapcheck // closing is best-effort
}

func (that *dbChat) Subscribe(ctx context.Context, roomID string) (*ChatSubscription, error) {
	pubsub := that.client.Subscribe(ctx, chatKey(roomID))

	initial, err := that.History(ctx, roomID)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &ChatSubscription{
		pubsub: pubsub,
		ch:     make(chan []entity.ChatEntry, 8),
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
			var entries []entity.ChatEntry
			if err := json.Unmarshal([]byte(msg.Payload), &entries); err != nil {
				continue
			}

			select {
			case sub.ch <- entries:
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}
