package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/yappynotes/server/api"
)

// Redis provides caching of the newest messages in Redis. A sorted set keyed
// by creation time indexes per-message JSON entries. Append-only writes go
// through InsertMessage; any other mutation flushes the whole cache.
type Redis struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings the server to ensure the
// connection is working.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		cli: cli,
	}, nil
}

const (
	messagePrefix = "messages"
	maxSize       = 100
)

// ListMessages returns the cached messages, newest first. Entries evicted
// between the index read and the value read are skipped.
func (r *Redis) ListMessages(ctx context.Context) ([]api.Message, error) {
	keys, err := r.cli.ZRevRange(ctx, messagePrefix, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange: %w", err)
	}

	out := make([]api.Message, 0, len(keys))
	for _, key := range keys {
		raw, err := r.cli.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get: %w", err)
		}
		var msg message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal: %w", err)
		}
		out = append(out, msg.APIMessage())
	}
	return out, nil
}

// InsertMessage adds the message under messages:MESSAGE_ID and indexes the
// key in the sorted set, then trims the cache to its maximum size.
func (r *Redis) InsertMessage(ctx context.Context, msg api.Message) error {
	raw, err := json.Marshal(fromAPIMessage(msg))
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	key := fmt.Sprintf("%s:%s", messagePrefix, msg.ID)
	err = r.cli.Watch(ctx, func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			pipe.ZAdd(ctx, messagePrefix, redis.Z{
				Score:  float64(msg.CreatedAt.UnixNano()),
				Member: key,
			})
			return nil
		})
		return err
	}, msg.ID)
	if err != nil {
		return fmt.Errorf("redis insert message: %w", err)
	}

	if err := r.evictOldest(ctx); err != nil {
		return fmt.Errorf("evict oldest: %w", err)
	}
	return nil
}

// Flush drops the entire cache. Called after any mutation that rewrites
// existing messages (hide, clear, reactions, seen-marking).
func (r *Redis) Flush(ctx context.Context) error {
	keys, err := r.cli.ZRange(ctx, messagePrefix, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("zrange: %w", err)
	}
	if len(keys) > 0 {
		if err := r.cli.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("del: %w", err)
		}
	}
	if err := r.cli.Del(ctx, messagePrefix).Err(); err != nil {
		return fmt.Errorf("del index: %w", err)
	}
	return nil
}

// evictOldest removes the oldest entries once the cache exceeds its maximum
// size.
func (r *Redis) evictOldest(ctx context.Context) error {
	keys, err := r.cli.ZRange(ctx, messagePrefix, 0, int64(-maxSize-1)).Result()
	if err != nil {
		return fmt.Errorf("zrange: %w", err)
	}
	for _, key := range keys {
		_ = r.cli.ZRem(ctx, messagePrefix, key).Err()
		_ = r.cli.Del(ctx, key).Err()
	}
	return nil
}
