package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aluiziolira/go-catalog-harvester/models"
)

// writeTimeout bounds a single batch write to a remote sink.
var writeTimeout = 10 * time.Second

// StreamClient is the subset of the Redis client used by RedisWriter.
type StreamClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// RedisWriter appends items to a Redis stream, one entry per item.
type RedisWriter struct {
	client StreamClient
	stream string

	mu      sync.Mutex
	written int
}

// NewRedisWriter connects to addr and verifies the server is reachable.
func NewRedisWriter(ctx context.Context, addr, stream string) (*RedisWriter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return newRedisWriter(client, stream), nil
}

func newRedisWriter(client StreamClient, stream string) *RedisWriter {
	return &RedisWriter{client: client, stream: stream}
}

// Write publishes each item as a stream entry carrying its JSON encoding.
func (rw *RedisWriter) Write(items []*models.Item) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	for _, item := range items {
		payload, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode item %s: %w", item.ID, err)
		}
		args := &redis.XAddArgs{
			Stream: rw.stream,
			Values: map[string]interface{}{
				"id":       item.ID,
				"category": item.Category,
				"payload":  string(payload),
			},
		}
		if _, err := rw.client.XAdd(ctx, args).Result(); err != nil {
			return fmt.Errorf("publish to redis stream %s: %w", rw.stream, err)
		}
		rw.written++
	}
	return nil
}

// Close releases the client connection.
func (rw *RedisWriter) Close() error {
	return rw.client.Close()
}

// Validate ensures at least one entry was published.
func (rw *RedisWriter) Validate() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.written == 0 {
		return fmt.Errorf("redis stream %s received no items", rw.stream)
	}
	return nil
}
