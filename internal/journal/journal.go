// internal/journal/journal.go
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list the committed-action journal is
// pushed to. The historian service pops from the same list.
var DefaultQueueName = "partyhub_actions"

// ActionRecord holds the minimal info about one committed lobby action,
// enough for the historian to reconstruct who did what, where, and when.
type ActionRecord struct {
	LobbyID    uuid.UUID `json:"lobby_id"`
	Actor      string    `json:"actor"`
	ActionType string    `json:"action_type"`
	Payload    string    `json:"payload,omitempty"`
	Timestamp  int64     `json:"timestamp"` // unix millis
}

// Journal publishes committed actions to a Redis list. Publishing is
// best-effort: a failed push never affects the mutation it describes,
// which has already committed by the time Publish runs.
type Journal struct {
	rdb   *redis.Client
	queue string
}

// FromEnv connects a Journal from REDIS_ADDR / REDIS_DB /
// JOURNAL_QUEUE_NAME. Returns (nil, nil) when REDIS_ADDR is unset, which
// disables journaling entirely.
func FromEnv(ctx context.Context) (*Journal, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   getEnvInt("REDIS_DB", 0),
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to Redis at %s: %w", addr, err)
	}

	return &Journal{
		rdb:   rdb,
		queue: getEnv("JOURNAL_QUEUE_NAME", DefaultQueueName),
	}, nil
}

// Publish serializes the record and pushes it onto the journal queue.
func (j *Journal) Publish(ctx context.Context, record ActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal action record: %w", err)
	}
	if err := j.rdb.RPush(ctx, j.queue, data).Err(); err != nil {
		return fmt.Errorf("rpush to Redis list %q: %w", j.queue, err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (j *Journal) Close() error {
	return j.rdb.Close()
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
