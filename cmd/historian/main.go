// cmd/historian/main.go is an asynchronous historian service that pops
// committed lobby actions from the Redis journal queue and persists them to
// a PostgreSQL audit table.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/tmunro/partyhub/internal/journal"
)

// HistorianService encapsulates the Redis + DB logic for draining the
// action journal into durable storage in batches.
type HistorianService struct {
	redisClient *redis.Client
	db          *pgxpool.Pool
	queueName   string
	batchSize   int
	flushDelay  time.Duration

	batchMu  sync.Mutex
	batch    []journal.ActionRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewHistorianService constructs a HistorianService from environment
// variables or defaults.
func NewHistorianService() *HistorianService {
	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := getEnvInt("HISTORIAN_FLUSH_MS", 500)

	rdb := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_ADDR", "localhost:6379"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &HistorianService{
		redisClient: rdb,
		queueName:   getEnv("JOURNAL_QUEUE_NAME", journal.DefaultQueueName),
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		batch:       make([]journal.ActionRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects the database, ensures the audit table, and starts the
// drain loop. Blocks until the service is stopped.
func (hs *HistorianService) Run() error {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("PG_HOST"),
		os.Getenv("PG_PORT"),
		os.Getenv("PG_DATABASE"),
	)
	pool, err := pgxpool.New(hs.ctx, connStr)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	hs.db = pool

	_, err = pool.Exec(hs.ctx, `
		CREATE TABLE IF NOT EXISTS lobby_actions (
			id          BIGSERIAL PRIMARY KEY,
			lobby_id    UUID NOT NULL,
			actor       TEXT NOT NULL,
			action_type TEXT NOT NULL,
			payload     TEXT,
			ts          BIGINT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure lobby_actions table: %w", err)
	}

	go hs.readRedisLoop()

	log.Println("partyhub-historian service started.")
	<-hs.ctx.Done()
	log.Println("partyhub-historian shutting down.")
	hs.flushBatchToDB()
	pool.Close()
	return nil
}

// Stop cancels the service context.
func (hs *HistorianService) Stop() {
	hs.cancelFn()
}

// readRedisLoop continuously uses BLPop to retrieve journal records,
// flushing the accumulated batch on a timer or when it fills up.
func (hs *HistorianService) readRedisLoop() {
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			hs.flushBatchToDB()

		default:
			// BLPop with a short timeout so context cancellation is handled.
			res, err := hs.redisClient.BLPop(hs.ctx, 3*time.Second, hs.queueName).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && hs.ctx.Err() == nil {
					log.Printf("[ERROR] BLPop: %v\n", err)
				}
				continue
			}
			if len(res) < 2 {
				continue
			}

			// res[0] is the queue name and res[1] the payload.
			var record journal.ActionRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				log.Printf("invalid action record: %v\n", err)
				continue
			}

			hs.batchMu.Lock()
			hs.batch = append(hs.batch, record)
			full := len(hs.batch) >= hs.batchSize
			hs.batchMu.Unlock()
			if full {
				hs.flushBatchToDB()
			}
		}
	}
}

// flushBatchToDB inserts the pending batch, if any, in one round.
func (hs *HistorianService) flushBatchToDB() {
	hs.batchMu.Lock()
	if len(hs.batch) == 0 {
		hs.batchMu.Unlock()
		return
	}
	pending := hs.batch
	hs.batch = make([]journal.ActionRecord, 0, hs.batchSize)
	hs.batchMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, rec := range pending {
		_, err := hs.db.Exec(ctx, `
			INSERT INTO lobby_actions (lobby_id, actor, action_type, payload, ts)
			VALUES ($1, $2, $3, $4, $5)
		`, rec.LobbyID, rec.Actor, rec.ActionType, rec.Payload, rec.Timestamp)
		if err != nil {
			log.Printf("[ERROR] insert lobby action: %v\n", err)
		}
	}
}

func main() {
	hs := NewHistorianService()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		hs.Stop()
	}()

	if err := hs.Run(); err != nil {
		log.Fatalf("historian exited: %v", err)
	}
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
