package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// BatchStream receives one entry per committed batch.
const BatchStream = "ingest.batches.basketball_nba"

// BatchCompleted describes a committed batch.
type BatchCompleted struct {
	JobID         string         `json:"job_id,omitempty"`
	Season        string         `json:"season"`
	StartDate     string         `json:"start_date,omitempty"`
	EndDate       string         `json:"end_date,omitempty"`
	InputRows     int            `json:"input_rows"`
	AcceptedRows  int            `json:"accepted_rows"`
	InsertedRows  int            `json:"inserted_rows"`
	SkippedRows   int            `json:"skipped_rows"`
	GamesInserted int            `json:"games_inserted"`
	Dropped       map[string]int `json:"dropped,omitempty"`
	GameIDs       []string       `json:"game_ids"`
}

// RedisStreamPublisher publishes events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
	maxLen int64
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
		maxLen: 10000,
	}
}

// PublishBatchCompleted appends a batch event to BatchStream.
func (p *RedisStreamPublisher) PublishBatchCompleted(ctx context.Context, event BatchCompleted) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: BatchStream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
}

// NopPublisher discards events. Used when Redis is not configured.
type NopPublisher struct{}

// PublishBatchCompleted does nothing.
func (NopPublisher) PublishBatchCompleted(context.Context, BatchCompleted) error { return nil }
