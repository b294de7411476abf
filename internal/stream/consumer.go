// Package stream moves events through Redis Streams: randomness fulfillments
// in, settled games out.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Fulfillment is a random value delivered for an earlier randomness request.
type Fulfillment struct {
	RequestID   string `json:"request_id"`
	RandomValue string `json:"random_value"`
	Timestamp   int64  `json:"timestamp"`
	BlockNumber uint64 `json:"block_number"`
}

// Handler processes one fulfillment. A nil return acknowledges the message;
// an error leaves it pending so it is delivered again.
type Handler func(ctx context.Context, f Fulfillment) error

// Consumer reads fulfillments from a stream through a consumer group.
type Consumer struct {
	redis      *redis.Client
	streamKey  string
	groupName  string
	consumerID string
	batchSize  int64
	blockTime  time.Duration
	retryDelay time.Duration
}

// NewConsumer creates a consumer. Zero batch size or block time fall back to
// 100 messages and 5 seconds.
func NewConsumer(client *redis.Client, streamKey, groupName, consumerID string, batchSize int64, blockTime time.Duration) *Consumer {
	if batchSize <= 0 {
		batchSize = 100
	}
	if blockTime <= 0 {
		blockTime = 5 * time.Second
	}
	return &Consumer{
		redis:      client,
		streamKey:  streamKey,
		groupName:  groupName,
		consumerID: consumerID,
		batchSize:  batchSize,
		blockTime:  blockTime,
		retryDelay: time.Second,
	}
}

// Run consumes until ctx is cancelled. It first replays messages this
// consumer read but never acknowledged, then follows new ones. After a batch
// with failures it replays the pending list again.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	if err := c.createConsumerGroup(ctx); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	log.Info().
		Str("stream", c.streamKey).
		Str("group", c.groupName).
		Str("consumer", c.consumerID).
		Msg("Stream consumer started")

	replay := true
	for {
		if ctx.Err() != nil {
			return nil
		}

		start := ">"
		if replay {
			start = "0"
		}
		msgs, err := c.read(ctx, start)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("stream", c.streamKey).Msg("Failed to read stream")
			c.sleep(ctx)
			continue
		}

		failed := c.process(ctx, msgs, handle)
		switch {
		case failed > 0:
			replay = true
			c.sleep(ctx)
		case replay && len(msgs) == 0:
			replay = false
		}
	}
}

func (c *Consumer) process(ctx context.Context, msgs []redis.XMessage, handle Handler) int {
	failed := 0
	for _, msg := range msgs {
		f, err := decode(msg)
		if err != nil {
			log.Error().Err(err).Str("message_id", msg.ID).Msg("Dropping undecodable fulfillment")
			c.ack(ctx, msg.ID)
			continue
		}

		if err := handle(ctx, f); err != nil {
			failed++
			log.Warn().
				Err(err).
				Str("message_id", msg.ID).
				Str("request_id", f.RequestID).
				Msg("Fulfillment failed, leaving pending")
			continue
		}
		c.ack(ctx, msg.ID)
	}
	return failed
}

func (c *Consumer) read(ctx context.Context, start string) ([]redis.XMessage, error) {
	args := &redis.XReadGroupArgs{
		Group:    c.groupName,
		Consumer: c.consumerID,
		Streams:  []string{c.streamKey, start},
		Count:    c.batchSize,
	}
	// Reading the pending list must not block.
	if start == ">" {
		args.Block = c.blockTime
	}

	streams, err := c.redis.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var msgs []redis.XMessage
	for _, s := range streams {
		msgs = append(msgs, s.Messages...)
	}
	return msgs, nil
}

func decode(msg redis.XMessage) (Fulfillment, error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return Fulfillment{}, fmt.Errorf("message %s has no data field", msg.ID)
	}
	var f Fulfillment
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return Fulfillment{}, fmt.Errorf("error unmarshaling message %s: %w", msg.ID, err)
	}
	if f.RequestID == "" {
		return Fulfillment{}, fmt.Errorf("message %s has no request_id", msg.ID)
	}
	return f, nil
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.redis.XAck(ctx, c.streamKey, c.groupName, id).Err(); err != nil {
		log.Warn().Err(err).Str("message_id", id).Msg("Failed to ack message")
	}
}

func (c *Consumer) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.retryDelay):
	}
}

func (c *Consumer) createConsumerGroup(ctx context.Context) error {
	err := c.redis.XGroupCreateMkStream(ctx, c.streamKey, c.groupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}
