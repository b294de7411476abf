package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"coinflip-settlement/internal/model"
)

// Publisher appends JSON events to one stream under the "data" field.
type Publisher struct {
	redis     *redis.Client
	streamKey string
}

// NewPublisher creates a publisher writing to streamKey.
func NewPublisher(client *redis.Client, streamKey string) *Publisher {
	return &Publisher{redis: client, streamKey: streamKey}
}

// PublishSettled appends one settled game for the indexing layer.
func (p *Publisher) PublishSettled(ctx context.Context, g *model.SettledGame) error {
	return p.publish(ctx, g)
}

// PublishFulfillment appends a fulfillment the way a randomness adapter does.
func (p *Publisher) PublishFulfillment(ctx context.Context, f Fulfillment) error {
	return p.publish(ctx, f)
}

func (p *Publisher) publish(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error marshaling event: %w", err)
	}

	err = p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: p.streamKey,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("error publishing to stream %s: %w", p.streamKey, err)
	}
	return nil
}
