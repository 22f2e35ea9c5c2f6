package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Channel naming: one base event channel and one thumbnail-enriched
// channel per organization. Subscribers choose which feed they want;
// the pipeline only pays for thumbnail payloads when someone listens.
func EventChannel(orgID string) string {
	return fmt.Sprintf("fusion:%s:events", orgID)
}

func ThumbnailChannel(orgID string) string {
	return fmt.Sprintf("fusion:%s:events:thumbnails", orgID)
}

type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, msg *EventMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal realtime message: %w", err)
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// SubscriberCount returns the number of live subscribers on a channel
// (PUBSUB NUMSUB). The thumbnail gate keys off this.
func (p *Publisher) SubscriberCount(ctx context.Context, channel string) (int64, error) {
	counts, err := p.client.PubSubNumSub(ctx, channel).Result()
	if err != nil {
		return 0, err
	}
	return counts[channel], nil
}

// Client exposes the underlying redis client for subscribers (the
// websocket relay); the pipeline itself only publishes.
func (p *Publisher) Client() *redis.Client {
	return p.client
}
