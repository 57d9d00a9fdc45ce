// Package events publishes catalog change notifications over Redis pub/sub so storefront
// caches can drop stale product prices.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// ChannelDiscounts carries discount_applied / discount_cleared events.
	ChannelDiscounts = "catalog:discounts"

	publishTimeout = 5 * time.Second
)

// Event names published on ChannelDiscounts.
const (
	EventDiscountApplied = "discount_applied"
	EventDiscountCleared = "discount_cleared"
)

// Message is the envelope written to Redis.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// Publisher publishes JSON events to Redis channels.
type Publisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPublisher creates a Redis-backed event publisher.
func NewPublisher(client *redis.Client, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, logger: logger}
}

// Publish marshals data and publishes it on channel under the given event name.
func (p *Publisher) Publish(ctx context.Context, channel, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	body, err := json.Marshal(Message{Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	p.logger.Debug("event published", zap.String("channel", channel), zap.String("event", event))
	return nil
}
