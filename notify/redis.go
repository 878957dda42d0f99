package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink publishes events as JSON on a pub/sub channel. Subscribers can
// filter per restaurant with the "<channel>.<restaurant>" channel, which
// receives the same message.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink connects and pings with a short timeout.
func NewRedisSink(addr, channel string) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisSinkWithClient(client, channel), nil
}

func NewRedisSinkWithClient(client *redis.Client, channel string) *RedisSink {
	if channel == "" {
		channel = "floor.events"
	}
	return &RedisSink{client: client, channel: channel}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.Publish(ctx, s.channel, body)
	pipe.Publish(ctx, s.channel+"."+ev.RestaurantID, body)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
