package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// PacketSink stores radio events outside the process.
type PacketSink interface {
	Store(ctx context.Context, ev Event) error
	Close() error
}

// RedisSink keeps the last packet of each pipe under <prefix>:pipe:<n>
// and publishes every event as JSON on <prefix>:events.
type RedisSink struct {
	client *redis.Client
	prefix string
}

// NewRedisSink connects to addr and checks the server answers.
func NewRedisSink(ctx context.Context, addr, prefix string) (*RedisSink, error) {
	if prefix == "" {
		prefix = "nrf24"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}

	slog.Info("Redis packet sink connected", "addr", addr, "prefix", prefix)
	return &RedisSink{client: client, prefix: prefix}, nil
}

// PipeKey returns the key holding the last packet of pipe.
func (s *RedisSink) PipeKey(pipe int) string {
	return s.prefix + ":pipe:" + strconv.Itoa(pipe)
}

// Channel returns the pub/sub channel events are published on.
func (s *RedisSink) Channel() string {
	return s.prefix + ":events"
}

// Store writes ev in a single round trip.
func (s *RedisSink) Store(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	pipe := s.client.Pipeline()
	if ev.Type == EventPacket && ev.Pipe != nil {
		pipe.Set(ctx, s.PipeKey(*ev.Pipe), ev.Data, 0)
	}
	pipe.Publish(ctx, s.Channel(), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis write failed: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
