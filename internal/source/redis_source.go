package source

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smartcity/fleet-tracker/internal/domain"
)

// DefaultChannel is where snapshot payloads are published
const DefaultChannel = "fleet:locations"

// SnapshotHandler consumes decoded snapshots
type SnapshotHandler interface {
	ApplySnapshot(ctx context.Context, snap domain.Snapshot) domain.SnapshotResult
}

// RedisSource feeds snapshots published on a Redis channel to a handler
type RedisSource struct {
	client  *redis.Client
	channel string
	handler SnapshotHandler
}

// NewRedisSource creates a new Redis-backed location source
func NewRedisSource(client *redis.Client, channel string, handler SnapshotHandler) *RedisSource {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSource{client: client, channel: channel, handler: handler}
}

// Run subscribes and blocks until ctx is cancelled. Malformed payloads are
// logged and skipped.
func (s *RedisSource) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("source: failed to subscribe to %s: %w", s.channel, err)
	}
	log.Printf("Listening for location snapshots on %s", s.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			snap, err := DecodeSnapshot([]byte(msg.Payload), time.Now())
			if err != nil {
				log.Printf("warning: %v", err)
				continue
			}
			res := s.handler.ApplySnapshot(ctx, snap)
			if len(res.Dropped) > 0 {
				log.Printf("Dropped %d entities no longer broadcasting", len(res.Dropped))
			}
		}
	}
}
