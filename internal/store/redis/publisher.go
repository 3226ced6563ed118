// Package redis publishes engine snapshots to Redis for external consumers:
// a latest-value key with TTL plus a pub/sub channel for push subscribers.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"scalper-botv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	latestKey     = "scalper:snapshot:latest"
	pubsubChannel = "pub:scalper:snapshot"
	latestTTL     = time.Minute
	writeTimeout  = 2 * time.Second
)

// Config configures the Redis publisher.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher mirrors each published snapshot into Redis. Failures are logged
// and dropped; the engine never blocks on Redis availability.
type Publisher struct {
	client *goredis.Client
}

// New creates a Publisher and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// PublishSnapshot stores the snapshot under the latest key and fans it out on
// the pub/sub channel in a single pipeline roundtrip.
func (p *Publisher) PublishSnapshot(snap model.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[redis] snapshot marshal: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	pipe := p.client.Pipeline()
	pipe.Set(ctx, latestKey, data, latestTTL)
	pipe.Publish(ctx, pubsubChannel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] snapshot publish: %v", err)
	}
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
