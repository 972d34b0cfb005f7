package probe

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Realtime probes the realtime subsystem with a redis PING
type Realtime struct {
	client *redis.Client
}

// NewRealtime creates a realtime probe
func NewRealtime(redisURL string) (*Realtime, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &Realtime{client: redis.NewClient(opt)}, nil
}

func (r *Realtime) Probe(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the probe's connection
func (r *Realtime) Close() error {
	return r.client.Close()
}
