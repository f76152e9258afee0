package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClients splits Redis traffic by role so that one kind of traffic
// cannot starve another of connections.
type RedisClients struct {
	// Queue carries job pushes and the workers' blocking pops.
	Queue *redis.Client
	// Cache serves short request-path commands: recommendation cache,
	// rate limit counters and pub/sub publishes.
	Cache *redis.Client
	// Realtime holds the websocket hub's pattern subscription.
	Realtime *redis.Client
}

// NewRedisClients connects all three clients. queueWorkers is the number of
// consumers that may block on the queue at once; the queue pool is sized
// above it so pushes never wait behind pops.
func NewRedisClients(ctx context.Context, redisURL string, queueWorkers int) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	queueOpt := *opt
	queueOpt.PoolSize = max(queueOpt.PoolSize, queueWorkers+4)

	cacheOpt := *opt

	realtimeOpt := *opt
	realtimeOpt.PoolSize = 2

	clients := &RedisClients{}
	roles := []struct {
		name string
		opt  *redis.Options
		dst  **redis.Client
	}{
		{"queue", &queueOpt, &clients.Queue},
		{"cache", &cacheOpt, &clients.Cache},
		{"realtime", &realtimeOpt, &clients.Realtime},
	}
	for _, role := range roles {
		c := redis.NewClient(role.opt)
		if err := c.Ping(ctx).Err(); err != nil {
			c.Close()
			clients.Close()
			return nil, fmt.Errorf("failed to ping Redis (%s): %w", role.name, err)
		}
		*role.dst = c
	}
	return clients, nil
}

func (r *RedisClients) Close() {
	for _, c := range []*redis.Client{r.Queue, r.Cache, r.Realtime} {
		if c != nil {
			c.Close()
		}
	}
}
