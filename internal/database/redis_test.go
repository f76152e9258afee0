package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClients(t *testing.T) {
	mr := miniredis.RunT(t)

	clients, err := NewRedisClients(context.Background(), "redis://"+mr.Addr(), 6)
	require.NoError(t, err)
	defer clients.Close()

	assert.NotSame(t, clients.Queue, clients.Cache)
	assert.NotSame(t, clients.Cache, clients.Realtime)
	assert.Equal(t, 10, clients.Queue.Options().PoolSize)
	assert.Equal(t, 2, clients.Realtime.Options().PoolSize)

	require.NoError(t, clients.Cache.Set(context.Background(), "k", "v", 0).Err())
	got, err := clients.Queue.Get(context.Background(), "k").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClients_Errors(t *testing.T) {
	_, err := NewRedisClients(context.Background(), "not-a-url", 1)
	assert.ErrorContains(t, err, "parse Redis URL")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisClients(context.Background(), "redis://"+addr, 1)
	assert.ErrorContains(t, err, "failed to ping Redis (queue)")
}
