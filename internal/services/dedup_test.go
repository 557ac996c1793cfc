package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisDeduplicator(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	d := NewRedisDeduplicator(client, time.Minute)
	ctx := context.Background()

	seen, err := d.Seen(ctx, "SM123")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = d.Seen(ctx, "SM123")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.True(t, mr.Exists("lycapay:msg:SM123"))

	mr.FastForward(2 * time.Minute)
	seen, err = d.Seen(ctx, "SM123")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = d.Seen(ctx, "")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisDeduplicator_BackendDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	seen, err := NewRedisDeduplicator(client, time.Minute).Seen(context.Background(), "SM1")
	assert.Error(t, err)
	assert.False(t, seen)
}

func TestMemoryDeduplicator(t *testing.T) {
	d := NewMemoryDeduplicator(time.Minute)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }
	ctx := context.Background()

	seen, _ := d.Seen(ctx, "SM1")
	assert.False(t, seen)
	seen, _ = d.Seen(ctx, "SM1")
	assert.True(t, seen)
	seen, _ = d.Seen(ctx, "")
	assert.False(t, seen)
	seen, _ = d.Seen(ctx, "")
	assert.False(t, seen)

	clock = clock.Add(time.Minute)
	seen, _ = d.Seen(ctx, "SM1")
	assert.False(t, seen)
}
