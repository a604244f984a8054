package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type view struct {
	Subtotal string `json:"subtotal"`
	Lines    int    `json:"lines"`
}

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisCache(client, time.Minute), mr
}

func TestSetThenGet(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, CartKey("u1"), view{Subtotal: "2000", Lines: 1}))

	ttl := mr.TTL(CartKey("u1"))
	assert.GreaterOrEqual(t, ttl, time.Minute)
	assert.Less(t, ttl, 6*time.Minute)

	var got view
	require.NoError(t, c.Get(ctx, CartKey("u1"), &got))
	assert.Equal(t, view{Subtotal: "2000", Lines: 1}, got)
}

func TestGet_CacheMiss(t *testing.T) {
	c, _ := setupTestRedis(t)

	var got view
	err := c.Get(context.Background(), CartKey("nobody"), &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestGet_InvalidJSON(t *testing.T) {
	c, mr := setupTestRedis(t)
	mr.Set(CartKey("u1"), "{not json")

	var got view
	err := c.Get(context.Background(), CartKey("u1"), &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestInvalidate(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	mr.Set(CartKey("u1"), `{}`)
	mr.Set(OrdersKey("u1"), `{}`)
	mr.Set(CartKey("u2"), `{}`)

	require.NoError(t, c.Invalidate(ctx, "u1"))

	assert.False(t, mr.Exists(CartKey("u1")))
	assert.False(t, mr.Exists(OrdersKey("u1")))
	assert.True(t, mr.Exists(CartKey("u2")))
}

func TestGet_RedisDown(t *testing.T) {
	c, mr := setupTestRedis(t)
	mr.Close()

	var got view
	err := c.Get(context.Background(), CartKey("u1"), &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
