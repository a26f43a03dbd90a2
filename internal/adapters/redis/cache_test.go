package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisad "review_action/internal/adapters/redis"
)

type entry struct {
	Token string `json:"token"`
	N     int    `json:"n"`
}

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	var got entry
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", entry{Token: "abc", N: 3}, 60))
	ok, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry{Token: "abc", N: 3}, got)

	require.NoError(t, c.Set(ctx, "k2", entry{N: 1}, 60))
	require.NoError(t, c.Del(ctx, "k", "k2", "missing"))
	ok, err = c.Get(ctx, "k2", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_TTLExpires(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "session:x", entry{Token: "x"}, 10))
	assert.Equal(t, 10*time.Second, mr.TTL("session:x"))

	mr.FastForward(11 * time.Second)
	var got entry
	ok, err := c.Get(ctx, "session:x", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Unavailable(t *testing.T) {
	c, mr := newCache(t)
	mr.Close()
	var got entry
	_, err := c.Get(context.Background(), "k", &got)
	assert.Error(t, err)
}
