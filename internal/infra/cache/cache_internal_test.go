package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemory_PurgeDropsExpired(t *testing.T) {
	ctx := context.Background()
	c := New[int](time.Minute)
	defer c.Close()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Set(ctx, "a", 1)
	clock = clock.Add(30 * time.Second)
	c.Set(ctx, "b", 2)
	clock = clock.Add(45 * time.Second)

	c.purge()
	require.Equal(t, 1, c.Len())
	_, ok := c.Get(ctx, "a")
	require.False(t, ok)
	v, ok := c.Get(ctx, "b")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestInMemory_NoTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	c := New[string](0)
	defer c.Close()

	c.now = func() time.Time { return time.Now().Add(100 * 365 * 24 * time.Hour) }
	c.Set(ctx, "k", "v")
	c.purge()

	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, "v", v)
}
