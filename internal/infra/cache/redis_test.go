package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/infra/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T, ttl time.Duration) (*cache.Redis[[]domain.Customer], *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c, err := cache.NewRedis[[]domain.Customer]("redis://"+s.Addr(), "org:", ttl, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, s
}

func TestRedis_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, s := newTestRedis(t, time.Minute)

	in := []domain.Customer{*domain.NewCustomer("a@x.com")}
	in[0].ReportingTo = []string{"b@x.com"}
	c.Set(ctx, "account:acc1", in)

	require.True(t, s.Exists("org:account:acc1"))

	out, ok := c.Get(ctx, "account:acc1")
	require.True(t, ok)
	require.Len(t, out, 1)
	require.Equal(t, "a@x.com", out[0].Email)
	require.Equal(t, []string{"b@x.com"}, out[0].ReportingTo)
}

func TestRedis_MissAndDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t, time.Minute)

	_, ok := c.Get(ctx, "account:none")
	require.False(t, ok)

	c.Set(ctx, "account:acc1", []domain.Customer{})
	c.Delete(ctx, "account:acc1")
	_, ok = c.Get(ctx, "account:acc1")
	require.False(t, ok)
}

func TestRedis_TTL(t *testing.T) {
	ctx := context.Background()
	c, s := newTestRedis(t, time.Minute)

	c.Set(ctx, "account:acc1", []domain.Customer{})
	s.FastForward(2 * time.Minute)

	_, ok := c.Get(ctx, "account:acc1")
	require.False(t, ok)
}

func TestNewRedis_BadURL(t *testing.T) {
	_, err := cache.NewRedis[string]("not-a-url://", "", time.Minute, zap.NewNop())
	require.Error(t, err)
}
