package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
)

func TestRedisReferenceCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedisReferenceCache(client)
	ctx := context.Background()

	_, hit, err := c.Get(ctx, domain.CategoryAgent)
	require.NoError(t, err)
	assert.False(t, hit)

	entries := []domain.ReferenceEntry{{ID: "ref-1", Category: domain.CategoryAgent, Value: "Asia Travel", Phone: "081", Active: true}}
	require.NoError(t, c.Set(ctx, domain.CategoryAgent, entries, time.Minute))

	got, hit, err := c.Get(ctx, domain.CategoryAgent)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "Asia Travel", got[0].Value)
	assert.Equal(t, "081", got[0].Phone)

	mr.FastForward(2 * time.Minute)
	_, hit, err = c.Get(ctx, domain.CategoryAgent)
	require.NoError(t, err)
	assert.False(t, hit, "entry should expire with its ttl")
}

func TestRedisReferenceCacheInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedisReferenceCache(client)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, domain.CategoryPlace, nil, 0))
	got, hit, err := c.Get(ctx, domain.CategoryPlace)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Empty(t, got)

	require.NoError(t, c.Invalidate(ctx, domain.CategoryPlace))
	_, hit, err = c.Get(ctx, domain.CategoryPlace)
	require.NoError(t, err)
	assert.False(t, hit)
}
