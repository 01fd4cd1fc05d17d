package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/cache"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store/memory"
)

type countingStore struct {
	*memory.Store
	lists atomic.Int64
}

func (c *countingStore) ListReferenceEntries(ctx context.Context, category domain.ReferenceCategory) ([]domain.ReferenceEntry, error) {
	c.lists.Add(1)
	return c.Store.ListReferenceEntries(ctx, category)
}

// gatedStore holds its first list read after taking the snapshot, so a
// write can land while that load is still in flight.
type gatedStore struct {
	*memory.Store
	gated   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) ListReferenceEntries(ctx context.Context, category domain.ReferenceCategory) ([]domain.ReferenceEntry, error) {
	entries, err := g.Store.ListReferenceEntries(ctx, category)
	if g.gated.CompareAndSwap(false, true) {
		close(g.entered)
		<-g.release
	}
	return entries, err
}

func newCatalog(t *testing.T) (*Catalog, *countingStore) {
	t.Helper()
	s := &countingStore{Store: memory.New()}
	return New(s, nil, time.Minute, nil), s
}

func TestCheckDuplicateIsCaseInsensitive(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	_, err := c.Add(ctx, domain.CategoryAgent, "abc", "", "")
	require.NoError(t, err)

	check, err := c.CheckDuplicate(ctx, domain.CategoryAgent, "ABC", "")
	require.NoError(t, err)
	assert.True(t, check.Exists)
	require.NotNil(t, check.Match)
	assert.Equal(t, "abc", check.Match.Value)

	check, err = c.CheckDuplicate(ctx, domain.CategoryAgent, "  abc  ", "")
	require.NoError(t, err)
	assert.True(t, check.Exists, "values are compared trimmed")

	check, err = c.CheckDuplicate(ctx, domain.CategoryPlace, "ABC", "")
	require.NoError(t, err)
	assert.False(t, check.Exists)
}

func TestAddRejectsDuplicateBeforeWriting(t *testing.T) {
	c, s := newCatalog(t)
	ctx := context.Background()

	_, err := c.Add(ctx, domain.CategoryTourRecipient, "Phi Phi Speedboat", "", "081")
	require.NoError(t, err)

	_, err = c.Add(ctx, domain.CategoryTourRecipient, "phi phi SPEEDBOAT", "", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateValue))

	entries, err := s.Store.ListReferenceEntries(ctx, domain.CategoryTourRecipient)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAddRejectsEmptyValueAndUnknownCategory(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	_, err := c.Add(ctx, domain.CategoryAgent, "   ", "", "")
	var ve domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "value", ve.Field)

	_, err = c.Add(ctx, domain.ReferenceCategory("hotel"), "Hilton", "", "")
	require.ErrorAs(t, err, &ve)
}

func TestUpdateExcludesItselfFromDuplicateCheck(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	entry, err := c.Add(ctx, domain.CategoryAgent, "Asia Travel", "", "")
	require.NoError(t, err)
	_, err = c.Add(ctx, domain.CategoryAgent, "Siam Discovery", "", "")
	require.NoError(t, err)

	updated, err := c.Update(ctx, entry.ID, "ASIA TRAVEL", "renamed", "02-000")
	require.NoError(t, err)
	assert.Equal(t, "ASIA TRAVEL", updated.Value)
	assert.Equal(t, "02-000", updated.Phone)

	_, err = c.Update(ctx, entry.ID, "siam discovery", "", "")
	assert.ErrorIs(t, err, ErrDuplicateValue)
}

func TestDeactivateHidesEntryAndFreesValue(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	entry, err := c.Add(ctx, domain.CategoryPlace, "Patong Beach", "", "")
	require.NoError(t, err)

	_, err = c.Deactivate(ctx, entry.ID)
	require.NoError(t, err)

	entries, err := c.FindByCategory(ctx, domain.CategoryPlace)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = c.Add(ctx, domain.CategoryPlace, "patong beach", "", "")
	require.NoError(t, err)

	_, err = c.Update(ctx, entry.ID, "Old Patong", "", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindByCategoryOrdersByValue(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()
	for _, v := range []string{"zeta", "Alpha", "beta"} {
		_, err := c.Add(ctx, domain.CategoryTourType, v, "", "")
		require.NoError(t, err)
	}

	entries, err := c.FindByCategory(ctx, domain.CategoryTourType)
	require.NoError(t, err)
	values := make([]string, 0, len(entries))
	for _, e := range entries {
		values = append(values, e.Value)
	}
	assert.Equal(t, []string{"Alpha", "beta", "zeta"}, values)
}

func TestFindByCategoryUsesRedisCacheAndInvalidatesOnWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	client := cache.NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	s := &countingStore{Store: memory.New()}
	c := New(s, cache.NewRedisReferenceCache(client), time.Minute, nil)
	ctx := context.Background()

	_, err := c.Add(ctx, domain.CategoryAgent, "Andaman Holidays", "", "")
	require.NoError(t, err)
	before := s.lists.Load()

	for i := 0; i < 3; i++ {
		entries, err := c.FindByCategory(ctx, domain.CategoryAgent)
		require.NoError(t, err)
		require.Len(t, entries, 1)
	}
	assert.Equal(t, before+1, s.lists.Load(), "only the first read should reach the store")

	_, err = c.Add(ctx, domain.CategoryAgent, "Siam Discovery", "", "")
	require.NoError(t, err)
	entries, err := c.FindByCategory(ctx, domain.CategoryAgent)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "write must invalidate the cached list")
}

func TestWriteDuringLoadDoesNotLeaveStaleCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := cache.NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	s := &gatedStore{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	c := New(s, cache.NewRedisReferenceCache(client), time.Minute, nil)
	ctx := context.Background()

	_, err := s.Store.InsertReferenceEntry(ctx, domain.ReferenceEntry{Category: domain.CategoryAgent, Value: "Andaman Holidays", Active: true})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.FindByCategory(ctx, domain.CategoryAgent)
		done <- err
	}()

	select {
	case <-s.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("load did not reach the store")
	}
	_, err = c.Add(ctx, domain.CategoryAgent, "Siam Discovery", "", "")
	require.NoError(t, err)
	close(s.release)
	require.NoError(t, <-done)

	entries, err := c.FindByCategory(ctx, domain.CategoryAgent)
	require.NoError(t, err)
	values := make([]string, 0, len(entries))
	for _, e := range entries {
		values = append(values, e.Value)
	}
	assert.ElementsMatch(t, []string{"Andaman Holidays", "Siam Discovery"}, values)
}

func TestMatchPrefersExactOverCaseInsensitive(t *testing.T) {
	entries := []domain.ReferenceEntry{
		{ID: "1", Value: "ACME", Phone: "111", Active: true},
		{ID: "2", Value: "acme", Phone: "222", Active: true},
		{ID: "3", Value: "Gone", Active: false},
	}

	got, ok := Match(entries, "acme")
	require.True(t, ok)
	assert.Equal(t, "2", got.ID)

	got, ok = Match(entries, "Acme")
	require.True(t, ok)
	assert.Equal(t, "1", got.ID)

	_, ok = Match(entries, "gone")
	assert.False(t, ok)

	_, ok = Match(entries, "")
	assert.False(t, ok)
}
