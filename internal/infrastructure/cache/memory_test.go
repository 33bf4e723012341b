package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/erp/labeldesk/internal/domain/grn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetAdd(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	rec, ok, err := c.Get(ctx, grn.NamespaceSupplier, "S1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, rec)

	written, err := c.Add(ctx, grn.NamespaceSupplier, "S1", grn.Record{"SupplierName": "One"})
	require.NoError(t, err)
	assert.True(t, written)

	rec, ok, err = c.Get(ctx, grn.NamespaceSupplier, "S1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "One", rec.String("SupplierName"))

	t.Run("additive only", func(t *testing.T) {
		written, err := c.Add(ctx, grn.NamespaceSupplier, "S1", grn.Record{"SupplierName": "Other"})
		require.NoError(t, err)
		assert.False(t, written)

		rec, _, _ := c.Get(ctx, grn.NamespaceSupplier, "S1")
		assert.Equal(t, "One", rec.String("SupplierName"))
	})

	t.Run("namespaces are separate", func(t *testing.T) {
		_, ok, _ := c.Get(ctx, grn.NamespaceHeader, "S1")
		assert.False(t, ok)
	})

	t.Run("empty record is a present entry", func(t *testing.T) {
		written, err := c.Add(ctx, grn.NamespaceHeader, "D1-2025", nil)
		require.NoError(t, err)
		assert.True(t, written)

		rec, ok, _ := c.Get(ctx, grn.NamespaceHeader, "D1-2025")
		assert.True(t, ok)
		assert.True(t, rec.IsEmpty())
	})

	t.Run("stored record is a copy", func(t *testing.T) {
		src := grn.Record{"SupplierName": "Two"}
		_, _ = c.Add(ctx, grn.NamespaceSupplier, "S2", src)
		src["SupplierName"] = "mutated"

		rec, _, _ := c.Get(ctx, grn.NamespaceSupplier, "S2")
		assert.Equal(t, "Two", rec.String("SupplierName"))
	})
}

func TestMemoryCache_GetMany(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	for _, k := range []string{"a", "b"} {
		_, err := c.Add(ctx, grn.NamespaceProduct, k, grn.Record{"k": k})
		require.NoError(t, err)
	}

	got, err := c.GetMany(ctx, grn.NamespaceProduct, []string{"a", "x", "b"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "a")
	assert.Contains(t, got, "b")

	stats := c.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, "memory", stats[0].Tier)
	assert.EqualValues(t, 2, stats[0].Hits)
	assert.EqualValues(t, 1, stats[0].Misses)
	assert.EqualValues(t, 2, stats[0].Writes)
	assert.EqualValues(t, 2, stats[0].Entries)
}

func TestMemoryCache_Capacity(t *testing.T) {
	c := NewMemoryCache(WithMemoryConfig(grn.CacheConfig{Capacity: 2}))
	defer c.Close()
	ctx := context.Background()

	for _, k := range []string{"first", "second", "third"} {
		_, err := c.Add(ctx, grn.NamespaceSupplier, k, grn.Record{})
		require.NoError(t, err)
	}
	_, _ = c.Add(ctx, grn.NamespaceHeader, "other", grn.Record{})

	assert.Equal(t, 2, c.Len(grn.NamespaceSupplier))
	assert.Equal(t, 1, c.Len(grn.NamespaceHeader))

	_, ok, _ := c.Get(ctx, grn.NamespaceSupplier, "first")
	assert.False(t, ok, "oldest entry is evicted")
	_, ok, _ = c.Get(ctx, grn.NamespaceSupplier, "third")
	assert.True(t, ok)
}

func TestMemoryCache_UnboundedCapacity(t *testing.T) {
	c := NewMemoryCache(WithMemoryConfig(grn.CacheConfig{Capacity: 0}))
	defer c.Close()
	ctx := context.Background()

	for i := range 500 {
		_, _ = c.Add(ctx, grn.NamespaceProduct, fmt.Sprintf("m:%d", i), grn.Record{})
	}
	assert.Equal(t, 500, c.Len(grn.NamespaceProduct))
}

func TestMemoryCache_TTL(t *testing.T) {
	now := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	c := NewMemoryCache(
		WithMemoryConfig(grn.CacheConfig{TTL: time.Minute}),
		withClock(clock),
	)
	defer c.Close()
	ctx := context.Background()

	_, _ = c.Add(ctx, grn.NamespaceSupplier, "S1", grn.Record{"SupplierName": "One"})
	_, _ = c.Add(ctx, grn.NamespaceSupplier, "S2", grn.Record{"SupplierName": "Two"})

	advance(30 * time.Second)
	_, ok, _ := c.Get(ctx, grn.NamespaceSupplier, "S1")
	assert.True(t, ok)

	advance(31 * time.Second)
	_, ok, _ = c.Get(ctx, grn.NamespaceSupplier, "S1")
	assert.False(t, ok)

	written, _ := c.Add(ctx, grn.NamespaceSupplier, "S1", grn.Record{"SupplierName": "Fresh"})
	assert.True(t, written, "an expired key can be written again")

	assert.Equal(t, 1, c.doCleanup(), "S2 expired")
	assert.Equal(t, 1, c.Len(grn.NamespaceSupplier))
}

func TestMemoryCache_ConcurrentAdd(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			written, err := c.Add(ctx, grn.NamespaceSupplier, "S1", grn.Record{"n": i})
			assert.NoError(t, err)
			if written {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryCache_CloseTwice(t *testing.T) {
	c := NewMemoryCache(WithMemoryConfig(grn.CacheConfig{TTL: time.Hour}))
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
