package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/liability-cli/pkg/geocode"
)

func newTestCache(t *testing.T, ttl time.Duration) *GeocodeCache {
	t.Helper()
	c, err := NewGeocodeCache(filepath.Join(t.TempDir(), "geocode.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Migrate(context.Background()))
	return c
}

func TestGeocodeCache_Miss(t *testing.T) {
	c := newTestCache(t, 0)
	r, ok, err := c.Get(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, r)
}

func TestGeocodeCache_PutGet(t *testing.T) {
	c := newTestCache(t, 0)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "cajamarca, peru", &geocode.Result{
		Latitude: -7.1617, Longitude: -78.5128, DisplayName: "Cajamarca", Source: "nominatim",
	}))

	r, ok, err := c.Get(ctx, "cajamarca, peru")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, -7.1617, r.Latitude, 1e-9)
	assert.InDelta(t, -78.5128, r.Longitude, 1e-9)
	assert.Equal(t, "Cajamarca", r.DisplayName)
	assert.Equal(t, "cache", r.Source)
}

func TestGeocodeCache_Upsert(t *testing.T) {
	c := newTestCache(t, 0)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "lima", &geocode.Result{Latitude: 1, Longitude: 1}))
	require.NoError(t, c.Put(ctx, "lima", &geocode.Result{Latitude: -12.05, Longitude: -77.04}))

	r, ok, err := c.Get(ctx, "lima")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, -12.05, r.Latitude, 1e-9)
}

func TestGeocodeCache_TTL(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	past := time.Now().Add(-2 * time.Hour)
	c.now = func() time.Time { return past }
	require.NoError(t, c.Put(ctx, "old", &geocode.Result{Latitude: 1, Longitude: 2}))
	c.now = time.Now
	require.NoError(t, c.Put(ctx, "fresh", &geocode.Result{Latitude: 3, Longitude: 4}))

	_, ok, err := c.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry should be a miss")

	_, ok, err = c.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGeocodeCache_ImplementsCache(t *testing.T) {
	var _ geocode.Cache = (*GeocodeCache)(nil)
}
