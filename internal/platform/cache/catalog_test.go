package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalog(t *testing.T) (*Catalog, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCatalog(client, "catalog", time.Minute), mr
}

func TestCatalogFetchAndBump(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()
	var calls int

	load := func(context.Context) (any, error) {
		calls++
		return []string{"Lapices", "Cuadernos"}, nil
	}

	key, err := c.BuildKey(ctx, "products", "categories")
	require.NoError(t, err)
	require.Equal(t, "products:categories:v1", key)

	var got []string
	require.NoError(t, c.FetchJSON(ctx, key, &got, load))
	require.NoError(t, c.FetchJSON(ctx, key, &got, load))
	require.Equal(t, []string{"Lapices", "Cuadernos"}, got)
	require.Equal(t, 1, calls)

	require.NoError(t, c.Bump(ctx))
	key, err = c.BuildKey(ctx, "products", "categories")
	require.NoError(t, err)
	require.Equal(t, "products:categories:v2", key)
	require.NoError(t, c.FetchJSON(ctx, key, &got, load))
	require.Equal(t, 2, calls)
}

func TestCatalogSingleflight(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()
	var calls atomic.Int32
	release := make(chan struct{})

	load := func(context.Context) (any, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var v int
			assert.NoError(t, c.FetchJSON(ctx, "k", &v, load))
			assert.Equal(t, 7, v)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	require.Equal(t, int32(1), calls.Load())
}

func TestCatalogWithoutClient(t *testing.T) {
	c := NewCatalog(nil, "", time.Minute)
	var v []int
	require.NoError(t, c.FetchJSON(context.Background(), "x", &v, func(context.Context) (any, error) {
		return []int{1, 2}, nil
	}))
	require.Equal(t, []int{1, 2}, v)
	require.NoError(t, c.Bump(context.Background()))
}

func TestCatalogServesLoaderWhenRedisFails(t *testing.T) {
	c, mr := newCatalog(t)
	ctx := context.Background()
	var calls int
	load := func(context.Context) (any, error) {
		calls++
		return []string{"Reglas"}, nil
	}

	mr.SetError("ERR cache offline")
	var got []string
	require.NoError(t, c.FetchJSON(ctx, "products:list:v1", &got, load))
	require.Equal(t, []string{"Reglas"}, got)
	require.Equal(t, 1, calls)
	mr.SetError("")

	// The write fails after a clean miss; the loaded value is still returned.
	got = nil
	require.NoError(t, c.FetchJSON(ctx, "products:list:v2", &got, func(ctx context.Context) (any, error) {
		mr.SetError("ERR cache full")
		return load(ctx)
	}))
	require.Equal(t, []string{"Reglas"}, got)
	require.Equal(t, 2, calls)
	mr.SetError("")
	require.False(t, mr.Exists("products:list:v2"))
}
