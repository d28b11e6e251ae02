package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-sh/arbor/pkg/adapters/redis"
	"github.com/arbor-sh/arbor/pkg/domain"
	"github.com/arbor-sh/arbor/pkg/ports"
)

func newTestStore(t *testing.T, opts ...redis.Option) *redis.Store {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redis.NewFromClient(client, opts...)
}

func TestRedisStore_Contract(t *testing.T) {
	ports.RunDataStoreContract(t, newTestStore(t))
}

func TestRedisStore_QuerySkipsExpiredValues(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redis.NewFromClient(client, redis.WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "live", domain.Record{ID: "live"}))
	require.NoError(t, store.Put(ctx, "gone", domain.Record{ID: "gone"}))

	// Expire one value; its index entry remains.
	mr.FastForward(2 * time.Minute)
	require.NoError(t, store.Put(ctx, "live", domain.Record{ID: "live"}))

	got, err := store.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "live", got[0].ID)
}

func TestRedisStore_CustomPrefix(t *testing.T) {
	store := newTestStore(t, redis.WithPrefix("other:"))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", domain.Record{ID: "k", Name: "N"}))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "N", got.Name)
}
