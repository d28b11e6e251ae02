package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-sh/arbor/pkg/domain"
)

// RunDataStoreContract runs a suite of tests to verify that a DataStore
// implementation adheres to the interface contract.
func RunDataStoreContract(t *testing.T, store DataStore) {
	ctx := context.Background()
	key := "contract-" + time.Now().Format("20060102150405")

	t.Run("Put and Get", func(t *testing.T) {
		rec := domain.Record{
			ID:       key,
			Name:     "Contract Server",
			Category: "Compute",
			CPU:      8,
			RAM:      32,
			Storage:  500,
			Price:    1200,
			Stock:    3,
		}
		require.NoError(t, store.Put(ctx, key, rec))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, rec, got)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "missing-"+key)
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("Put Overwrites", func(t *testing.T) {
		rec := domain.Record{ID: key, Name: "Replaced", Stock: 1}
		require.NoError(t, store.Put(ctx, key, rec))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "Replaced", got.Name)
	})

	t.Run("Query with Predicate", func(t *testing.T) {
		a := domain.Record{ID: key + "-a", Category: "Compute", CPU: 16}
		b := domain.Record{ID: key + "-b", Category: "Storage", CPU: 4}
		require.NoError(t, store.Put(ctx, a.ID, a))
		require.NoError(t, store.Put(ctx, b.ID, b))

		got, err := store.Query(ctx, func(r domain.Record) bool {
			return r.Category == "Storage" && r.ID == b.ID
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, b.ID, got[0].ID)
	})

	t.Run("Query Nil Predicate Matches All", func(t *testing.T) {
		got, err := store.Query(ctx, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, got)
	})

	t.Run("Query Order Is Deterministic", func(t *testing.T) {
		first, err := store.Query(ctx, nil)
		require.NoError(t, err)
		second, err := store.Query(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}
