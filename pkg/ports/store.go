package ports

import (
	"context"

	"github.com/arbor-sh/arbor/pkg/domain"
)

// Predicate filters records during a query.
type Predicate func(domain.Record) bool

// DataStore is the data-access contract. Implementations may be slow or
// fallible; the core wraps their failures in domain.DataAccessError and a
// missing key is domain.ErrRecordNotFound.
type DataStore interface {
	// Get retrieves a single record by key.
	Get(ctx context.Context, key string) (domain.Record, error)

	// Query returns every record matching the predicate. A nil predicate
	// matches everything. Order must be deterministic for a fixed store.
	Query(ctx context.Context, pred Predicate) ([]domain.Record, error)

	// Put creates or replaces a record under the key.
	Put(ctx context.Context, key string, rec domain.Record) error
}
