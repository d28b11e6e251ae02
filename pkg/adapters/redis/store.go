package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	backend "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/arbor-sh/arbor/pkg/domain"
	"github.com/arbor-sh/arbor/pkg/ports"
)

// queryFanout bounds concurrent GETs during Query.
const queryFanout = 8

// Store implements ports.DataStore on Redis. Records are JSON values under
// prefixed keys; a set at <prefix>index tracks known keys so Query does not
// need SCAN.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets an expiration on records. Zero means no expiration.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "arbor:record:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Get retrieves a record by key.
func (s *Store) Get(ctx context.Context, key string) (domain.Record, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, backend.Nil) {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.Record{}, &domain.DataAccessError{Op: "get", Key: key, Err: err}
	}

	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Record{}, &domain.DataAccessError{Op: "get", Key: key, Err: err}
	}
	return rec, nil
}

// Put creates or replaces the record and registers its key in the index.
func (s *Store) Put(ctx context.Context, key string, rec domain.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return &domain.DataAccessError{Op: "put", Key: key, Err: err}
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(key), data, s.ttl)
	pipe.SAdd(ctx, s.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return &domain.DataAccessError{Op: "put", Key: key, Err: err}
	}
	return nil
}

// Query fetches every indexed record with bounded fan-out, then filters.
// Keys whose value expired are skipped, not errors. Results are ordered by
// key for determinism.
func (s *Store) Query(ctx context.Context, pred ports.Predicate) ([]domain.Record, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, &domain.DataAccessError{Op: "query", Key: s.indexKey(), Err: err}
	}
	sort.Strings(keys)

	// Each goroutine writes its own slot; no shared state beyond that.
	records := make([]domain.Record, len(keys))
	present := make([]bool, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(queryFanout)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			rec, err := s.Get(gctx, key)
			if errors.Is(err, domain.ErrRecordNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			records[i] = rec
			present[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.Record, 0, len(keys))
	for i := range records {
		if present[i] && (pred == nil || pred(records[i])) {
			out = append(out, records[i])
		}
	}
	return out, nil
}
