package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-sh/arbor/pkg/domain"
)

func TestManager_CreatesOnFirstUse(t *testing.T) {
	mgr := NewManager()
	ctx := context.Background()

	err := mgr.WithSession(ctx, "s1", func(s *domain.Session) error {
		assert.Equal(t, "s1", s.ID)
		assert.Equal(t, domain.StateIdle, s.State)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, mgr.Len())
}

func TestManager_WithExistingMiss(t *testing.T) {
	mgr := NewManager()

	err := mgr.WithExisting(context.Background(), "ghost", func(s *domain.Session) error {
		t.Fatal("callback must not run for unknown session")
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_SerializesSameSession(t *testing.T) {
	mgr := NewManager()
	ctx := context.Background()

	// Counter increments are read-modify-write through session context; lost
	// updates mean the per-session lock is broken.
	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.WithSession(ctx, "hot", func(s *domain.Session) error {
				n, _ := s.Context["n"].(int)
				time.Sleep(time.Millisecond)
				s.Context["n"] = n + 1
				return nil
			})
		}()
	}
	wg.Wait()

	snap, err := mgr.Snapshot(ctx, "hot")
	require.NoError(t, err)
	assert.Equal(t, writers, snap.Context["n"])
}

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager()
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_ = mgr.WithSession(ctx, sid, func(s *domain.Session) error { return nil })
		_ = mgr.Delete(ctx, sid)
	}

	mgr.mu.Lock()
	lockCount := len(mgr.locks)
	mgr.mu.Unlock()
	assert.Zero(t, lockCount, "lock entries must be garbage collected")
	assert.Zero(t, mgr.Len())
}

func TestManager_SnapshotIsIsolated(t *testing.T) {
	mgr := NewManager()
	ctx := context.Background()

	require.NoError(t, mgr.WithSession(ctx, "s", func(s *domain.Session) error {
		s.Context["k"] = "original"
		s.AppendHistory(domain.TurnRecord{Utterance: "hi"})
		return nil
	}))

	snap, err := mgr.Snapshot(ctx, "s")
	require.NoError(t, err)
	snap.Context["k"] = "mutated"
	snap.History[0].Utterance = "bye"

	check, err := mgr.Snapshot(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "original", check.Context["k"])
	assert.Equal(t, "hi", check.History[0].Utterance)
}

func TestManager_EvictIdle(t *testing.T) {
	mgr := NewManager()
	ctx := context.Background()

	require.NoError(t, mgr.WithSession(ctx, "stale", func(s *domain.Session) error {
		s.LastActive = time.Now().Add(-time.Hour)
		return nil
	}))
	require.NoError(t, mgr.WithSession(ctx, "fresh", func(s *domain.Session) error { return nil }))

	evicted := mgr.EvictIdle(30 * time.Minute)
	assert.Equal(t, []string{"stale"}, evicted)
	assert.Equal(t, 1, mgr.Len())

	err := mgr.WithExisting(ctx, "stale", func(s *domain.Session) error { return nil })
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.NoError(t, mgr.WithExisting(ctx, "fresh", func(s *domain.Session) error { return nil }))
}

func TestManager_CancelledContext(t *testing.T) {
	mgr := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := mgr.WithSession(ctx, "s", func(s *domain.Session) error {
		t.Fatal("callback must not run with a dead context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
