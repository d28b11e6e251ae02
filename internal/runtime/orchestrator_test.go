package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-sh/arbor/internal/config"
	"github.com/arbor-sh/arbor/pkg/adapters/keyword"
	"github.com/arbor-sh/arbor/pkg/adapters/memory"
	"github.com/arbor-sh/arbor/pkg/domain"
	"github.com/arbor-sh/arbor/pkg/ports"
	"github.com/arbor-sh/arbor/pkg/workflow"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.TurnTimeout = config.Duration(2 * time.Second)
	cfg.DefaultTaskTimeout = config.Duration(time.Second)
	cfg.BackoffBase = config.Duration(time.Millisecond)
	cfg.BackoffCap = config.Duration(5 * time.Millisecond)
	cfg.CancelGrace = config.Duration(100 * time.Millisecond)
	return cfg
}

func testCatalog() []domain.Record {
	return []domain.Record{
		{ID: "srv-a", Name: "Server A", Category: "Compute", CPU: 8, RAM: 32, Storage: 500, Price: 1200, Stock: 10},
		{ID: "srv-b", Name: "Server B", Category: "Storage", CPU: 4, RAM: 16, Storage: 2000, Price: 1500, Stock: 5},
		{ID: "srv-c", Name: "Server C", Category: "Compute", CPU: 16, RAM: 64, Storage: 1000, Price: 2000, Stock: 2},
	}
}

func newTestOrchestrator(t *testing.T, cfg config.Config) (*Orchestrator, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	store.Seed(testCatalog())

	o, err := New(cfg, store, keyword.NewResolver())
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o, store
}

func submit(t *testing.T, o *Orchestrator, sessionID, utterance string, ctx map[string]any) (domain.TurnResponse, error) {
	t.Helper()
	return o.SubmitTurn(context.Background(), domain.TurnRequest{
		SessionID: sessionID,
		Utterance: utterance,
		Context:   ctx,
	})
}

func TestSubmitTurn_RejectsMalformedInput(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())

	_, err := submit(t, o, "", "find servers", nil)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sessionid", verr.Field)

	// Nothing was created for the malformed request.
	_, serr := o.Status(context.Background(), "")
	assert.ErrorIs(t, serr, domain.ErrSessionNotFound)
}

func TestSubmitTurn_GeneralInquiry(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())

	resp, err := submit(t, o, "s1", "good morning", nil)
	require.NoError(t, err)
	assert.Equal(t, responseMessage, resp.Type)
	assert.Equal(t, "general", resp.Intent)
	assert.Equal(t, domain.StateIdle, resp.State)
	assert.NotEmpty(t, resp.Message)
}

func TestSubmitTurn_SearchReturnsFilteredResults(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())

	resp, err := submit(t, o, "s1", "find me a compute server", nil)
	require.NoError(t, err)
	require.Equal(t, responseResults, resp.Type)
	assert.Equal(t, "search", resp.Intent)
	assert.Equal(t, domain.StateIdle, resp.State)

	// "server" maps to the Server category, which is empty in the catalog.
	assert.Empty(t, resp.Results)

	resp, err = submit(t, o, "s1", "show me compute options", nil)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "srv-a", resp.Results[0].ID)
	assert.Equal(t, "srv-c", resp.Results[1].ID)

	require.Len(t, resp.Tasks, 2)
	assert.Equal(t, string(workflow.TaskSucceeded), resp.Tasks[0].Status)
}

func TestSubmitTurn_RecommendRanksByPriority(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())

	resp, err := submit(t, o, "s1", "recommend a powerful high performance machine", nil)
	require.NoError(t, err)
	require.Equal(t, responseResults, resp.Type)
	require.NotEmpty(t, resp.Suggestions)

	// Performance weighting puts the 16-core box first despite its price.
	assert.Equal(t, "srv-c", resp.Suggestions[0].Record.ID)
	assert.Contains(t, resp.Suggestions[0].Text, "Server C")
	assert.Equal(t, domain.StateIdle, resp.State)
}

func TestSubmitTurn_OrderClarifiesThenPlaces(t *testing.T) {
	o, store := newTestOrchestrator(t, testConfig())

	resp, err := submit(t, o, "s1", "I want to buy a server", nil)
	require.NoError(t, err)
	assert.Equal(t, responseClarification, resp.Type)
	assert.Equal(t, domain.StateWaitingForInput, resp.State)

	resp, err = submit(t, o, "s1", "order it", map[string]any{"record_id": "srv-a", "quantity": 2})
	require.NoError(t, err)
	require.Equal(t, responseOrder, resp.Type)
	assert.Equal(t, domain.StateIdle, resp.State)
	assert.Contains(t, resp.Message, "Server A")
	assert.Equal(t, "srv-a", resp.Extra["record_id"])

	rec, err := store.Get(context.Background(), "srv-a")
	require.NoError(t, err)
	assert.Equal(t, 8, rec.Stock)

	require.Len(t, resp.Tasks, 4)
	for _, task := range resp.Tasks {
		assert.Equal(t, string(workflow.TaskSucceeded), task.Status)
	}
}

func TestSubmitTurn_OrderUnknownRecordFailsAndRecovers(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())
	ctx := context.Background()

	resp, err := submit(t, o, "s1", "buy it", map[string]any{"record_id": "nope"})
	require.Error(t, err)
	assert.Equal(t, responseError, resp.Type)
	assert.Equal(t, domain.StateError, resp.State)

	var exhausted *workflow.TaskExhaustedRetriesError
	require.ErrorAs(t, err, &exhausted)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	// Stuck in Error until recover.
	_, err = submit(t, o, "s1", "buy it again", map[string]any{"record_id": "srv-a"})
	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)

	require.NoError(t, o.Recover(ctx, "s1"))
	status, err := o.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, status.State)

	resp, err = submit(t, o, "s1", "buy it", map[string]any{"record_id": "srv-a"})
	require.NoError(t, err)
	assert.Equal(t, responseOrder, resp.Type)
}

func TestSubmitTurn_SupportTriageClarifies(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())

	resp, err := submit(t, o, "s1", "help, my unit is broken", nil)
	require.NoError(t, err)
	assert.Equal(t, responseClarification, resp.Type)
	assert.Equal(t, domain.StateWaitingForInput, resp.State)

	resp, err = submit(t, o, "s1", "help, still broken", map[string]any{"order_id": "ord-9"})
	require.NoError(t, err)
	assert.Equal(t, responseMessage, resp.Type)
	assert.Equal(t, "replacement", resp.Extra["support_category"])
	assert.Equal(t, domain.StateIdle, resp.State)
}

// slowStore delays Query long enough for the turn deadline to fire.
type slowStore struct {
	ports.DataStore
	delay time.Duration
}

func (s *slowStore) Query(ctx context.Context, pred ports.Predicate) ([]domain.Record, error) {
	select {
	case <-time.After(s.delay):
		return s.DataStore.Query(ctx, pred)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestSubmitTurn_TurnTimeoutCancelsWorkflow(t *testing.T) {
	cfg := testConfig()
	cfg.TurnTimeout = config.Duration(50 * time.Millisecond)

	inner := memory.NewStore()
	inner.Seed(testCatalog())
	store := &slowStore{DataStore: inner, delay: 5 * time.Second}

	o, err := New(cfg, store, keyword.NewResolver())
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })

	resp, err := submit(t, o, "s1", "find me anything", nil)
	var timeout *domain.TurnTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "s1", timeout.SessionID)
	assert.Equal(t, domain.StateError, resp.State)
	assert.Equal(t, responseError, resp.Type)
	assert.NotEmpty(t, resp.Tasks)
}

func TestHistoryIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.HistoryLimit = 3

	o, _ := newTestOrchestrator(t, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := submit(t, o, "s1", "hello", nil)
		require.NoError(t, err)
	}

	status, err := o.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, status.State)

	snap, err := o.sessions.Snapshot(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, snap.History, 3)
	// Oldest entries were evicted; all five turns were recorded in order.
	for _, rec := range snap.History {
		assert.Equal(t, "hello", rec.Utterance)
		assert.Equal(t, "general", rec.Intent)
	}
}

func TestEvictIdleSessionsReleasesExecutions(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())
	ctx := context.Background()

	// A workflow turn leaves an execution tracked for status queries.
	_, err := submit(t, o, "s1", "show me compute options", nil)
	require.NoError(t, err)
	require.NotNil(t, o.execution("s1"))

	require.NoError(t, o.sessions.WithExisting(ctx, "s1", func(s *domain.Session) error {
		s.LastActive = time.Now().Add(-time.Hour)
		return nil
	}))

	assert.Equal(t, 1, o.EvictIdleSessions())

	// Both the session and its workflow execution are gone.
	assert.Nil(t, o.execution("s1"))
	_, err = o.Status(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// A fresh session is left alone.
	_, err = submit(t, o, "s2", "show me compute options", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, o.EvictIdleSessions())
	assert.NotNil(t, o.execution("s2"))
}

func TestStatusAndCancel(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())
	ctx := context.Background()

	_, err := submit(t, o, "s1", "show me compute options", nil)
	require.NoError(t, err)

	status, err := o.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, status.State)
	assert.Equal(t, workflow.StatusSucceeded, status.WorkflowStatus)
	assert.NotEmpty(t, status.WorkflowID)
	assert.NotEmpty(t, status.Tasks)

	// Cancelling with nothing in flight is a no-op.
	assert.NoError(t, o.CancelTurn(ctx, "s1"))
	assert.ErrorIs(t, o.CancelTurn(ctx, "ghost"), domain.ErrSessionNotFound)
}

func TestResetSessionDestroysState(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())
	ctx := context.Background()

	_, err := submit(t, o, "s1", "hello", nil)
	require.NoError(t, err)

	require.NoError(t, o.ResetSession(ctx, "s1"))
	_, err = o.Status(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestClosedAgentRejectsTurns(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())
	require.NoError(t, o.Close())

	_, err := submit(t, o, "s1", "hello", nil)
	assert.ErrorIs(t, err, domain.ErrAgentClosed)
}

func TestSessionsAreIndependent(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())

	// One session in Error must not affect another.
	_, err := submit(t, o, "bad", "buy it", map[string]any{"record_id": "nope"})
	require.Error(t, err)

	resp, err := submit(t, o, "good", "show me compute options", nil)
	require.NoError(t, err)
	assert.Equal(t, responseResults, resp.Type)
}
