package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-sh/arbor"
	"github.com/arbor-sh/arbor/pkg/domain"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	agent, err := arbor.New(
		arbor.WithCatalog([]domain.Record{
			{ID: "srv-a", Name: "Server A", Category: "Compute", CPU: 8, RAM: 32, Storage: 500, Price: 1200, Stock: 10},
			{ID: "srv-b", Name: "Server B", Category: "Compute", CPU: 16, RAM: 64, Storage: 1000, Price: 2000, Stock: 2},
		}),
		arbor.WithTurnTimeout(2*time.Second),
		arbor.WithSessionIdleTimeout(0),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(NewHandler(agent, nil, nil))
	t.Cleanup(func() {
		srv.Close()
		_ = agent.Close()
	})
	return srv
}

func postTurn(t *testing.T, srv *httptest.Server, req domain.TurnRequest) (int, domain.TurnResponse) {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	res, err := http.Post(srv.URL+"/v1/turns", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()

	var resp domain.TurnResponse
	if res.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	}
	return res.StatusCode, resp
}

func TestServer_SubmitTurn(t *testing.T) {
	srv := newTestServer(t)

	code, resp := postTurn(t, srv, domain.TurnRequest{
		SessionID: "s1",
		Utterance: "show me compute options",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "results", resp.Type)
	assert.Len(t, resp.Results, 2)
}

func TestServer_SubmitTurnRejectsMalformed(t *testing.T) {
	srv := newTestServer(t)

	code, _ := postTurn(t, srv, domain.TurnRequest{Utterance: "hello"})
	assert.Equal(t, http.StatusBadRequest, code)

	res, err := http.Post(srv.URL+"/v1/turns", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestServer_ProcessingFailureIsServed(t *testing.T) {
	srv := newTestServer(t)

	code, resp := postTurn(t, srv, domain.TurnRequest{
		SessionID: "s1",
		Utterance: "buy it",
		Context:   map[string]any{"record_id": "ghost"},
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "error", resp.Type)
	assert.Equal(t, domain.StateError, resp.State)
}

func TestServer_SessionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	code, _ := postTurn(t, srv, domain.TurnRequest{SessionID: "s1", Utterance: "hello"})
	require.Equal(t, http.StatusOK, code)

	res, err := http.Get(srv.URL + "/v1/sessions/s1")
	require.NoError(t, err)
	var status arbor.TurnStatus
	require.NoError(t, json.NewDecoder(res.Body).Decode(&status))
	res.Body.Close()
	assert.Equal(t, "s1", status.SessionID)
	assert.Equal(t, domain.StateIdle, status.State)

	res, err = http.Post(srv.URL+"/v1/sessions/s1/cancel", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusAccepted, res.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/sessions/s1", nil)
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res, err = http.Get(srv.URL + "/v1/sessions/s1")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestServer_RecoverConflictsOutsideError(t *testing.T) {
	srv := newTestServer(t)

	code, _ := postTurn(t, srv, domain.TurnRequest{SessionID: "s1", Utterance: "hello"})
	require.Equal(t, http.StatusOK, code)

	res, err := http.Post(srv.URL+"/v1/sessions/s1/recover", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestServer_Healthz(t *testing.T) {
	srv := newTestServer(t)

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
