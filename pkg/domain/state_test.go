package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_FullLifecycle(t *testing.T) {
	cases := []struct {
		from  State
		event Event
		to    State
	}{
		{StateIdle, EventSubmitRequest, StateProcessing},
		{StateProcessing, EventCompleteSuccess, StateIdle},
		{StateProcessing, EventNeedsClarification, StateWaitingForInput},
		{StateWaitingForInput, EventSubmitRequest, StateProcessing},
		{StateProcessing, EventFail, StateError},
		{StateError, EventRecover, StateIdle},
	}
	for _, tc := range cases {
		next, _, err := Apply(tc.from, tc.event)
		require.NoError(t, err, "%s + %s", tc.from, tc.event)
		assert.Equal(t, tc.to, next)
	}
}

func TestApply_IllegalPairsLeaveStateUnchanged(t *testing.T) {
	cases := []struct {
		from  State
		event Event
	}{
		{StateIdle, EventCompleteSuccess},
		{StateIdle, EventRecover},
		{StateProcessing, EventSubmitRequest},
		{StateWaitingForInput, EventFail},
		{StateError, EventSubmitRequest},
		{State("bogus"), EventSubmitRequest},
	}
	for _, tc := range cases {
		next, effects, err := Apply(tc.from, tc.event)
		var invalid *InvalidTransitionError
		require.ErrorAs(t, err, &invalid, "%s + %s", tc.from, tc.event)
		assert.Equal(t, tc.from, next)
		assert.Equal(t, Effects{}, effects)
	}
}

func TestApply_RecoverClearsWorkflow(t *testing.T) {
	_, effects, err := Apply(StateError, EventRecover)
	require.NoError(t, err)
	assert.True(t, effects.ClearWorkflow)
}

func TestSession_TransitionCommitsEffects(t *testing.T) {
	s := NewSession("s1")
	assert.Equal(t, StateIdle, s.State)

	require.NoError(t, s.Transition(EventSubmitRequest))
	require.NoError(t, s.Transition(EventFail))
	s.WorkflowID = "wf-1"

	// Failed transition leaves the session untouched.
	err := s.Transition(EventSubmitRequest)
	require.Error(t, err)
	assert.Equal(t, StateError, s.State)
	assert.Equal(t, "wf-1", s.WorkflowID)

	require.NoError(t, s.Transition(EventRecover))
	assert.Equal(t, StateIdle, s.State)
	assert.Empty(t, s.WorkflowID)
}

func TestSession_AppendHistoryEvictsOldest(t *testing.T) {
	s := NewSession("s1")
	s.HistoryLimit = 2

	s.AppendHistory(TurnRecord{Utterance: "one"})
	s.AppendHistory(TurnRecord{Utterance: "two"})
	s.AppendHistory(TurnRecord{Utterance: "three"})

	require.Len(t, s.History, 2)
	assert.Equal(t, "two", s.History[0].Utterance)
	assert.Equal(t, "three", s.History[1].Utterance)
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := NewSession("s1")
	s.MergeContext(map[string]any{"record_id": "srv-a"})
	s.AppendHistory(TurnRecord{Utterance: "hello"})

	clone := s.Clone()
	clone.Context["record_id"] = "srv-b"
	clone.History[0].Utterance = "changed"

	assert.Equal(t, "srv-a", s.Context["record_id"])
	assert.Equal(t, "hello", s.History[0].Utterance)
}
