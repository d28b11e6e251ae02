package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triageNodes() []Node {
	return []Node{
		{ID: "start", Kind: KindAction,
			Assignments: []Assignment{{Key: "triaged", Value: true}},
			Next:        "vip?"},
		{ID: "vip?", Kind: KindCondition,
			Predicate: "tier == 'vip'",
			Branches:  map[string]string{"true": "priority", "false": "standard"}},
		{ID: "priority", Kind: KindLeaf, Payload: "priority-queue"},
		{ID: "standard", Kind: KindLeaf, Payload: "standard-queue"},
	}
}

func TestTree_EvaluateFollowsBranches(t *testing.T) {
	tree, err := NewTree("start", triageNodes())
	require.NoError(t, err)
	assert.Equal(t, "start", tree.Root())
	assert.Equal(t, 4, tree.Len())

	ctx := map[string]any{"tier": "vip"}
	payload, err := tree.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "priority-queue", payload)

	// Action node mutations are visible after the walk.
	assert.Equal(t, true, ctx["triaged"])

	payload, err = tree.Evaluate(map[string]any{"tier": "free"})
	require.NoError(t, err)
	assert.Equal(t, "standard-queue", payload)
}

func TestTree_MultiwayBranchOnScalarOutcome(t *testing.T) {
	tree, err := NewTree("route", []Node{
		{ID: "route", Kind: KindCondition,
			Predicate: "region",
			Branches:  map[string]string{"eu": "eu-leaf", "us": "us-leaf"}},
		{ID: "eu-leaf", Kind: KindLeaf, Payload: "eu"},
		{ID: "us-leaf", Kind: KindLeaf, Payload: "us"},
	})
	require.NoError(t, err)

	payload, err := tree.Evaluate(map[string]any{"region": "eu"})
	require.NoError(t, err)
	assert.Equal(t, "eu", payload)

	_, err = tree.Evaluate(map[string]any{"region": "apac"})
	var branch *BranchNotFoundError
	require.ErrorAs(t, err, &branch)
	assert.Equal(t, "route", branch.NodeID)
	assert.Equal(t, "apac", branch.Key)
}

func TestTree_MissingContextKeyIsFalsy(t *testing.T) {
	tree, err := NewTree("vip?", triageNodes()[1:])
	require.NoError(t, err)

	// Undefined variables evaluate to nil; the comparison is simply false.
	payload, err := tree.Evaluate(nil)
	require.NoError(t, err)
	assert.Equal(t, "standard-queue", payload)
}

func TestNewTree_RejectsDanglingReference(t *testing.T) {
	_, err := NewTree("a", []Node{
		{ID: "a", Kind: KindAction, Next: "ghost"},
	})
	var dangling *DanglingReferenceError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, "a", dangling.NodeID)
	assert.Equal(t, "ghost", dangling.ChildID)
}

func TestNewTree_RejectsUnknownRoot(t *testing.T) {
	_, err := NewTree("missing", []Node{
		{ID: "leaf", Kind: KindLeaf},
	})
	var dangling *DanglingReferenceError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, "missing", dangling.ChildID)
}

func TestNewTree_RejectsCycle(t *testing.T) {
	_, err := NewTree("a", []Node{
		{ID: "a", Kind: KindAction, Next: "b"},
		{ID: "b", Kind: KindCondition,
			Predicate: "flag",
			Branches:  map[string]string{"true": "a", "false": "end"}},
		{ID: "end", Kind: KindLeaf},
	})
	var cyclic *CyclicTreeError
	require.ErrorAs(t, err, &cyclic)
}

func TestNewTree_RejectsDuplicateAndEmptyIDs(t *testing.T) {
	_, err := NewTree("a", []Node{
		{ID: "a", Kind: KindLeaf},
		{ID: "a", Kind: KindLeaf},
	})
	assert.Error(t, err)

	_, err = NewTree("a", []Node{
		{ID: "", Kind: KindLeaf},
	})
	assert.Error(t, err)

	_, err = NewTree("a", nil)
	assert.Error(t, err)
}

func TestNewTree_RejectsBadPredicateAtBuildTime(t *testing.T) {
	_, err := NewTree("c", []Node{
		{ID: "c", Kind: KindCondition,
			Predicate: "os.Exit(1)",
			Branches:  map[string]string{"true": "c2"}},
		{ID: "c2", Kind: KindLeaf},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "function calls")
}
