package decision

import "fmt"

// CyclicTreeError means a node is reachable from itself. Fatal to the tree
// under construction only.
type CyclicTreeError struct {
	NodeID string
}

func (e *CyclicTreeError) Error() string {
	return fmt.Sprintf("decision tree: node %q is part of a cycle", e.NodeID)
}

// DanglingReferenceError means a node references a child that is not defined
// in the tree.
type DanglingReferenceError struct {
	NodeID  string
	ChildID string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("decision tree: node %q references undefined child %q", e.NodeID, e.ChildID)
}

// BranchNotFoundError means a condition node produced a branch key with no
// matching edge. Fatal to that evaluation only.
type BranchNotFoundError struct {
	NodeID string
	Key    string
}

func (e *BranchNotFoundError) Error() string {
	return fmt.Sprintf("decision tree: node %q has no branch for outcome %q", e.NodeID, e.Key)
}

// WeightNormalizationWarning reports that supplied criterion weights did not
// sum to 1 and were renormalized proportionally. Non-fatal.
type WeightNormalizationWarning struct {
	Sum float64
}

func (w *WeightNormalizationWarning) Error() string {
	return fmt.Sprintf("criterion weights sum to %g; renormalized proportionally", w.Sum)
}
