package decision

import (
	"fmt"

	"github.com/arbor-sh/arbor/pkg/decision/eval"
)

// NodeKind is the explicit discriminant of the tagged node variant.
type NodeKind string

const (
	// KindCondition evaluates a predicate against the context and follows
	// the branch matching the outcome.
	KindCondition NodeKind = "condition"
	// KindAction mutates the context and continues to a single child.
	KindAction NodeKind = "action"
	// KindLeaf terminates evaluation and returns its payload.
	KindLeaf NodeKind = "leaf"
)

// Assignment is one context mutation performed by an action node.
type Assignment struct {
	Key   string
	Value any
}

// Node is a tagged variant over {Condition, Action, Leaf}. Exactly the
// fields for its Kind are consulted; the rest are ignored.
type Node struct {
	ID   string
	Kind NodeKind

	// Condition fields. Predicate is an expression over the session
	// context; its outcome (bool or scalar) selects an entry in Branches.
	Predicate string
	Branches  map[string]string

	// Action fields.
	Assignments []Assignment
	Next        string

	// Leaf field.
	Payload any
}

type compiledNode struct {
	Node
	predicate *eval.Compiled
}

// Tree is an immutable, validated decision tree with exactly one root.
type Tree struct {
	root  string
	nodes map[string]*compiledNode
}

// NewTree validates and compiles the node set. Validation runs once here:
// every referenced child must exist (DanglingReferenceError) and no node may
// be reachable from itself (CyclicTreeError). Evaluation never re-checks.
func NewTree(rootID string, nodes []Node) (*Tree, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("decision tree: no nodes")
	}

	compiled := make(map[string]*compiledNode, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("decision tree: node with empty id")
		}
		if _, dup := compiled[n.ID]; dup {
			return nil, fmt.Errorf("decision tree: duplicate node id %q", n.ID)
		}
		cn := &compiledNode{Node: n}
		if n.Kind == KindCondition {
			p, err := eval.Compile(n.Predicate)
			if err != nil {
				return nil, fmt.Errorf("decision tree: node %q: %w", n.ID, err)
			}
			cn.predicate = p
		}
		compiled[n.ID] = cn
	}

	if _, ok := compiled[rootID]; !ok {
		return nil, &DanglingReferenceError{NodeID: "", ChildID: rootID}
	}

	for id, n := range compiled {
		for _, child := range children(&n.Node) {
			if _, ok := compiled[child]; !ok {
				return nil, &DanglingReferenceError{NodeID: id, ChildID: child}
			}
		}
	}

	if err := checkAcyclic(compiled); err != nil {
		return nil, err
	}

	return &Tree{root: rootID, nodes: compiled}, nil
}

// Root returns the root node id.
func (t *Tree) Root() string { return t.root }

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Evaluate walks the tree depth-first from the root. Condition nodes select
// a branch from their predicate outcome; action nodes apply their
// assignments to ctx and continue; the first leaf reached terminates the
// walk and its payload is returned. Mutations performed by action nodes are
// visible in ctx after the call.
func (t *Tree) Evaluate(ctx map[string]any) (any, error) {
	if ctx == nil {
		ctx = make(map[string]any)
	}

	current := t.root
	// The graph is validated acyclic, so the walk visits each node at most
	// once; the bound is a defect detector, not a control mechanism.
	for i := 0; i < len(t.nodes)+1; i++ {
		node := t.nodes[current]

		switch node.Kind {
		case KindLeaf:
			return node.Payload, nil

		case KindAction:
			for _, a := range node.Assignments {
				ctx[a.Key] = a.Value
			}
			current = node.Next

		case KindCondition:
			out, err := node.predicate.Eval(ctx)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", node.ID, err)
			}
			key := branchKey(out)
			next, ok := node.Branches[key]
			if !ok {
				return nil, &BranchNotFoundError{NodeID: node.ID, Key: key}
			}
			current = next

		default:
			return nil, fmt.Errorf("node %q: unknown kind %q", node.ID, node.Kind)
		}
	}

	return nil, fmt.Errorf("decision tree: walk exceeded node count (corrupt tree)")
}

// branchKey maps a predicate outcome to a branch label. Booleans map to
// "true"/"false"; everything else uses its default formatting.
func branchKey(out any) string {
	switch v := out.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func children(n *Node) []string {
	switch n.Kind {
	case KindCondition:
		out := make([]string, 0, len(n.Branches))
		for _, child := range n.Branches {
			out = append(out, child)
		}
		return out
	case KindAction:
		if n.Next == "" {
			return nil
		}
		return []string{n.Next}
	default:
		return nil
	}
}

// checkAcyclic runs a three-color DFS over every node.
func checkAcyclic(nodes map[string]*compiledNode) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case gray:
			return &CyclicTreeError{NodeID: id}
		case black:
			return nil
		}
		color[id] = gray
		for _, child := range children(&nodes[id].Node) {
			if err := visit(child); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	for id := range nodes {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}
