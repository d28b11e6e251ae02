package runtime

import (
	"strings"

	"github.com/arbor-sh/arbor/pkg/decision"
)

// triageOutcome is a leaf payload of the support triage tree.
type triageOutcome struct {
	Category string
	Message  string
	Clarify  bool
}

// newTriageTree builds the support triage tree. Predicates are expressions
// over boolean flags precomputed from the utterance, so the tree stays
// declarative while the lexical work lives in triageContext.
func newTriageTree() (*decision.Tree, error) {
	nodes := []decision.Node{
		{
			ID:   "mark",
			Kind: decision.KindAction,
			Assignments: []decision.Assignment{
				{Key: "triaged", Value: true},
			},
			Next: "refund?",
		},
		{
			ID:        "refund?",
			Kind:      decision.KindCondition,
			Predicate: "mentions_refund",
			Branches:  map[string]string{"true": "refund", "false": "breakage?"},
		},
		{
			ID:        "breakage?",
			Kind:      decision.KindCondition,
			Predicate: "mentions_breakage and has_order_ref",
			Branches:  map[string]string{"true": "replacement", "false": "breakage_only?"},
		},
		{
			ID:        "breakage_only?",
			Kind:      decision.KindCondition,
			Predicate: "mentions_breakage",
			Branches:  map[string]string{"true": "need_order", "false": "general"},
		},
		{
			ID:   "refund",
			Kind: decision.KindLeaf,
			Payload: triageOutcome{
				Category: "refund",
				Message:  "I've opened a refund request. Our billing team will follow up within one business day.",
			},
		},
		{
			ID:   "replacement",
			Kind: decision.KindLeaf,
			Payload: triageOutcome{
				Category: "replacement",
				Message:  "Sorry about the faulty unit. A replacement has been queued against your order.",
			},
		},
		{
			ID:   "need_order",
			Kind: decision.KindLeaf,
			Payload: triageOutcome{
				Category: "replacement",
				Message:  "Could you share your order reference so I can arrange a replacement?",
				Clarify:  true,
			},
		},
		{
			ID:   "general",
			Kind: decision.KindLeaf,
			Payload: triageOutcome{
				Category: "general",
				Message:  "A support agent will get back to you shortly. Anything else I can check meanwhile?",
			},
		},
	}
	return decision.NewTree("mark", nodes)
}

// triageContext derives the boolean flags the triage predicates consume.
// Every flag is always present, so predicates never see missing variables.
func triageContext(utterance string, sessionCtx map[string]any) map[string]any {
	lower := strings.ToLower(utterance)

	_, hasOrderRef := sessionCtx["order_id"]
	if !hasOrderRef {
		_, hasOrderRef = sessionCtx["record_id"]
	}

	return map[string]any{
		"mentions_refund":   strings.Contains(lower, "refund") || strings.Contains(lower, "money back"),
		"mentions_breakage": strings.Contains(lower, "broken") || strings.Contains(lower, "not working") || strings.Contains(lower, "faulty") || strings.Contains(lower, "stopped working"),
		"has_order_ref":     hasOrderRef,
	}
}
