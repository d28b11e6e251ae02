// Package keyword implements a deterministic, keyword-driven
// ports.IntentResolver. It is the default resolver: no model, no network,
// just lexical matching good enough to drive the pipeline. Callers with a
// real NLU system plug in their own resolver at the same port.
package keyword

import (
	"context"
	"strings"

	"github.com/arbor-sh/arbor/pkg/domain"
)

// intentKeywords maps each intent to its trigger phrases. First match wins,
// checked in the order below.
var intentKeywords = []struct {
	name  domain.IntentName
	words []string
}{
	{domain.IntentSearch, []string{"search", "find", "look for", "show"}},
	{domain.IntentRecommend, []string{"recommend", "suggest", "suggestion", "best", "suitable"}},
	{domain.IntentOrder, []string{"buy", "order", "purchase", "checkout"}},
	{domain.IntentSupport, []string{"help", "support", "issue", "problem"}},
}

// Resolver resolves intents by keyword matching. Stateless and safe for
// concurrent use.
type Resolver struct{}

// NewResolver creates a keyword resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve classifies the utterance and extracts coarse constraints. It
// never fails; an unclassifiable utterance is a low-confidence general
// inquiry.
func (r *Resolver) Resolve(ctx context.Context, utterance string) (domain.Intent, error) {
	lower := strings.ToLower(utterance)

	for _, ik := range intentKeywords {
		for _, w := range ik.words {
			if strings.Contains(lower, w) {
				return domain.Intent{
					Name:        ik.name,
					Constraints: extractConstraints(lower),
					Confidence:  0.9,
				}, nil
			}
		}
	}

	return domain.Intent{
		Name:        domain.IntentGeneral,
		Constraints: extractConstraints(lower),
		Confidence:  0.2,
	}, nil
}

// extractConstraints pulls category, price bounds, performance floors and a
// ranking priority out of the lowercased utterance.
func extractConstraints(lower string) map[string]any {
	c := make(map[string]any)

	switch {
	case strings.Contains(lower, "server"):
		c["category"] = "Server"
	case strings.Contains(lower, "storage"):
		c["category"] = "Storage"
	case strings.Contains(lower, "compute"):
		c["category"] = "Compute"
	}

	if strings.Contains(lower, "budget") || strings.Contains(lower, "price") {
		if strings.Contains(lower, "under") {
			c["max_price"] = 2000.0
		} else if strings.Contains(lower, "cheap") || strings.Contains(lower, "affordable") {
			c["max_price"] = 1000.0
		}
	}

	if strings.Contains(lower, "high performance") || strings.Contains(lower, "powerful") {
		c["min_cpu"] = 16
		c["min_ram"] = 64
	}

	switch {
	case strings.Contains(lower, "high performance") || strings.Contains(lower, "powerful"):
		c["priority"] = "performance"
	case strings.Contains(lower, "budget") || strings.Contains(lower, "cheap"):
		c["priority"] = "budget"
	case strings.Contains(lower, "storage"):
		c["priority"] = "storage"
	}

	if len(c) == 0 {
		return nil
	}
	return c
}
