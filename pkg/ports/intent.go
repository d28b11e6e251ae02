package ports

import (
	"context"

	"github.com/arbor-sh/arbor/pkg/domain"
)

// IntentResolver is the NLU collaborator contract. The core consumes only
// the structured output; raw text never crosses into decision logic.
type IntentResolver interface {
	Resolve(ctx context.Context, utterance string) (domain.Intent, error)
}
