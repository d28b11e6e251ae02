package domain

// IntentName identifies what the user is asking for. The core only ever
// consumes the structured intent; raw text stays with the resolver.
type IntentName string

const (
	IntentSearch    IntentName = "search"
	IntentRecommend IntentName = "recommend"
	IntentOrder     IntentName = "order"
	IntentSupport   IntentName = "support"
	IntentGeneral   IntentName = "general"
)

// Intent is the structured output of the NLU collaborator.
type Intent struct {
	Name IntentName `json:"name"`

	// Constraints carries extracted requirement hints (category, budget,
	// minimum cpu/ram, ...). Keys are free-form; task handlers decode the
	// subset they understand.
	Constraints map[string]any `json:"constraints,omitempty"`

	Confidence float64 `json:"confidence"`
}
