package runtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/arbor-sh/arbor/internal/config"
	"github.com/arbor-sh/arbor/pkg/decision"
	"github.com/arbor-sh/arbor/pkg/domain"
	"github.com/arbor-sh/arbor/pkg/ports"
	"github.com/arbor-sh/arbor/pkg/registry"
)

// Task IDs used by the built-in workflow plans. Deps are keyed by these.
const (
	taskFetch    = "fetch"
	taskScore    = "score"
	taskAssemble = "assemble"
	taskValidate = "validate"
	taskCheck    = "check"
	taskReserve  = "reserve"
	taskConfirm  = "confirm"
)

// scoreResult is what score_candidates hands downstream.
type scoreResult struct {
	Ranked   []domain.Suggestion
	Warnings []string
}

// assembleResult is the terminal payload of search and recommend workflows.
type assembleResult struct {
	Message     string
	Results     []domain.Record
	Suggestions []domain.Suggestion
	Warnings    []string
}

// orderRequest is the validated order slice flowing through the order
// workflow.
type orderRequest struct {
	RecordID string `mapstructure:"record_id"`
	Quantity int    `mapstructure:"quantity"`
}

// orderResult is the terminal payload of the order workflow.
type orderResult struct {
	OrderID  string
	Message  string
	Record   domain.Record
	Quantity int
}

// registerTasks wires the built-in executable units into the registry.
// Each closure captures exactly the collaborators it needs.
func registerTasks(reg *registry.Registry, store ports.DataStore, cfg config.Config) error {
	units := map[string]registry.TaskFunc{
		"fetch_candidates":  fetchCandidates(store),
		"score_candidates":  scoreCandidates(cfg),
		"assemble_response": assembleResponse(),
		"validate_order":    validateOrder(),
		"check_stock":       checkStock(store),
		"reserve_stock":     reserveStock(store),
		"confirm_order":     confirmOrder(),
	}
	for name, fn := range units {
		if err := reg.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// fetchCandidates queries the store with the requirement filter from Args.
// Zero-valued fields mean "no filter on this dimension".
func fetchCandidates(store ports.DataStore) registry.TaskFunc {
	return func(ctx context.Context, in registry.Input) (any, error) {
		var reqs Requirements
		if err := weakDecode(in.Args, &reqs); err != nil {
			return nil, err
		}
		inStockOnly, _ := in.Args["in_stock_only"].(bool)

		records, err := store.Query(ctx, func(r domain.Record) bool {
			if reqs.Category != "" && r.Category != reqs.Category {
				return false
			}
			if reqs.MinCPU > 0 && r.CPU < reqs.MinCPU {
				return false
			}
			if reqs.MinRAM > 0 && r.RAM < reqs.MinRAM {
				return false
			}
			if reqs.MinStorage > 0 && r.Storage < reqs.MinStorage {
				return false
			}
			if reqs.MaxPrice > 0 && r.Price > reqs.MaxPrice {
				return false
			}
			if inStockOnly && r.Stock < 1 {
				return false
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		return records, nil
	}
}

// scoreCandidates ranks fetched records with the weight profile named in
// Args. Price counts against a candidate; everything else counts for it.
func scoreCandidates(cfg config.Config) registry.TaskFunc {
	return func(ctx context.Context, in registry.Input) (any, error) {
		records, ok := in.Deps[taskFetch].([]domain.Record)
		if !ok {
			return nil, fmt.Errorf("score_candidates: missing fetch result")
		}

		priority, _ := in.Args["priority"].(string)
		weights := cfg.Weights(priority)

		criteria := []decision.Criterion{
			{Name: "cpu", Weight: weights["cpu"], Direction: decision.HigherIsBetter},
			{Name: "ram", Weight: weights["ram"], Direction: decision.HigherIsBetter},
			{Name: "storage", Weight: weights["storage"], Direction: decision.HigherIsBetter},
			{Name: "price", Weight: weights["price"], Direction: decision.LowerIsBetter},
		}

		byID := make(map[string]domain.Record, len(records))
		candidates := make([]decision.Candidate, 0, len(records))
		for _, r := range records {
			byID[r.ID] = r
			candidates = append(candidates, decision.Candidate{
				ID: r.ID,
				Values: map[string]float64{
					"cpu":     float64(r.CPU),
					"ram":     float64(r.RAM),
					"storage": float64(r.Storage),
					"price":   r.Price,
				},
			})
		}

		ranked, warning, err := decision.Rank(candidates, criteria)
		if err != nil {
			return nil, err
		}

		result := scoreResult{Ranked: make([]domain.Suggestion, 0, len(ranked))}
		if warning != nil {
			result.Warnings = append(result.Warnings, warning.Error())
		}
		for _, opt := range ranked {
			rec := byID[opt.ID]
			result.Ranked = append(result.Ranked, domain.Suggestion{
				Record: rec,
				Score:  opt.Score,
				Text:   suggestionText(rec),
			})
		}
		return result, nil
	}
}

// suggestionText renders the deterministic pitch line for a record.
func suggestionText(r domain.Record) string {
	return fmt.Sprintf("We recommend '%s' with %d CPUs, %dGB RAM, and %dGB storage for your needs. Price: $%.2f.",
		r.Name, r.CPU, r.RAM, r.Storage, r.Price)
}

// assembleResponse folds upstream results into the terminal turn payload.
// Args["mode"] selects between the plain search listing and the ranked
// recommendation view.
func assembleResponse() registry.TaskFunc {
	return func(ctx context.Context, in registry.Input) (any, error) {
		mode, _ := in.Args["mode"].(string)

		switch mode {
		case "recommend":
			scored, ok := in.Deps[taskScore].(scoreResult)
			if !ok {
				return nil, fmt.Errorf("assemble_response: missing score result")
			}
			limit := 3
			if len(scored.Ranked) < limit {
				limit = len(scored.Ranked)
			}
			out := assembleResult{
				Suggestions: scored.Ranked[:limit],
				Warnings:    scored.Warnings,
			}
			if len(out.Suggestions) == 0 {
				out.Message = "No options match your requirements. Try relaxing them."
			} else {
				out.Message = fmt.Sprintf("Here are your top %d options.", len(out.Suggestions))
			}
			return out, nil

		case "search":
			records, ok := in.Deps[taskFetch].([]domain.Record)
			if !ok {
				return nil, fmt.Errorf("assemble_response: missing fetch result")
			}
			out := assembleResult{Results: records}
			if len(records) == 0 {
				out.Message = "No records match your search."
			} else {
				out.Message = fmt.Sprintf("Found %d matching records.", len(records))
			}
			return out, nil

		default:
			return nil, fmt.Errorf("assemble_response: unknown mode %q", mode)
		}
	}
}

// validateOrder checks the order shape before anything touches the store.
func validateOrder() registry.TaskFunc {
	return func(ctx context.Context, in registry.Input) (any, error) {
		var req orderRequest
		if err := weakDecode(in.Args, &req); err != nil {
			return nil, err
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		if req.RecordID == "" {
			return nil, &domain.ValidationError{Field: "record_id", Reason: "required for an order"}
		}
		if req.Quantity < 1 {
			return nil, &domain.ValidationError{Field: "quantity", Reason: "must be at least 1"}
		}
		return req, nil
	}
}

// checkStock loads the record and verifies availability.
func checkStock(store ports.DataStore) registry.TaskFunc {
	return func(ctx context.Context, in registry.Input) (any, error) {
		req, ok := in.Deps[taskValidate].(orderRequest)
		if !ok {
			return nil, fmt.Errorf("check_stock: missing validated order")
		}

		rec, err := store.Get(ctx, req.RecordID)
		if err != nil {
			return nil, err
		}
		if rec.Stock < req.Quantity {
			return nil, fmt.Errorf("insufficient stock for %q: want %d, have %d", rec.ID, req.Quantity, rec.Stock)
		}
		return rec, nil
	}
}

// reserveStock decrements stock. The per-session serialization boundary
// means no two turns of one conversation race here; cross-session
// overselling is accepted at this layer, as the store owns real inventory.
func reserveStock(store ports.DataStore) registry.TaskFunc {
	return func(ctx context.Context, in registry.Input) (any, error) {
		req, ok := in.Deps[taskValidate].(orderRequest)
		if !ok {
			return nil, fmt.Errorf("reserve_stock: missing validated order")
		}
		rec, ok := in.Deps[taskCheck].(domain.Record)
		if !ok {
			return nil, fmt.Errorf("reserve_stock: missing stock check result")
		}

		rec.Stock -= req.Quantity
		if err := store.Put(ctx, rec.ID, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
}

// confirmOrder mints the confirmation.
func confirmOrder() registry.TaskFunc {
	return func(ctx context.Context, in registry.Input) (any, error) {
		req, ok := in.Deps[taskValidate].(orderRequest)
		if !ok {
			return nil, fmt.Errorf("confirm_order: missing validated order")
		}
		rec, ok := in.Deps[taskReserve].(domain.Record)
		if !ok {
			return nil, fmt.Errorf("confirm_order: missing reservation")
		}

		id := uuid.NewString()
		return orderResult{
			OrderID:  id,
			Record:   rec,
			Quantity: req.Quantity,
			Message: fmt.Sprintf("Order %s confirmed: %d x %s for $%.2f total.",
				id, req.Quantity, rec.Name, float64(req.Quantity)*rec.Price),
		}, nil
	}
}

// weakDecode is mapstructure with weak typing, shared by the task handlers.
func weakDecode(src map[string]any, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(src); err != nil {
		return fmt.Errorf("failed to decode task args: %w", err)
	}
	return nil
}
