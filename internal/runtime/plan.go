package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/arbor-sh/arbor/pkg/domain"
	"github.com/arbor-sh/arbor/pkg/workflow"
)

// Response types, also used as the outcome label on metrics and history.
const (
	responseResults       = "results"
	responseOrder         = "order"
	responseMessage       = "message"
	responseClarification = "clarification"
	responseError         = "error"
)

// turnOutcome is what execute hands back to the pipeline: a draft response,
// the state-machine event it implies, and the error to surface, if any.
type turnOutcome struct {
	event      domain.Event
	response   domain.TurnResponse
	err        error
	workflowID string
}

func failedOutcome(intent domain.Intent, err error) turnOutcome {
	return turnOutcome{
		event: domain.EventFail,
		err:   err,
		response: domain.TurnResponse{
			Type:    responseError,
			Message: err.Error(),
		},
	}
}

// execute translates the intent into either a workflow submission or a
// direct decision-engine call, and maps the result into a draft response.
func (o *Orchestrator) execute(ctx context.Context, req domain.TurnRequest, intent domain.Intent, turnContext map[string]any) turnOutcome {
	constraints := mergeConstraints(turnContext, intent.Constraints)

	switch intent.Name {
	case domain.IntentSearch:
		reqs, err := decodeRequirements(constraints)
		if err != nil {
			return failedOutcome(intent, err)
		}
		return o.runWorkflow(ctx, req.SessionID, intent, nil, searchSpec(reqs, o.cfg.DefaultMaxRetries), turnContext)

	case domain.IntentRecommend:
		reqs, warnings, err := normalizeRequirements(constraints)
		if err != nil {
			return failedOutcome(intent, err)
		}
		return o.runWorkflow(ctx, req.SessionID, intent, warnings, recommendSpec(reqs, o.cfg.DefaultMaxRetries), turnContext)

	case domain.IntentOrder:
		reqs, err := decodeRequirements(constraints)
		if err != nil {
			return failedOutcome(intent, err)
		}
		if reqs.RecordID == "" {
			return turnOutcome{
				event: domain.EventNeedsClarification,
				response: domain.TurnResponse{
					Type:    responseClarification,
					Message: "Which item would you like to order? Please provide its id (and a quantity).",
				},
			}
		}
		return o.runWorkflow(ctx, req.SessionID, intent, nil, orderSpec(reqs, o.cfg.DefaultMaxRetries), turnContext)

	case domain.IntentSupport:
		return o.runTriage(req.Utterance, turnContext)

	default:
		return turnOutcome{
			event: domain.EventCompleteSuccess,
			response: domain.TurnResponse{
				Type:    responseMessage,
				Message: "I can search the catalog, recommend options, place orders, and handle support requests.",
			},
		}
	}
}

// runTriage is the direct decision-engine path: no workflow, just one tree
// evaluation.
func (o *Orchestrator) runTriage(utterance string, turnContext map[string]any) turnOutcome {
	payload, err := o.triage.Evaluate(triageContext(utterance, turnContext))
	if err != nil {
		return failedOutcome(domain.Intent{Name: domain.IntentSupport}, err)
	}
	outcome, ok := payload.(triageOutcome)
	if !ok {
		return failedOutcome(domain.Intent{Name: domain.IntentSupport}, fmt.Errorf("unexpected triage payload %T", payload))
	}

	event := domain.EventCompleteSuccess
	respType := responseMessage
	if outcome.Clarify {
		event = domain.EventNeedsClarification
		respType = responseClarification
	}
	return turnOutcome{
		event: event,
		response: domain.TurnResponse{
			Type:    respType,
			Message: outcome.Message,
			Extra:   map[string]any{"support_category": outcome.Category},
		},
	}
}

// runWorkflow submits the spec, awaits it under the turn deadline, and maps
// the terminal status to an outcome. A turn deadline that fires mid-flight
// cancels the workflow and surfaces TurnTimeoutError.
func (o *Orchestrator) runWorkflow(ctx context.Context, sessionID string, intent domain.Intent, warnings []string, spec workflow.Spec, turnContext map[string]any) turnOutcome {
	exec, err := o.engine.Submit(ctx, spec, turnContext)
	if err != nil {
		return failedOutcome(intent, err)
	}
	o.trackExecution(sessionID, exec)

	status, werr := exec.Wait(ctx)
	if werr != nil && status == workflow.StatusRunning {
		exec.Cancel()
		// Let the engine settle so task reports reflect the cancellation.
		<-exec.Done()
		status = exec.Status()

		if errors.Is(werr, context.DeadlineExceeded) {
			werr = &domain.TurnTimeoutError{SessionID: sessionID, Limit: o.cfg.TurnTimeout.Std()}
		}
		out := failedOutcome(intent, werr)
		out.workflowID = exec.ID
		out.response.Tasks = taskReports(exec.Snapshot())
		return out
	}

	out := turnOutcome{workflowID: exec.ID}
	out.response.Tasks = taskReports(exec.Snapshot())
	out.response.Warnings = warnings

	switch status {
	case workflow.StatusSucceeded:
		out.event = domain.EventCompleteSuccess
		o.mapResult(exec, &out)
	default:
		ferr := exec.Err()
		if ferr == nil {
			ferr = fmt.Errorf("workflow %s ended %s", exec.ID, status)
		}
		out.event = domain.EventFail
		out.err = ferr
		out.response.Type = responseError
		out.response.Message = ferr.Error()
	}
	return out
}

// mapResult lifts the terminal task's payload into the response.
func (o *Orchestrator) mapResult(exec *workflow.Execution, out *turnOutcome) {
	if result, ok := exec.TaskResult(taskAssemble); ok {
		assembled, ok := result.(assembleResult)
		if !ok {
			out.event = domain.EventFail
			out.err = fmt.Errorf("unexpected assemble payload %T", result)
			out.response.Type = responseError
			out.response.Message = out.err.Error()
			return
		}
		out.response.Type = responseResults
		out.response.Message = assembled.Message
		out.response.Results = assembled.Results
		out.response.Suggestions = assembled.Suggestions
		out.response.Warnings = append(out.response.Warnings, assembled.Warnings...)
		return
	}

	if result, ok := exec.TaskResult(taskConfirm); ok {
		confirmed, ok := result.(orderResult)
		if !ok {
			out.event = domain.EventFail
			out.err = fmt.Errorf("unexpected confirmation payload %T", result)
			out.response.Type = responseError
			out.response.Message = out.err.Error()
			return
		}
		out.response.Type = responseOrder
		out.response.Message = confirmed.Message
		out.response.Extra = map[string]any{
			"order_id":  confirmed.OrderID,
			"record_id": confirmed.Record.ID,
			"quantity":  confirmed.Quantity,
		}
		return
	}

	out.response.Type = responseMessage
	out.response.Message = "Done."
}

// searchSpec is the two-task search plan: fetch then assemble.
func searchSpec(reqs Requirements, retries int) workflow.Spec {
	return workflow.Spec{
		Name: "search",
		Tasks: []workflow.TaskSpec{
			{ID: taskFetch, Uses: "fetch_candidates", Args: filterArgs(reqs, false), MaxRetries: retries},
			{ID: taskAssemble, Uses: "assemble_response", Args: map[string]any{"mode": "search"}, DependsOn: []string{taskFetch}},
		},
	}
}

// recommendSpec is the flagship three-task plan: fetch, rank, assemble.
func recommendSpec(reqs Requirements, retries int) workflow.Spec {
	return workflow.Spec{
		Name: "recommend",
		Tasks: []workflow.TaskSpec{
			{ID: taskFetch, Uses: "fetch_candidates", Args: filterArgs(reqs, true), MaxRetries: retries},
			{ID: taskScore, Uses: "score_candidates", Args: map[string]any{"priority": reqs.Priority}, DependsOn: []string{taskFetch}},
			{ID: taskAssemble, Uses: "assemble_response", Args: map[string]any{"mode": "recommend"}, DependsOn: []string{taskScore}},
		},
	}
}

// orderSpec is the four-task order pipeline.
func orderSpec(reqs Requirements, retries int) workflow.Spec {
	args := map[string]any{"record_id": reqs.RecordID, "quantity": reqs.Quantity}
	return workflow.Spec{
		Name: "order",
		Tasks: []workflow.TaskSpec{
			{ID: taskValidate, Uses: "validate_order", Args: args},
			{ID: taskCheck, Uses: "check_stock", DependsOn: []string{taskValidate}, MaxRetries: retries},
			{ID: taskReserve, Uses: "reserve_stock", DependsOn: []string{taskCheck}, MaxRetries: retries},
			{ID: taskConfirm, Uses: "confirm_order", DependsOn: []string{taskReserve}},
		},
	}
}

// filterArgs flattens requirements into plain task args.
func filterArgs(reqs Requirements, inStockOnly bool) map[string]any {
	return map[string]any{
		"category":      reqs.Category,
		"min_cpu":       reqs.MinCPU,
		"min_ram":       reqs.MinRAM,
		"min_storage":   reqs.MinStorage,
		"max_price":     reqs.MaxPrice,
		"in_stock_only": inStockOnly,
	}
}

// mergeConstraints folds resolver constraints over the session context;
// fresh extraction wins over remembered values.
func mergeConstraints(turnContext, constraints map[string]any) map[string]any {
	merged := make(map[string]any, len(turnContext)+len(constraints))
	for k, v := range turnContext {
		merged[k] = v
	}
	for k, v := range constraints {
		merged[k] = v
	}
	return merged
}

// taskReports converts engine snapshots into response task slices.
func taskReports(snaps []workflow.TaskSnapshot) []domain.TaskReport {
	out := make([]domain.TaskReport, 0, len(snaps))
	for _, s := range snaps {
		report := domain.TaskReport{
			ID:       s.ID,
			Status:   string(s.Status),
			Attempts: s.Attempts,
			Duration: s.Duration,
		}
		if s.Err != nil {
			report.Error = s.Err.Error()
		}
		out = append(out, report)
	}
	return out
}
