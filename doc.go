/*
Package arbor is an embeddable decision-and-execution core for
conversational agents.

Each conversation is a session driven by a small finite state machine.
A turn is validated, classified into a structured intent, and served either
by a direct decision-tree evaluation or by a dependency-aware workflow of
tasks executed on a bounded worker pool with retries, timeouts and
cancellation. The caller gets back one coherent response per turn.

The Agent type is the entry point:

	agent, err := arbor.New(arbor.WithCatalog(records))
	if err != nil { ... }
	defer agent.Close()

	resp, err := agent.SubmitTurn(ctx, domain.TurnRequest{
		SessionID: "visitor-42",
		Utterance: "recommend a high performance server",
	})

Storage, intent resolution and metrics are ports: swap in the Redis-backed
store, a real NLU resolver, or the Prometheus sink from pkg/observability
without touching the core.
*/
package arbor
