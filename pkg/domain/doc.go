/*
Package domain contains the core domain models for the Arbor agent core.

It defines the fundamental entities shared across the engine: the per-session
agent state machine, the Session itself, conversational turn types, catalog
records, and the error taxonomy. This package is kept pure and free of
external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - State / Event: the agent lifecycle state machine and its transition table.
  - Session: the per-conversation unit of ownership (context, history, state).
  - TurnRequest / TurnResponse: the in-process contract for one turn.
  - Record: a catalog entry consumed by lookup and recommendation tasks.
*/
package domain
