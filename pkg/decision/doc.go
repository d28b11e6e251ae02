/*
Package decision implements the deterministic decision engine: decision-tree
evaluation over a session context, and multi-criteria weighted ranking of
candidate options.

Both halves are pure: no I/O, no clocks, no randomness. Two calls with
identical inputs produce identical outputs.
*/
package decision
