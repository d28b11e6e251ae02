/*
Package session owns the live session table and serializes access to it.

Each session gets its own mutex so concurrent turns for the same session
queue up while turns for different sessions proceed in parallel. Lock
entries are reference counted and garbage collected when the last holder
releases them, so the lock table never outgrows the set of sessions
actually in flight.
*/
package session
