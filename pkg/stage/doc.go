/*
Package stage implements the Stage Registry: an immutable set of named stages and,
per stage, an ordered list of handlers dispatched sequentially.

Handlers registered on the same stage never run in parallel within one dispatch.
Concurrent dispatches of the same registry (one per in-flight request) are safe.
*/
package stage
