/*
Package session implements session management and persistence orchestration.

Manager serializes access to the same session ID with reference-counted local locks,
optionally backed by a distributed locker for multi-replica deployments. Plugin hooks
the Manager into the session and response.flush stages of the application root.
*/
package session
