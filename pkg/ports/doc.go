/*
Package ports defines the driven ports (interfaces) for the turnstile engine.

These interfaces decouple the engine from transports and storage, allowing the same
plugin tree to be served over HTTP, MCP or a CLI and persisted in any backend.

# Key Interfaces

  - Host: the transport collaborator of one request (raw body, headers, response, failure).
  - Engine: what transports drive; implemented by turnstile.App.
  - SessionStore / UserStore: persistence of session- and user-scoped data.
  - DistributedLocker: distributed locking for concurrent access to the same session.
*/
package ports
