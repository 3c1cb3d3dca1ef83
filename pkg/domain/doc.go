/*
Package domain contains the core data model shared by every layer of the turnstile engine.

It defines the per-turn Request Context (Turn), the identifiers used to name pipeline
stages, the session and user holders plugins read and write, and the error kinds the
engine reports. This package is kept pure and free of I/O, following Hexagonal
Architecture principles.

# Key Entities

  - Stage: a named dispatch point inside one Stage Registry.
  - Turn: the mutable state threaded by reference through every stage of one request.
  - Session / User: scoped data holders resolved by platforms and persisted by plugins.
  - Output: a queued utterance that a platform converter renders into its wire format.
*/
package domain
