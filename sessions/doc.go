// Package sessions holds the in-memory authentication session: who is signed in, with
// which tokens, and what the session is currently doing.
//
// A Session is a small state machine:
//
//	Unauthenticated -> Authenticating -> Authenticated <-> Refreshing
//	       ^                 |                 |               |
//	       +-----------------+-----------------+---------------+
//
// plus Error, entered only when the persisted session could not be read at startup.
// Every transition publishes a Snapshot to subscribers. A snapshot is authenticated
// exactly when it carries both a user and a token pair.
package sessions
