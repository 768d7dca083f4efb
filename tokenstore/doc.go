// Package tokenstore persists the session's token pair and user across process restarts.
//
// Every backend keeps two named slots, "tokens" and "user", each holding a JSON document.
// Reads never fail on absent or malformed content: they return nil so the session simply
// starts unauthenticated. Only backend I/O failures are returned as errors.
package tokenstore
