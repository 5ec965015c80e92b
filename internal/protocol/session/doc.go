// Package session owns peer-to-peer request reliability helpers.
//
// Ownership boundary:
// - pending ownership request tracking (outbox)
// - retry/backoff policy for RequestSync
//
// Delivery of individual sync messages is fire-and-forget and is not
// tracked here.
package session
