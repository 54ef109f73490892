// Package session persists the identity of the signed-in user.
//
// The Store is the single source of truth for "who is acting". It keeps one
// record, the JSON form of Identity, under the fixed key "user" in a
// localstore.Storage. Only the assistant Orchestrator writes it; every other
// reader gets it injected.
//
// Load never fails: a missing, malformed or unreadable record means the client
// is unauthenticated. Save and Clear report storage failures wrapped in
// ErrPersistenceUnavailable so the caller can fall back to a session-only
// identity.
package session
