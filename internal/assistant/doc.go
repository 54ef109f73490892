// Package assistant orchestrates the signed-in session of the bank assistant client.
//
// # Overview
//
// The Orchestrator sequences user actions through the scope resolver and the
// protocol client, and owns the session state they depend on:
//
//   - the current Identity (mirrored to the session Store)
//   - the admin's transient scope Selection
//   - the Transcript of the current session
//   - the Pending Upload awaiting (re)submission
//
// # State Machine
//
//	Unauthenticated --Login/Restore--> Authenticated(identity, generation)
//	Authenticated --Logout/Sync on a missing record--> Unauthenticated
//
// Every transition into Authenticated bumps the generation. Work started under
// one generation (a query reply, an upload completion) only touches state if
// the generation is still current, so replies arriving after logout are dropped.
//
// # Asking
//
// Submit appends the user's question to the transcript before any network call
// and returns an Exchange that completes when the reply is appended. Ask is
// Submit followed by Wait. Replies are appended in completion order.
//
// # Errors
//
// Client-side rejections wrap ErrValidationRejected and never reach the
// network. Backend and transport failures surface the api package's typed
// errors. Login failures wrap ErrAuthenticationFailed.
package assistant
