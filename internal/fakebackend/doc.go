// Package fakebackend is an in-memory stand-in for the banking backend.
//
// It serves the same endpoints under /api/ with the same status codes and
// payloads the real service returns, so the client can be exercised end to
// end without the retrieval pipeline. Answers are canned.
//
// # Sessions
//
// A successful login sets a sessionid cookie and a fresh csrftoken cookie.
// Once a request carries a session, every POST other than login/ and
// register/ must echo the csrftoken value in the X-CSRFToken header or it
// is refused with 403.
//
// # Users
//
// Users are numbered from 1 in creation order. That number is the id an
// admin passes as user_id. Passwords are stored as bcrypt hashes.
package fakebackend
