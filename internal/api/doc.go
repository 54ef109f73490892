// Package api is the protocol client for the bank assistant backend.
//
// # Overview
//
// The backend authenticates with a session cookie and guards state-changing
// calls with an anti-forgery token. Client wraps net/http so that callers
// never deal with either:
//
//   - Every request goes through one cookie jar, so session credentials are
//     always sent.
//   - Requests with a method outside GET, HEAD, OPTIONS and TRACE carry the
//     anti-forgery header (X-CSRFToken) copied from the csrftoken cookie. If
//     the cookie is missing the request is sent anyway and the backend decides.
//
// # Errors
//
// A request that got no response fails with *TransportError (errors.Is
// ErrTransportFailure). A non-2xx response fails with *BackendError (errors.Is
// ErrBackendRejected) carrying the status code and the decoded JSON payload.
//
// # Endpoints
//
//	POST login/        {username, password}        -> {is_admin}
//	POST register/     {username, password}
//	POST query/        {question, user_id?}        -> {answer}
//	POST upload_pdf/   multipart pdf + user_id?
//	POST logout/
//	POST list_users/                               -> {users: [...]}
//
// # Cookie persistence
//
// With WithCookieStorage the jar's cookies for the backend are saved after
// every response and can be restored with RestoreCookies, so a restarted
// process keeps its backend session.
package api
