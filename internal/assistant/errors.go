// ABOUTME: Error kinds surfaced by the orchestrator
// ABOUTME: Validation errors all wrap ErrValidationRejected and are decided without network calls

package assistant

import (
	"errors"
	"fmt"

	"github.com/2389/bank-assistant/internal/scope"
)

var (
	// ErrAuthenticationFailed is returned when login is rejected or cannot complete
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRegistrationFailed is returned when the backend refuses a signup
	ErrRegistrationFailed = errors.New("registration failed")

	// ErrValidationRejected is the kind shared by every client-side rejection
	ErrValidationRejected = errors.New("validation rejected")

	// ErrSessionEnded is returned for work whose session was logged out before it completed
	ErrSessionEnded = errors.New("session ended")
)

// Client-side rejections.
var (
	ErrEmptyQuestion    = fmt.Errorf("%w: question is empty", ErrValidationRejected)
	ErrMissingDocument  = fmt.Errorf("%w: no document selected", ErrValidationRejected)
	ErrMissingTarget    = fmt.Errorf("%w: %w", ErrValidationRejected, scope.ErrMissingTarget)
	ErrNotAuthenticated = fmt.Errorf("%w: not signed in", ErrValidationRejected)
	ErrNotPrivileged    = fmt.Errorf("%w: admin only", ErrValidationRejected)
	ErrNoPendingUpload  = fmt.Errorf("%w: no pending upload", ErrValidationRejected)
	ErrUploadInFlight   = fmt.Errorf("%w: an upload is already in progress", ErrValidationRejected)
)

// Messages appended to the transcript on failure.
const (
	MessageQueryFailed   = "Error querying"
	MessageMissingTarget = "Please enter a user ID"
)
